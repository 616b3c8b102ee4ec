// Package crypto seals credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// SealedPrefix marks a config value holding ciphertext rather than plaintext.
const SealedPrefix = "enc:"

const (
	KeySize  = 32
	saltSize = 16
)

type AEAD struct{ aead cipher.AEAD }

func New(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes (got %d)", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	a, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a}, nil
}

func (a *AEAD) EncryptToString(plaintext string) (string, error) {
	buf, err := a.seal(nil, plaintext)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// seal appends nonce||ciphertext to dst.
func (a *AEAD) seal(dst []byte, plaintext string) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	dst = append(dst, nonce...)
	return a.aead.Seal(dst, nonce, []byte(plaintext), nil), nil
}

func (a *AEAD) DecryptString(ciphertextB64 string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", err
	}
	return a.open(buf)
}

func (a *AEAD) open(buf []byte) (string, error) {
	ns := a.aead.NonceSize()
	if len(buf) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	pt, err := a.aead.Open(nil, buf[:ns], buf[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// ParseKey decodes a base64 (padded or raw) 32-byte key.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("key is not base64: %w", err)
		}
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes (got %d)", KeySize, len(b))
	}
	return b, nil
}

func GenerateKey() (string, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// DeriveKey stretches a passphrase into an AES-256 key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, KeySize)
}

// SealWithPassphrase encrypts plaintext under a fresh salt; the salt travels
// in front of the nonce.
func SealWithPassphrase(passphrase, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	a, err := New(key)
	if err != nil {
		return "", err
	}
	buf, err := a.seal(salt, plaintext)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func OpenWithPassphrase(passphrase, sealed string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(buf) < saltSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	key, err := DeriveKey(passphrase, buf[:saltSize])
	if err != nil {
		return "", err
	}
	a, err := New(key)
	if err != nil {
		return "", err
	}
	return a.open(buf[saltSize:])
}

// Keyring resolves sealed config values. Either a raw key or a passphrase is
// enough; the key wins when both are set.
type Keyring struct {
	Key        []byte
	Passphrase string
}

func (k Keyring) Reveal(value string) (string, error) {
	ct, ok := strings.CutPrefix(value, SealedPrefix)
	if !ok {
		return value, nil
	}
	switch {
	case len(k.Key) > 0:
		a, err := New(k.Key)
		if err != nil {
			return "", err
		}
		return a.DecryptString(ct)
	case k.Passphrase != "":
		return OpenWithPassphrase(k.Passphrase, ct)
	default:
		return "", fmt.Errorf("sealed value but neither CRED_ENC_KEY nor CRED_PASSPHRASE is set")
	}
}

// Seal is the inverse of Reveal.
func (k Keyring) Seal(plaintext string) (string, error) {
	switch {
	case len(k.Key) > 0:
		a, err := New(k.Key)
		if err != nil {
			return "", err
		}
		ct, err := a.EncryptToString(plaintext)
		if err != nil {
			return "", err
		}
		return SealedPrefix + ct, nil
	case k.Passphrase != "":
		ct, err := SealWithPassphrase(k.Passphrase, plaintext)
		if err != nil {
			return "", err
		}
		return SealedPrefix + ct, nil
	default:
		return "", fmt.Errorf("set CRED_ENC_KEY or CRED_PASSPHRASE")
	}
}
