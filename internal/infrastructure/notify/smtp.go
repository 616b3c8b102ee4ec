// Package notify delivers status messages to the operator.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// DefaultSMTPTimeout bounds one delivery when the caller's context has no
// earlier deadline.
const DefaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Server   string
	Port     int
	Sender   string
	Password string
	Receiver string
	Timeout  time.Duration
}

// Email sends HTML mail through an authenticated SMTP relay. STARTTLS is
// negotiated whenever the server offers it.
type Email struct {
	cfg  SMTPConfig
	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	now  func() time.Time
}

func NewEmail(cfg SMTPConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	e := &Email{cfg: cfg, now: time.Now}
	e.dial = (&net.Dialer{Timeout: cfg.Timeout}).DialContext
	e.send = e.sendMail
	return e
}

func (e *Email) Notify(ctx context.Context, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.cfg.Server, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Sender, e.cfg.Password, e.cfg.Server)
	msg := e.message(subject, body)
	if err := e.send(ctx, addr, auth, e.cfg.Sender, []string{e.cfg.Receiver}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", e.cfg.Receiver, err)
	}
	return nil
}

// sendMail is smtp.SendMail with every network step bound to ctx.
func (e *Email) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := e.dial(ctx, "tcp", addr)
	if err != nil {
		return ctxErr(ctx, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, e.cfg.Server)
	if err != nil {
		conn.Close()
		return ctxErr(ctx, err)
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return ctxErr(ctx, err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Server}); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && a != nil && e.cfg.Password != "" {
		if err := c.Auth(a); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return ctxErr(ctx, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return ctxErr(ctx, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return ctxErr(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return ctxErr(ctx, err)
	}
	if err := w.Close(); err != nil {
		return ctxErr(ctx, err)
	}
	return ctxErr(ctx, c.Quit())
}

// ctxErr attributes a network failure to ctx when ctx is why it failed. A
// conn deadline can fire just before the ctx timer does.
func ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (e *Email) message(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", e.cfg.Receiver)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "<html><body><p>%s</p></body></html>\r\n", html.EscapeString(body))
	return []byte(b.String())
}
