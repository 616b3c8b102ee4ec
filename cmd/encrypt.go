package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/visa-scheduler/internal/infrastructure/config"
)

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [secret]",
		Short: "Seal a password for the config file (reads stdin when no argument is given)",
		Long: "Seals a secret with CRED_ENC_KEY, or with CRED_PASSPHRASE when no key is set.\n" +
			"Paste the printed enc:... value into usvisa.password or email.sender_password.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := ""
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return errors.New("empty secret")
			}
			k, err := config.KeyringFromEnv()
			if err != nil {
				return err
			}
			sealed, err := k.Seal(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
