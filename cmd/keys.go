package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/visa-scheduler/internal/infrastructure/crypto"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a CRED_ENC_KEY value (base64) for sealing passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export CRED_ENC_KEY=%s\n", key)
			return nil
		},
	}
}
