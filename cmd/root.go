package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// exitError carries a process exit code out of a command.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "visasched",
		Short:         "Watches the US visa portal for an earlier appointment and moves the booking to it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newEncryptCmd())
	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newCheckCmd(&configPath))
	root.AddCommand(newAttemptsCmd(&configPath))

	return root
}

func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
