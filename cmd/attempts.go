package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/infrastructure/storage"
)

func newAttemptsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect the reschedule audit trail",
	}
	cmd.AddCommand(newAttemptsListCmd(configPath))
	return cmd
}

func newAttemptsListCmd(configPath *string) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "list",
		Short: "List recent reschedule attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			rec, closeStore, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer closeStore()
			if rec == nil {
				return errors.New("storage.driver is none; no attempts are recorded")
			}

			list, err := rec.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return printAttempts(cmd, list)
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	return c
}

func printAttempts(cmd *cobra.Command, list []appointment.Attempt) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPTED\tDATE\tTIME\tOUTCOME\tREASON\tID")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.AttemptedAt.Local().Format(time.DateTime), appointment.FormatDate(a.Date), a.Time, a.Outcome, a.Reason, a.ID)
	}
	return w.Flush()
}
