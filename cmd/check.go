package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/visa-scheduler/internal/application/usecases"
	"github.com/example/visa-scheduler/internal/domain/appointment"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Log in, poll once and print the open dates without rescheduling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.sessions.Establish(ctx)
			if err != nil {
				return err
			}
			crit, err := a.criteria()
			if err != nil {
				return err
			}
			av, err := usecases.CheckAvailability{Poller: a.poller()}.Execute(ctx, sess, crit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "current appointment: %s\n", appointment.FormatDate(crit.Target))
			if len(av.Slots) == 0 {
				fmt.Fprintln(out, "no open dates")
			}
			for i, s := range av.Slots {
				if i == appointment.MaxCandidates {
					fmt.Fprintf(out, "... %d more\n", len(av.Slots)-i)
					break
				}
				fmt.Fprintf(out, "open: %s business_day=%t\n", s, s.BusinessDay)
			}
			if av.Eligible {
				fmt.Fprintf(out, "would reschedule to: %s\n", av.Candidate)
			} else {
				fmt.Fprintln(out, "no earlier date")
			}
			return nil
		},
	}
}
