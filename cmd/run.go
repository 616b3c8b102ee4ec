package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/example/visa-scheduler/internal/application/scheduler"
	"github.com/example/visa-scheduler/internal/interfaces/web"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch for an earlier appointment and reschedule to it",
		Long: "Runs until an earlier date is claimed (exit 0), the failure budget is spent (exit 1)\n" +
			"or the process is interrupted (exit 2).",
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

			c, err := a.controller()
			if err != nil {
				return err
			}

			if spec := cfg.Monitor.HeartbeatCron; spec != "" {
				hb, err := scheduler.StartHeartbeat(spec, c, a.notifier)
				if err != nil {
					return err
				}
				defer hb.Stop()
			}
			if addr := cfg.Status.ListenAddr; addr != "" {
				srv := web.New(addr, c, a.recorder)
				go func() {
					if err := srv.ListenAndServe(ctx); err != nil {
						log.Error().Err(err).Msg("status server stopped")
					}
				}()
			}

			if code := c.Supervise(ctx); code != scheduler.ExitClaimed {
				return exitError{code: code}
			}
			return nil
		},
	}
}
