package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hostel-outing-api/internal/bootstrap"
	"github.com/noah-isme/hostel-outing-api/internal/service"
)

// NewSchedulerCmd groups the on-demand scheduler passes.
func NewSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run scheduler passes once",
	}

	cmd.AddCommand(
		newSchedulerRunCmd("tick", "Issue incoming passes that are due", func(ctx context.Context, s *service.ExpiryScheduler) (service.RunReport, error) {
			return s.Tick(ctx)
		}),
		newSchedulerRunCmd("sweep", "Expire passes and stale requests for the last finished day", func(ctx context.Context, s *service.ExpiryScheduler) (service.RunReport, error) {
			return s.Sweep(ctx)
		}),
	)

	return cmd
}

type schedulerPass func(ctx context.Context, s *service.ExpiryScheduler) (service.RunReport, error)

func newSchedulerRunCmd(use, short string, run schedulerPass) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := bootstrap.New(ctx, cfg, logr)
			if err != nil {
				return err
			}
			// Events flush on Close, so the workers are needed even for one pass.
			app.Start(ctx, false)
			defer app.Close()

			report, err := run(ctx, app.Scheduler)
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	}
}

func printReport(cmd *cobra.Command, report service.RunReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
