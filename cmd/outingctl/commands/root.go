package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/pkg/config"
	"github.com/noah-isme/hostel-outing-api/pkg/logger"
)

var logLevelOverride string

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "outingctl",
		Short:         "Operate the hostel outing service",
		Long:          `outingctl runs scheduler passes on demand and mints development access tokens.`,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewSchedulerCmd(),
		NewTokenCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevelOverride != "" {
		cfg.Log.Level = logLevelOverride
	}
	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logr, nil
}
