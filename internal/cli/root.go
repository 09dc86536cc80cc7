package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"IssueTriage/internal/app"
	"IssueTriage/internal/config"
	"IssueTriage/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	NoRepair   bool
}

// NewRootCommand creates the root command for the issuetriage CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "issuetriage",
		Short: "Classify open GitHub issues and discussions with a language model",
		Long: `issuetriage fetches open issues and unanswered discussions, asks a
language model to classify each one, validates the answer against a JSON
schema and stores it. Invalid answers can be repaired by hand in an editor.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main logs the error
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $ISSUETRIAGE_CONFIG or config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.NoRepair, "no-repair", false, "drop invalid answers instead of offering a manual repair")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewKnownCommand(opts))

	return cmd
}

// setup loads configuration and builds the application. Commands that talk
// to GitHub and the model pass strict to require a complete config.
func setup(ctx context.Context, cmd *cobra.Command, opts *RootOptions, strict bool) (*app.Application, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if strict {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, logging.ColorFor(cmd.ErrOrStderr()))
	application, err := app.New(ctx, cfg, logger, app.Options{
		NoRepair: opts.NoRepair,
		In:       cmd.InOrStdin(),
		Out:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}
