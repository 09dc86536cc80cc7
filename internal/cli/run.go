package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Classify every open post that has no record yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := setup(cmd.Context(), cmd, rootOpts, true)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "committed: %d\n", len(report.Committed))
			fmt.Fprintf(out, "repaired:  %d\n", len(report.Repaired))
			fmt.Fprintf(out, "dropped:   %d %v\n", len(report.Dropped), report.Dropped)
			fmt.Fprintf(out, "skipped:   %d\n", len(report.Skipped))
			return nil
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := setup(cmd.Context(), cmd, rootOpts, true)
			if err != nil {
				return err
			}
			defer application.Close()

			err = application.Watch(cmd.Context())
			logger.Info("watch stopped")
			return err
		},
	}
}
