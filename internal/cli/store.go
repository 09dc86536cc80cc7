package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Re-validate stored records against the active schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := setup(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer application.Close()

			failed, err := application.Check(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range failed {
				fmt.Fprintf(out, "#%d\n%s\n\n", f.Num, describe(f.Err))
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d stored records do not match the schema", len(failed))
			}
			fmt.Fprintln(out, "all records valid")
			return nil
		},
	}
}

// NewKnownCommand creates the known command.
func NewKnownCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "known",
		Short: "Print the numbers of posts that already have a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := setup(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer application.Close()

			nums, err := application.Known(cmd.Context())
			if err != nil {
				return err
			}
			for _, num := range nums {
				fmt.Fprintln(cmd.OutOrStdout(), num)
			}
			return nil
		},
	}
}

func describe(err error) string {
	if s, ok := err.(interface{ Summary() string }); ok {
		return s.Summary()
	}
	return err.Error()
}
