package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openobservatory/probecore/internal/common/app"
	"github.com/openobservatory/probecore/internal/common/logging"
	"github.com/openobservatory/probecore/internal/probectl"
)

// Run a suite, submit its measurements and print a summary.
// Ctrl-C cancels the experiment in progress and marks the remaining ones as canceled.
func runCmd(a *probectl.App, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Run a measurement suite.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			autoRun, err := cmd.Flags().GetBool("autorun")
			if err != nil {
				return err
			}
			if autoRun {
				// Automated runs are usually scheduled, so their logs need timestamps.
				logging.ConfigureLogging(cmd.ErrOrStderr(), a.Params.LogLevel)
			}

			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Run(ctx, args[0], autoRun)
		},
	}
	cmd.Flags().Bool("autorun", false, "Run the suite as an automated run.")
	return cmd
}
