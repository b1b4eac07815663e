package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openobservatory/probecore/internal/probectl"
)

func listCmd(app *probectl.App, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available suites and the experiments they would run.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			autoRun, err := cmd.Flags().GetBool("autorun")
			if err != nil {
				return err
			}
			return app.List(autoRun)
		},
	}
	cmd.Flags().Bool("autorun", false, "Show the experiments of automated runs.")
	return cmd
}

func describeCmd(app *probectl.App, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <suite>",
		Short: "Print the experiments a suite would run, in order.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			autoRun, err := cmd.Flags().GetBool("autorun")
			if err != nil {
				return err
			}
			return app.Describe(args[0], autoRun)
		},
	}
	cmd.Flags().Bool("autorun", false, "Describe the suite as composed for automated runs.")
	return cmd
}
