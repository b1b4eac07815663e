package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openobservatory/probecore/internal/common/app"
	"github.com/openobservatory/probecore/internal/probectl"
)

func resultsCmd(a *probectl.App, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "List stored runs, or the measurements of a single run.",
		Long:  "List stored runs, or the measurements of a single run. Results are only kept across commands if redis is configured.",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			}
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Results(ctx, runID)
		},
	}
	return cmd
}
