package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openobservatory/probecore/internal/probectl"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probectl",
		Short: "probectl runs network measurement suites.",
		Long: `probectl runs network measurement suites and submits the results to the probe services.

Persistent config can be saved in a config file so it doesn't have to be specified every command.

Example structure:
probeServicesUrl: https://api.example.org
experimentalEnabled: true
timeoutSeconds: 120
redis:
  addr: localhost:6379

The location of this file can be passed in using the --config argument.
If not provided, $HOME/.probectl.yaml is used.`,
		SilenceUsage: true,
	}

	v := viper.New()
	addParamsCommandlineArgs(cmd, v, probectl.New().Params)

	cmd.AddCommand(
		versionCmd(probectl.New(), v),
		listCmd(probectl.New(), v),
		describeCmd(probectl.New(), v),
		runCmd(probectl.New(), v),
		resultsCmd(probectl.New(), v),
	)

	return cmd
}
