package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openobservatory/probecore/internal/common/config"
	"github.com/openobservatory/probecore/internal/probectl"
)

func addParamsCommandlineArgs(cmd *cobra.Command, v *viper.Viper, defaults *probectl.Params) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.probectl.yaml)")
	flags.String("probeServicesUrl", defaults.ProbeServicesUrl, "base URL of the probe services; if empty, measurements are kept locally")
	flags.StringSlice("inputs", defaults.Inputs, "URLs to measure when no probe services are configured")
	flags.Bool("experimentalEnabled", defaults.ExperimentalEnabled, "allow experimental suites to run")
	flags.Bool("longRunningAllowedInForeground", defaults.LongRunningAllowedInForeground, "include long-running experiments in manual runs")
	flags.Bool("noSettings", defaults.NoSettings, "compose suites without user settings")
	flags.Int64("timeoutSeconds", defaults.TimeoutSeconds, "per-experiment time limit in seconds; zero or less means no limit")
	flags.Duration("resourcesMaxAge", defaults.ResourcesMaxAge, "how long fetched resources are considered fresh")
	flags.Uint("submitAttempts", defaults.SubmitAttempts, "number of attempts to submit each measurement")
	flags.Duration("submitDelay", defaults.SubmitDelay, "delay between submission attempts")
	flags.Bool("checkIn", defaults.CheckIn, "check in with the probe services before running")
	flags.StringSlice("categories", defaults.Categories, "URL categories to measure, e.g. NEWS,HUMR")
	flags.Int("urlLimit", defaults.URLLimit, "maximum number of URLs measured by web_connectivity; zero means no limit")
	flags.Int("parallelism", defaults.Parallelism, "number of URLs measured concurrently")
	flags.Bool("dryRun", defaults.DryRun, "fake measurements instead of making them")
	flags.String("metricsFile", defaults.MetricsFile, "write run metrics to this file in the Prometheus text format")
	flags.String("logLevel", defaults.LogLevel.String(), "log level: debug, info, warn or error")
	flags.String("redis.addr", defaults.Redis.Addr, "host:port of a redis server used to keep run results")
	flags.Int("redis.db", defaults.Redis.DB, "redis database number")

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			v.BindPFlag(f.Name, f)
		}
	})
}

func initParams(cmd *cobra.Command, app *probectl.App, v *viper.Viper) error {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if err := config.LoadCommandlineArgsFromConfigFile(v, cfgFile, "probectl"); err != nil {
		return err
	}
	if err := v.Unmarshal(app.Params, config.CustomHooks...); err != nil {
		return err
	}
	app.Out = cmd.OutOrStdout()
	logrus.SetLevel(app.Params.LogLevel)
	return nil
}
