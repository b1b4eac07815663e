package probectl

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openobservatory/probecore/internal/common/config"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
	"github.com/openobservatory/probecore/internal/engine/local"
	"github.com/openobservatory/probecore/internal/engine/probeservices"
	"github.com/openobservatory/probecore/internal/probectl/build"
	"github.com/openobservatory/probecore/internal/resultstore"
	"github.com/openobservatory/probecore/internal/suite"
)

const softwareName = "probectl"

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer
	// Suites that can be run.
	Registry *suite.Registry
	// Shared by every session the app creates, so that resources are refreshed at most once per ResourcesMaxAge.
	resources *engine.Resources
}

// Params struct holds all user-customizable parameters.
// Using a single struct for all CLI commands ensures that all flags are distinct
// and that they can be provided either dynamically on a command line, or
// statically in a config file that's reused between command runs.
type Params struct {
	// Base URL of the probe services. If empty, measurements are kept locally.
	ProbeServicesUrl string
	// URLs measured by web_connectivity when no probe services are configured.
	Inputs []string

	ExperimentalEnabled            bool
	LongRunningAllowedInForeground bool
	// If true, no settings are passed to suite composition and the defaults apply.
	NoSettings bool

	// Per-experiment time limit in seconds. Zero or less means no limit.
	TimeoutSeconds  int64
	ResourcesMaxAge time.Duration
	SubmitAttempts  uint
	SubmitDelay     time.Duration
	CheckIn         bool
	Categories      []string
	URLLimit        int
	Parallelism     int
	// If true, measurements are faked instead of made.
	DryRun bool

	// If set, metrics are written to this file in the Prometheus text format after each run.
	MetricsFile string
	LogLevel    logrus.Level
	// If configured, run results are kept in redis; otherwise they're kept in memory for the duration of the command.
	Redis config.RedisConfig
}

// New instantiates an App with default parameters and the built-in suites.
func New() *App {
	return &App{
		Params: &Params{
			TimeoutSeconds:  90,
			ResourcesMaxAge: 6 * time.Hour,
			SubmitAttempts:  3,
			SubmitDelay:     time.Second,
			LogLevel:        logrus.InfoLevel,
		},
		Out:      os.Stdout,
		Registry: suite.DefaultRegistry(),
	}
}

func (a *App) validateParams() error {
	if a.Params.URLLimit < 0 {
		return errors.WithStack(&probeerrors.ErrValidation{
			Name:    "URLLimit",
			Value:   a.Params.URLLimit,
			Message: "must not be negative",
		})
	}
	if a.Params.SubmitAttempts == 0 {
		return errors.WithStack(&probeerrors.ErrValidation{
			Name:    "SubmitAttempts",
			Value:   a.Params.SubmitAttempts,
			Message: "at least one attempt is required",
		})
	}
	return nil
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	w.Flush()
	return nil
}

// settings returns the settings snapshot passed to suite composition, or nil if settings are disabled.
func (a *App) settings() *suite.Settings {
	if a.Params.NoSettings {
		return nil
	}
	return &suite.Settings{
		ExperimentalEnabled:            a.Params.ExperimentalEnabled,
		LongRunningAllowedInForeground: a.Params.LongRunningAllowedInForeground,
	}
}

func (a *App) sharedResources() *engine.Resources {
	if a.resources == nil {
		a.resources = engine.NewResources(a.Params.ResourcesMaxAge)
	}
	return a.resources
}

func (a *App) newBackend() (engine.Backend, error) {
	if a.Params.ProbeServicesUrl == "" {
		urls := make([]engine.URLInfo, len(a.Params.Inputs))
		for i, input := range a.Params.Inputs {
			urls[i] = engine.URLInfo{URL: input}
		}
		return local.NewBackend(engine.GeolocateResults{}, urls), nil
	}
	return probeservices.NewClient(probeservices.Config{
		BaseURL:         a.Params.ProbeServicesUrl,
		SoftwareName:    softwareName,
		SoftwareVersion: build.ReleaseVersion,
	})
}

func (a *App) newMeasurer() engine.Measurer {
	if a.Params.DryRun {
		return local.DryRunMeasurer{}
	}
	return local.NewHTTPMeasurer(&http.Client{Timeout: 30 * time.Second})
}

func (a *App) newStore() (resultstore.Store, error) {
	if a.Params.Redis.Enabled() {
		return resultstore.NewRedisStore(redis.NewClient(a.Params.Redis.AsOptions())), nil
	}
	return resultstore.NewMemDbStore()
}
