package probectl

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openobservatory/probecore/internal/common/logging"
	"github.com/openobservatory/probecore/internal/common/probecontext"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
	"github.com/openobservatory/probecore/internal/probectl/build"
	"github.com/openobservatory/probecore/internal/resultstore"
	"github.com/openobservatory/probecore/internal/runner"
)

// Run runs the named suite in a new session and prints a summary of the outcome.
// It returns an error if the run was interrupted or any measurement failed.
func (a *App) Run(ctx *probecontext.Context, suiteName string, autoRun bool) error {
	if err := a.validateParams(); err != nil {
		return err
	}
	s, err := a.Registry.New(suiteName, autoRun)
	if err != nil {
		return err
	}
	backend, err := a.newBackend()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	metrics := runner.NewMetrics(registry)
	ctx = probecontext.New(ctx, logging.WithHook(ctx.Log, logging.NewPrometheusHook(registry)))

	sess := engine.NewSession(ctx, backend, a.newMeasurer(), a.sharedResources(), engine.SessionConfig{
		SoftwareName:    softwareName,
		SoftwareVersion: build.ReleaseVersion,
		Parallelism:     a.Params.Parallelism,
	})
	defer sess.Close()
	runCtx, cancel := sess.NewContext()
	defer cancel()

	r := runner.New(runner.Config{
		TimeoutSeconds: a.Params.TimeoutSeconds,
		SubmitAttempts: a.Params.SubmitAttempts,
		SubmitDelay:    a.Params.SubmitDelay,
		CheckIn:        a.Params.CheckIn,
		Platform:       "cli",
		URLLimit:       a.Params.URLLimit,
		Categories:     a.Params.Categories,
		Parallelism:    a.Params.Parallelism,
	}, store, metrics)

	fmt.Fprintf(a.Out, "Running suite %s\n", s.Name())
	report, runErr := r.Run(runCtx, sess, s, a.settings())
	if report != nil {
		a.printReport(report)
	}
	if a.Params.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.Params.MetricsFile, registry); err != nil {
			ctx.Log.WithError(err).Warnf("Failed to write metrics to %s", a.Params.MetricsFile)
		}
	}
	if runErr != nil {
		return runErr
	}
	return report.Err
}

func (a *App) printReport(report *runner.Report) {
	for _, result := range report.Results {
		switch {
		case result.Err != nil && probeerrors.IsCancellation(result.Err):
			fmt.Fprintf(a.Out, "%s: CANCELED\n", result.Experiment.Name)
		case result.Err != nil:
			fmt.Fprintf(a.Out, "%s: FAILED: %s\n", result.Experiment.Name, result.Err)
		default:
			fmt.Fprintf(a.Out, "%s: %d measurement(s)\n", result.Experiment.Name, len(result.Records))
			for _, record := range result.Records {
				if record.Failed() {
					fmt.Fprintf(a.Out, "  %s FAILED: %s\n", inputOrDash(record), record.Failure)
				}
			}
		}
	}
	total, failed := report.NumRecords()
	fmt.Fprintf(a.Out, "\n======= SUMMARY =======\n")
	fmt.Fprintf(a.Out, "Run %s of %s in %s\n", report.RunID, report.Suite, report.Runtime.Round(time.Millisecond))
	fmt.Fprintf(a.Out, "Measurements: %d\n", total)
	fmt.Fprintf(a.Out, "Failures: %d\n", failed)
}

// Results prints the runs kept in the result store, or the records of a single run if runID is not empty.
func (a *App) Results(ctx *probecontext.Context, runID string) error {
	store, err := a.newStore()
	if err != nil {
		return err
	}
	if runID != "" {
		records, err := store.ByRun(ctx, runID)
		if err != nil {
			return err
		}
		for _, record := range records {
			status := "ok"
			if record.Failed() {
				status = record.FailureCategory
			}
			fmt.Fprintf(a.Out, "%d\t%s\t%s\t%s\t%s\n", record.Seq, record.Experiment, inputOrDash(record), record.MeasurementUID, status)
		}
		return nil
	}
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(a.Out, "%s\t%s\t%s\tautorun=%t\n", run.ID, run.StartTime.Format(time.RFC3339), run.Suite, run.AutoRun)
	}
	return nil
}

func inputOrDash(record *resultstore.Record) string {
	if record.Input == "" {
		return "-"
	}
	return record.Input
}
