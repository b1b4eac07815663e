// Package runner executes the experiments of a suite against a session and submits their measurements.
package runner

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openobservatory/probecore/internal/common/logging"
	"github.com/openobservatory/probecore/internal/common/probecontext"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/common/util"
	"github.com/openobservatory/probecore/internal/engine"
	"github.com/openobservatory/probecore/internal/resultstore"
	"github.com/openobservatory/probecore/internal/suite"
)

const webConnectivity = "web_connectivity"

type Config struct {
	// Time limit for each experiment, including submission. Zero or less means no limit.
	TimeoutSeconds int64
	// Number of times a submission is attempted. Only network errors are retried.
	SubmitAttempts uint
	// Delay before the first retry of a submission; later retries back off.
	SubmitDelay time.Duration
	// If true, the backend is asked for URLs and report ids before the run starts.
	CheckIn bool
	Platform string
	// Maximum number of URLs measured by web_connectivity. Zero means no limit.
	URLLimit int
	// Categories of URLs measured by web_connectivity. Empty means all.
	Categories []string
	// Number of URLs measured at once. Zero or less uses the session default.
	Parallelism int
}

type Runner struct {
	config  Config
	store   resultstore.Store
	metrics *Metrics
}

// New creates a runner. store and metrics may be nil.
func New(config Config, store resultstore.Store, metrics *Metrics) *Runner {
	if config.SubmitAttempts == 0 {
		config.SubmitAttempts = 1
	}
	return &Runner{config: config, store: store, metrics: metrics}
}

// ExperimentResult is the outcome of one experiment. Err is set if the experiment could not run at all;
// failures of individual measurements are recorded in Records.
type ExperimentResult struct {
	Experiment suite.Experiment
	Records    []*resultstore.Record
	Err        error
}

type Report struct {
	RunID     string
	Suite     string
	AutoRun   bool
	StartTime time.Time
	Runtime   time.Duration
	// Nil if geolocation failed.
	Location *engine.GeolocateResults
	Results  []*ExperimentResult
	// Every experiment and submission failure of the run, as a *multierror.Error.
	Err error
}

// NumRecords returns the number of measurements the run recorded, and how many of them failed.
func (r *Report) NumRecords() (total int, failed int) {
	for _, result := range r.Results {
		for _, record := range result.Records {
			total++
			if record.Failed() {
				failed++
			}
		}
	}
	return
}

// run holds the state of a single call to Run.
type run struct {
	*Runner
	sess     *engine.Session
	report   *Report
	checkIn  *engine.CheckInResults
	seq      int
	failures *multierror.Error
}

// Run runs the experiments of s, in order, and returns what happened. Failures of individual experiments
// don't stop the run. If ctx ends, the remaining experiments are marked canceled and the report is
// returned together with the cancellation error.
func (r *Runner) Run(ctx *probecontext.Context, sess *engine.Session, s *suite.Suite, settings *suite.Settings) (*Report, error) {
	report := &Report{
		RunID:     util.NewUUID(),
		Suite:     s.Name(),
		AutoRun:   s.AutoRun(),
		StartTime: time.Now().UTC(),
	}
	ctx = probecontext.WithLogFields(ctx, logrus.Fields{"run": report.RunID, "suite": report.Suite})
	rn := &run{Runner: r, sess: sess, report: report}
	defer func() {
		report.Runtime = time.Since(report.StartTime)
		report.Err = rn.failures.ErrorOrNil()
	}()

	if r.store != nil {
		err := r.store.SaveRun(probecontext.New(context.Background(), ctx.Log), &resultstore.Run{ID: report.RunID, Suite: report.Suite, AutoRun: report.AutoRun, StartTime: report.StartTime})
		if err != nil {
			return report, err
		}
	}

	if err := rn.prepare(ctx); err != nil {
		rn.cancelRemaining(s.TestList(settings), 0, err)
		return report, err
	}

	experiments := s.TestList(settings)
	ctx.Log.Infof("Running %d experiments", len(experiments))
	for i, experiment := range experiments {
		if err := probeerrors.FromContext(ctx, "run"); err != nil {
			rn.cancelRemaining(experiments, i, err)
			return report, err
		}
		result := rn.runExperiment(ctx, experiment)
		report.Results = append(report.Results, result)
		if probeerrors.IsCancellation(result.Err) && ctx.Err() != nil {
			rn.cancelRemaining(experiments, i+1, result.Err)
			return report, probeerrors.FromContext(ctx, "run")
		}
	}
	return report, nil
}

// prepare refreshes resources, geolocates the probe and, if configured, checks in. Only cancellation
// is fatal; the run goes ahead with whatever succeeded.
func (rn *run) prepare(ctx *probecontext.Context) error {
	if err := rn.sess.MaybeUpdateResources(ctx); err != nil {
		if probeerrors.IsCancellation(err) {
			return err
		}
		logging.WithStacktrace(ctx.Log, err).Warn("Failed to update resources; continuing with the ones we have")
	}

	location, err := rn.sess.Geolocate(ctx)
	if err != nil {
		if probeerrors.IsCancellation(err) {
			return err
		}
		logging.WithStacktrace(ctx.Log, err).Warn("Geolocation failed")
	} else {
		rn.report.Location = location
		ctx.Log.Infof("Probe is in %s (%s)", location.CountryCode, location.ASN)
	}

	if !rn.config.CheckIn {
		return nil
	}
	runType := engine.RunTypeManual
	if rn.report.AutoRun {
		runType = engine.RunTypeTimed
	}
	checkIn, err := rn.sess.CheckIn(ctx, &engine.CheckInConfig{
		Platform:   rn.config.Platform,
		RunType:    runType,
		Categories: rn.config.Categories,
	})
	if err != nil {
		if probeerrors.IsCancellation(err) {
			return err
		}
		logging.WithStacktrace(ctx.Log, err).Warn("Check-in failed")
		return nil
	}
	rn.checkIn = checkIn
	return nil
}

func (rn *run) runExperiment(parent *probecontext.Context, experiment suite.Experiment) *ExperimentResult {
	start := time.Now()
	ctx, cancel := probecontext.WithTimeoutSeconds(
		probecontext.WithLogFields(parent, logrus.Fields{"experiment": experiment.Name, "origin": experiment.Origin}),
		rn.config.TimeoutSeconds,
	)
	defer cancel()
	ctx.Log.Info("Starting experiment")

	result := &ExperimentResult{Experiment: experiment}
	var measurements []*engine.URLMeasurement
	if experiment.Name == webConnectivity {
		measurements, result.Err = rn.measureWebsites(ctx)
	} else {
		var m *engine.Measurement
		if m, result.Err = rn.sess.RunExperiment(ctx, experiment.Name, ""); result.Err == nil {
			measurements = []*engine.URLMeasurement{{Measurement: m}}
		}
	}

	for _, m := range measurements {
		result.Records = append(result.Records, rn.submit(ctx, experiment, m))
	}
	if result.Err != nil {
		record := rn.newRecord(experiment, "")
		record.StartTime = start.UTC()
		setFailure(record, result.Err)
		result.Records = append(result.Records, record)
		rn.failures = multierror.Append(rn.failures, errors.WithMessagef(result.Err, "experiment %s", experiment.Name))
	}
	if rn.store != nil {
		// Results are stored even if the run has been canceled.
		if err := rn.store.Save(probecontext.New(context.Background(), parent.Log), result.Records...); err != nil {
			logging.WithStacktrace(ctx.Log, err).Error("Failed to store results")
		}
	}

	outcome := outcomeSucceeded
	switch {
	case probeerrors.IsCancellation(result.Err):
		outcome = outcomeCanceled
	case result.Err != nil:
		outcome = outcomeFailed
	}
	rn.metrics.recordExperiment(experiment.Suite, experiment.Name, outcome, time.Since(start))
	if result.Err != nil {
		logging.WithStacktrace(ctx.Log, result.Err).Warnf("Experiment %s", outcome)
	} else {
		ctx.Log.Infof("Experiment finished with %d measurements in %s", len(result.Records), time.Since(start))
	}
	return result
}

// measureWebsites measures the URLs assigned at check-in or, failing that, fetched from the backend.
func (rn *run) measureWebsites(ctx *probecontext.Context) ([]*engine.URLMeasurement, error) {
	var urls []string
	if assignment := rn.checkIn.Assignment(webConnectivity); assignment != nil && len(assignment.URLs) > 0 {
		for _, u := range assignment.URLs {
			urls = append(urls, u.URL)
		}
	} else {
		config := &engine.URLListConfig{Categories: rn.config.Categories, Limit: rn.config.URLLimit}
		if rn.report.Location != nil {
			config.CountryCode = rn.report.Location.CountryCode
		}
		list, err := rn.sess.FetchURLList(ctx, config)
		if err != nil {
			return nil, err
		}
		for _, u := range list.URLs {
			urls = append(urls, u.URL)
		}
	}
	if rn.config.URLLimit > 0 && len(urls) > rn.config.URLLimit {
		urls = urls[:rn.config.URLLimit]
	}
	if len(urls) == 0 {
		ctx.Log.Warn("No URLs to measure")
		return nil, nil
	}
	res, err := rn.sess.WebConnectivity(ctx, &engine.WebConnectivityConfig{URLs: urls, Parallelism: rn.config.Parallelism})
	if err != nil {
		return nil, err
	}
	return res.Measurements, nil
}

// submit submits a measurement, retrying on network errors, and returns the record describing the outcome.
func (rn *run) submit(ctx *probecontext.Context, experiment suite.Experiment, m *engine.URLMeasurement) *resultstore.Record {
	record := rn.newRecord(experiment, m.URL)
	if m.Measurement == nil {
		record.Failure = m.Failure
		record.FailureCategory = probeerrors.CategoryUnknown.String()
		return record
	}
	if record.Input == "" {
		record.Input = m.Measurement.Input
	}
	record.StartTime = m.Measurement.StartTime

	start := time.Now()
	res, err := rn.submitWithRetry(ctx, m.Measurement)
	record.Runtime = time.Since(start)
	if err != nil {
		rn.metrics.recordSubmission(outcomeFailed)
		setFailure(record, err)
		rn.failures = multierror.Append(rn.failures, errors.WithMessagef(err, "submitting %s measurement", experiment.Name))
		return record
	}
	rn.metrics.recordSubmission(outcomeSucceeded)
	record.ReportID = res.ReportID
	record.MeasurementUID = res.MeasurementUID
	return record
}

func (rn *run) submitWithRetry(ctx *probecontext.Context, m *engine.Measurement) (*engine.SubmitResults, error) {
	var res *engine.SubmitResults
	err := retry.Do(
		func() error {
			var err error
			res, err = rn.sess.SubmitMeasurement(ctx, m)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(rn.config.SubmitAttempts),
		retry.Delay(rn.config.SubmitDelay),
		retry.RetryIf(probeerrors.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			ctx.Log.WithError(err).Warnf("Submission attempt %d failed", n+1)
			// Also called after the last attempt, which is not followed by a retry.
			if n+1 < rn.config.SubmitAttempts {
				rn.metrics.recordSubmitRetry()
			}
		}),
	)
	if err != nil {
		// retry-go returns the bare context error if ctx ends while it is waiting.
		if ctxErr := probeerrors.FromContext(ctx, "submit"); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return res, nil
}

func (rn *run) newRecord(experiment suite.Experiment, input string) *resultstore.Record {
	record := &resultstore.Record{
		ID:         util.NewULID(),
		RunID:      rn.report.RunID,
		Suite:      experiment.Suite,
		Experiment: experiment.Name,
		Origin:     string(experiment.Origin),
		Input:      input,
		Seq:        rn.seq,
	}
	rn.seq++
	return record
}

func setFailure(record *resultstore.Record, err error) {
	record.Failure = err.Error()
	record.FailureCategory = probeerrors.CategoryFromError(err).String()
}

// cancelRemaining marks experiments[from:] as canceled without running them.
func (rn *run) cancelRemaining(experiments []suite.Experiment, from int, cause error) {
	for _, experiment := range experiments[from:] {
		rn.report.Results = append(rn.report.Results, &ExperimentResult{Experiment: experiment, Err: cause})
		rn.metrics.recordSkippedExperiment(experiment.Suite, experiment.Name)
	}
	if len(experiments) > from {
		rn.failures = multierror.Append(rn.failures, errors.WithMessagef(cause, "%d experiments not run", len(experiments)-from))
	}
}
