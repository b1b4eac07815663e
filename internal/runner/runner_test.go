package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobservatory/probecore/internal/common/probecontext"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
	"github.com/openobservatory/probecore/internal/engine/local"
	"github.com/openobservatory/probecore/internal/resultstore"
	"github.com/openobservatory/probecore/internal/suite"
)

var testURLs = []engine.URLInfo{
	{URL: "https://a.example", CategoryCode: "NEWS"},
	{URL: "https://b.example", CategoryCode: "HUMR"},
	{URL: "https://c.example", CategoryCode: "NEWS"},
}

var experimentalNames = []string{"stunreachability", "dnscheck", "echcheck", "torsf", "vanilla_tor"}

// flakyBackend fails the first failures submissions with the given error.
type flakyBackend struct {
	*local.Backend
	failures int32
	err      error
	calls    int32
}

func (b *flakyBackend) Submit(ctx context.Context, m *engine.Measurement) (*engine.SubmitResults, error) {
	n := atomic.AddInt32(&b.calls, 1)
	if n <= b.failures {
		return nil, b.err
	}
	return b.Backend.Submit(ctx, m)
}

// blockingMeasurer behaves like the dry run measurer except for the named experiment, for which it
// calls onRun and then waits for its context to end.
type blockingMeasurer struct {
	local.DryRunMeasurer
	block string
	onRun func()
}

func (m *blockingMeasurer) RunExperiment(ctx context.Context, name string, input string) (*engine.Measurement, error) {
	if name != m.block {
		return m.DryRunMeasurer.RunExperiment(ctx, name, input)
	}
	if m.onRun != nil {
		m.onRun()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	backend  *local.Backend
	sess     *engine.Session
	store    *resultstore.MemDbStore
	metrics  *Metrics
	registry *prometheus.Registry
}

func newFixture(t *testing.T, backend engine.Backend, measurer engine.Measurer) *fixture {
	f := &fixture{registry: prometheus.NewRegistry()}
	if backend == nil {
		f.backend = local.NewBackend(engine.GeolocateResults{CountryCode: "IT", ASN: "AS30722"}, testURLs)
		backend = f.backend
	}
	if measurer == nil {
		measurer = local.DryRunMeasurer{}
	}
	f.sess = engine.NewSession(probecontext.Background(), backend, measurer, nil, engine.SessionConfig{})
	t.Cleanup(f.sess.Close)
	store, err := resultstore.NewMemDbStore()
	require.NoError(t, err)
	f.store = store
	f.metrics = NewMetrics(f.registry)
	return f
}

func (f *fixture) run(t *testing.T, config Config, s *suite.Suite, settings *suite.Settings) (*Report, error) {
	ctx, cancel := f.sess.NewContext()
	defer cancel()
	return New(config, f.store, f.metrics).Run(ctx, f.sess, s, settings)
}

func experimentNames(report *Report) []string {
	names := make([]string, len(report.Results))
	for i, result := range report.Results {
		names[i] = result.Experiment.Name
	}
	return names
}

func TestRun_ExperimentalSuite(t *testing.T) {
	f := newFixture(t, nil, nil)

	report, err := f.run(t, Config{}, suite.New(suite.ExperimentalDefinition()), nil)
	require.NoError(t, err)
	assert.NoError(t, report.Err)
	assert.Equal(t, experimentalNames, experimentNames(report))
	assert.Equal(t, "IT", report.Location.CountryCode)
	total, failed := report.NumRecords()
	assert.Equal(t, 5, total)
	assert.Equal(t, 0, failed)

	for _, result := range report.Results {
		require.Len(t, result.Records, 1)
		record := result.Records[0]
		assert.NotEmpty(t, record.ReportID)
		assert.NotEmpty(t, record.MeasurementUID)
		assert.Equal(t, string(suite.OriginManual), record.Origin)
	}
	assert.Len(t, f.backend.Submissions(), 5)

	stored, err := f.store.ByRun(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	for i, record := range stored {
		assert.Equal(t, experimentalNames[i], record.Experiment)
		assert.Equal(t, i, record.Seq)
	}
	runs, err := f.store.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.experiments.WithLabelValues(suite.ExperimentalSuite, "torsf", outcomeSucceeded)))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.submissions.WithLabelValues(outcomeSucceeded)))
}

func TestRun_AutoRunTagsRecords(t *testing.T) {
	f := newFixture(t, nil, nil)

	report, err := f.run(t, Config{}, suite.NewForAutoRun(suite.ExperimentalDefinition()), &suite.Settings{})
	require.NoError(t, err)
	assert.True(t, report.AutoRun)
	assert.Equal(t, experimentalNames, experimentNames(report))
	for _, result := range report.Results {
		assert.Equal(t, suite.OriginAutoRun, result.Experiment.Origin)
		assert.Equal(t, string(suite.OriginAutoRun), result.Records[0].Origin)
	}
}

func TestRun_Websites(t *testing.T) {
	f := newFixture(t, nil, nil)
	websites, err := suite.DefaultRegistry().New(suite.Websites, false)
	require.NoError(t, err)

	report, err := f.run(t, Config{URLLimit: 2}, websites, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	records := report.Results[0].Records
	require.Len(t, records, 2)
	assert.Equal(t, "https://a.example", records[0].Input)
	assert.Equal(t, "https://b.example", records[1].Input)
	assert.Equal(t, records[0].ReportID, records[1].ReportID)
}

func TestRun_WebsitesUseCheckInAssignment(t *testing.T) {
	f := newFixture(t, nil, nil)
	websites, err := suite.DefaultRegistry().New(suite.Websites, false)
	require.NoError(t, err)

	report, err := f.run(t, Config{CheckIn: true, Categories: []string{"HUMR"}}, websites, nil)
	require.NoError(t, err)
	records := report.Results[0].Records
	require.Len(t, records, 1)
	assert.Equal(t, "https://b.example", records[0].Input)
}

func TestRun_RetriesNetworkErrors(t *testing.T) {
	backend := &flakyBackend{
		Backend:  local.NewBackend(engine.GeolocateResults{}, nil),
		failures: 2,
		err:      &probeerrors.ErrNetwork{Op: "submit", Message: "unexpected status 502"},
	}
	f := newFixture(t, backend, nil)
	s := suite.New(suite.Definition{Name: "single", Baseline: []string{"dnscheck"}})

	report, err := f.run(t, Config{SubmitAttempts: 3, SubmitDelay: time.Millisecond}, s, nil)
	require.NoError(t, err)
	assert.NoError(t, report.Err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.calls))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.submitRetries))
	assert.False(t, report.Results[0].Records[0].Failed())
}

func TestRun_GivesUpAfterAttempts(t *testing.T) {
	backend := &flakyBackend{
		Backend:  local.NewBackend(engine.GeolocateResults{}, nil),
		failures: 100,
		err:      &probeerrors.ErrNetwork{Op: "submit", Message: "unexpected status 502"},
	}
	f := newFixture(t, backend, nil)
	s := suite.New(suite.Definition{Name: "single", Baseline: []string{"dnscheck"}})

	report, err := f.run(t, Config{SubmitAttempts: 2, SubmitDelay: time.Millisecond}, s, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.submitRetries))
	record := report.Results[0].Records[0]
	assert.True(t, record.Failed())
	assert.Equal(t, "network", record.FailureCategory)
	assert.Equal(t, probeerrors.CategoryNetwork, probeerrors.CategoryFromError(report.Err))
}

func TestRun_DoesNotRetryValidationErrors(t *testing.T) {
	backend := &flakyBackend{
		Backend:  local.NewBackend(engine.GeolocateResults{}, nil),
		failures: 100,
		err:      &probeerrors.ErrValidation{Name: "measurement", Message: "unexpected status 400"},
	}
	f := newFixture(t, backend, nil)
	s := suite.New(suite.Definition{Name: "single", Baseline: []string{"dnscheck"}})

	report, err := f.run(t, Config{SubmitAttempts: 5, SubmitDelay: time.Millisecond}, s, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
	assert.Equal(t, "validation", report.Results[0].Records[0].FailureCategory)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.submitRetries))
}

func TestRun_ExperimentTimeoutDoesNotStopRun(t *testing.T) {
	f := newFixture(t, nil, &blockingMeasurer{block: "dnscheck"})

	report, err := f.run(t, Config{TimeoutSeconds: 1}, suite.New(suite.ExperimentalDefinition()), nil)
	require.NoError(t, err)
	assert.Equal(t, experimentalNames, experimentNames(report))
	assert.Equal(t, probeerrors.CategoryDeadlineExceeded, probeerrors.CategoryFromError(report.Results[1].Err))
	for _, i := range []int{0, 2, 3, 4} {
		assert.NoError(t, report.Results[i].Err)
	}
	_, failed := report.NumRecords()
	assert.Equal(t, 1, failed)
	var merr *multierror.Error
	require.ErrorAs(t, report.Err, &merr)
	assert.Len(t, merr.Errors, 1)
}

func TestRun_CancellationMarksRemainingExperiments(t *testing.T) {
	measurer := &blockingMeasurer{block: "dnscheck"}
	f := newFixture(t, nil, measurer)
	ctx, cancel := f.sess.NewContext()
	defer cancel()
	measurer.onRun = cancel

	report, err := New(Config{}, f.store, f.metrics).Run(ctx, f.sess, suite.New(suite.ExperimentalDefinition()), nil)
	assert.Equal(t, probeerrors.CategoryCanceled, probeerrors.CategoryFromError(err))
	require.NotNil(t, report)
	assert.Equal(t, experimentalNames, experimentNames(report))
	assert.NoError(t, report.Results[0].Err)
	for _, result := range report.Results[1:] {
		assert.Equal(t, probeerrors.CategoryCanceled, probeerrors.CategoryFromError(result.Err), result.Experiment.Name)
	}
	assert.Empty(t, report.Results[2].Records)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.experiments.WithLabelValues(suite.ExperimentalSuite, "vanilla_tor", outcomeCanceled)))
	// Only stunreachability and the interrupted dnscheck are timed; experiments that never ran are just counted.
	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics.experimentDuration))

	// Records of the canceled run are stored.
	stored, err := f.store.ByRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx, cancel := f.sess.NewContext()
	cancel()

	report, err := New(Config{}, nil, nil).Run(ctx, f.sess, suite.New(suite.ExperimentalDefinition()), nil)
	assert.Equal(t, probeerrors.CategoryCanceled, probeerrors.CategoryFromError(err))
	assert.Len(t, report.Results, 5)
	assert.Empty(t, f.backend.Submissions())
}

// locationlessBackend answers geolocation with neither a location nor an error.
type locationlessBackend struct {
	*local.Backend
}

func (b *locationlessBackend) Geolocate(ctx context.Context) (*engine.GeolocateResults, error) {
	return nil, nil
}

func TestRun_MissingLocationIsNotFatal(t *testing.T) {
	backend := &locationlessBackend{Backend: local.NewBackend(engine.GeolocateResults{}, testURLs)}
	f := newFixture(t, backend, nil)
	websites, err := suite.DefaultRegistry().New(suite.Websites, false)
	require.NoError(t, err)

	report, err := f.run(t, Config{URLLimit: 1}, websites, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Location)
	assert.NoError(t, report.Err)
	require.Len(t, report.Results[0].Records, 1)
}
