// Package engine contains the Session, the short-lived handle through which the probe talks to
// the measurement engine and the coordinating backend.
//
// A Session is created for one sequence of operations (one run of a suite, one check-in) and then
// forgotten. Every operation takes a *probecontext.Context; the context is checked before each
// call into the backend or the measurer, and when it has ended the operation fails with
// probeerrors.ErrCanceled or probeerrors.ErrDeadlineExceeded. Operations are atomic with respect
// to failure: they return either a complete result or an error.
//
// A Session must not be shared between unrelated campaigns, but contexts derived from one of its
// contexts may run concurrent operations against it.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/openobservatory/probecore/internal/common/probecontext"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/common/util"
)

const defaultParallelism = 4

type SessionConfig struct {
	SoftwareName    string
	SoftwareVersion string
	// Default bound on concurrent URL measurements.
	Parallelism int
}

type Session struct {
	id        string
	config    SessionConfig
	backend   Backend
	measurer  Measurer
	resources *Resources
	// Every context handed out by the session derives from root; Close cancels it.
	root   *probecontext.Context
	cancel context.CancelFunc
}

// NewSession creates a session whose contexts all derive from parent.
// resources may be shared between sessions; if nil, a tracker that always refreshes is used.
func NewSession(parent *probecontext.Context, backend Backend, measurer Measurer, resources *Resources, config SessionConfig) *Session {
	if resources == nil {
		resources = NewResources(0)
	}
	if config.Parallelism <= 0 {
		config.Parallelism = defaultParallelism
	}
	id := util.NewUUID()
	root, cancel := probecontext.WithCancel(probecontext.WithLogField(parent, "session", id))
	root.Log.Debug("Session created")
	return &Session{
		id:        id,
		config:    config,
		backend:   backend,
		measurer:  measurer,
		resources: resources,
		root:      root,
		cancel:    cancel,
	}
}

func (s *Session) ID() string {
	return s.id
}

// NewContext creates a new context without a timeout.
func (s *Session) NewContext() (*probecontext.Context, context.CancelFunc) {
	return probecontext.WithCancel(s.root)
}

// NewContextWithTimeout creates a new context that times out after the given number of seconds.
// A zero or negative timeout is equivalent to NewContext.
func (s *Session) NewContextWithTimeout(seconds int64) (*probecontext.Context, context.CancelFunc) {
	return probecontext.WithTimeoutSeconds(s.root, seconds)
}

// Close cancels every context created by this session. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
	s.root.Log.Debug("Session closed")
}

// Geolocate returns the probe's geolocation.
func (s *Session) Geolocate(ctx *probecontext.Context) (*GeolocateResults, error) {
	res, err := invoke(ctx, "geolocate", s.backend.Geolocate)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNoResult("geolocate")
	}
	return res, nil
}

// MaybeUpdateResources refreshes engine resources if they are stale and does nothing otherwise.
// A failure is returned as probeerrors.ErrResourceUpdate; stale resources are still usable, so callers
// should not abort a run because of it.
func (s *Session) MaybeUpdateResources(ctx *probecontext.Context) error {
	const op = "maybe-update-resources"
	if err := probeerrors.FromContext(ctx, op); err != nil {
		return err
	}
	if err := s.resources.refresh.Acquire(ctx, 1); err != nil {
		if ctxErr := probeerrors.FromContext(ctx, op); ctxErr != nil {
			return ctxErr
		}
		return errors.WithStack(err)
	}
	defer s.resources.refresh.Release(1)

	if s.resources.IsFresh(assetsKey) {
		ctx.Log.Debug("Resources are fresh, not updating")
		return nil
	}

	_, err := invoke(ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.FetchResources(ctx)
	})
	if err != nil {
		if probeerrors.IsCancellation(err) {
			return err
		}
		return errors.WithStack(&probeerrors.ErrResourceUpdate{Resource: assetsKey, Err: err})
	}
	s.resources.markFresh(assetsKey, time.Now())
	ctx.Log.Debug("Resources updated")
	return nil
}

// Submit submits a serialized measurement. The measurement must be a JSON object with a test_name.
func (s *Session) Submit(ctx *probecontext.Context, measurement []byte) (*SubmitResults, error) {
	m, err := ParseMeasurement(measurement)
	if err != nil {
		return nil, err
	}
	return s.SubmitMeasurement(ctx, m)
}

// SubmitMeasurement is Submit for a measurement that has already been parsed.
func (s *Session) SubmitMeasurement(ctx *probecontext.Context, m *Measurement) (*SubmitResults, error) {
	if m == nil || m.TestName == "" || len(m.Raw) == 0 {
		name := ""
		if m != nil {
			name = m.TestName
		}
		return nil, errors.WithStack(&probeerrors.ErrValidation{
			Name:    "measurement",
			Value:   name,
			Message: "measurement has no test name or no content",
		})
	}
	res, err := invoke(ctx, "submit", func(ctx context.Context) (*SubmitResults, error) {
		return s.backend.Submit(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.ReportID == "" || res.MeasurementUID == "" {
		return nil, errors.WithStack(&probeerrors.ErrNetwork{Op: "submit", Message: "backend returned an incomplete submission result"})
	}
	return res, nil
}

// CheckIn asks the backend which tests the probe should run.
func (s *Session) CheckIn(ctx *probecontext.Context, config *CheckInConfig) (*CheckInResults, error) {
	if config == nil {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "config", Value: nil, Message: "check-in config is required"})
	}
	c := *config
	if c.SoftwareName == "" {
		c.SoftwareName = s.config.SoftwareName
	}
	if c.SoftwareVersion == "" {
		c.SoftwareVersion = s.config.SoftwareVersion
	}
	if c.RunType == "" {
		c.RunType = RunTypeManual
	}
	res, err := invoke(ctx, "check-in", func(ctx context.Context) (*CheckInResults, error) {
		return s.backend.CheckIn(ctx, &c)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNoResult("check-in")
	}
	return res, nil
}

// FetchURLList fetches the list of URLs to test. The result is never nil on success but may be empty.
func (s *Session) FetchURLList(ctx *probecontext.Context, config *URLListConfig) (*URLListResult, error) {
	if config == nil {
		config = &URLListConfig{}
	}
	if config.Limit < 0 {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "limit", Value: config.Limit, Message: "limit must not be negative"})
	}
	res, err := invoke(ctx, "fetch-url-list", func(ctx context.Context) (*URLListResult, error) {
		return s.backend.FetchURLList(ctx, config)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &URLListResult{}
	}
	if res.URLs == nil {
		res.URLs = []URLInfo{}
	}
	return res, nil
}

// WebConnectivity measures every URL in config, in parallel, and returns one result per URL in request order.
// A URL whose measurement fails gets a result with Failure set; only cancellation fails the whole operation.
func (s *Session) WebConnectivity(ctx *probecontext.Context, config *WebConnectivityConfig) (*WebConnectivityResults, error) {
	const op = "web-connectivity"
	if config == nil {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "config", Value: nil, Message: "web connectivity config is required"})
	}
	if err := probeerrors.FromContext(ctx, op); err != nil {
		return nil, err
	}
	urls := slices.Clone(config.URLs)
	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = s.config.Parallelism
	}

	measurements := make([]*URLMeasurement, len(urls))
	g, groupCtx := probecontext.ErrGroup(ctx)
	g.SetLimit(parallelism)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			urlCtx := probecontext.WithLogField(groupCtx, "url", url)
			m, err := invoke(urlCtx, op, func(ctx context.Context) (*URLMeasurement, error) {
				return s.measurer.MeasureURL(ctx, url)
			})
			if err != nil {
				if probeerrors.IsCancellation(err) {
					return err
				}
				urlCtx.Log.WithError(err).Warn("Measuring URL failed")
				m = &URLMeasurement{URL: url, Failure: err.Error()}
			} else if m == nil {
				m = &URLMeasurement{URL: url, Failure: "measurer returned no result"}
			}
			measurements[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// The group context is canceled by the first failure; report the caller's own context state when it ended.
		if ctxErr := probeerrors.FromContext(ctx, op); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return &WebConnectivityResults{Measurements: measurements}, nil
}

// RunExperiment runs the named experiment with the given input (empty for experiments without input).
func (s *Session) RunExperiment(ctx *probecontext.Context, name string, input string) (*Measurement, error) {
	if name == "" {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "experiment", Value: name, Message: "experiment name is required"})
	}
	ctx = probecontext.WithLogFields(ctx, logrus.Fields{"experiment": name})
	res, err := invoke(ctx, "run-experiment", func(ctx context.Context) (*Measurement, error) {
		return s.measurer.RunExperiment(ctx, name, input)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNoResult("run-experiment")
	}
	return res, nil
}

func errNoResult(op string) error {
	return errors.WithStack(&probeerrors.ErrNetwork{Op: op, Message: "backend returned no result"})
}

// invoke calls fn once ctx has been checked, and turns a failure caused by ctx ending into the matching
// cancellation error. On failure the zero value is returned so that callers never see partial results.
func invoke[T any](ctx *probecontext.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := probeerrors.FromContext(ctx, op); err != nil {
		return zero, err
	}
	start := time.Now()
	res, err := fn(ctx)
	if err != nil {
		if ctxErr := probeerrors.FromContext(ctx, op); ctxErr != nil {
			return zero, ctxErr
		}
		if probeerrors.IsCancellation(err) {
			return zero, err
		}
		ctx.Log.WithError(err).Debugf("%s failed after %s", op, time.Since(start))
		return zero, errors.WithMessage(err, op)
	}
	ctx.Log.Debugf("%s completed in %s", op, time.Since(start))
	return res, nil
}

type measurementHeader struct {
	TestName             string `json:"test_name"`
	Input                string `json:"input"`
	MeasurementStartTime string `json:"measurement_start_time"`
}

// measurementTimeFormat is the timestamp layout used inside measurement documents.
const measurementTimeFormat = "2006-01-02 15:04:05"

// ParseMeasurement validates a serialized measurement and extracts the fields needed to route it.
func ParseMeasurement(data []byte) (*Measurement, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "measurement", Value: "", Message: "measurement is empty"})
	}
	var header measurementHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "measurement", Value: truncate(string(data)), Message: err.Error()})
	}
	if header.TestName == "" {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "test_name", Value: "", Message: "measurement has no test_name"})
	}
	m := &Measurement{
		TestName: header.TestName,
		Input:    header.Input,
		Raw:      json.RawMessage(slices.Clone(data)),
	}
	if header.MeasurementStartTime != "" {
		if t, err := time.Parse(measurementTimeFormat, header.MeasurementStartTime); err == nil {
			m.StartTime = t
		}
	}
	return m, nil
}

// NewMeasurement builds a measurement document with the standard header and the given test keys.
func NewMeasurement(testName string, input string, start time.Time, testKeys interface{}) (*Measurement, error) {
	doc := map[string]interface{}{
		"test_name":              testName,
		"input":                  input,
		"measurement_start_time": start.UTC().Format(measurementTimeFormat),
		"test_keys":              testKeys,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "test_keys", Value: testKeys, Message: err.Error()})
	}
	return &Measurement{TestName: testName, Input: input, StartTime: start.UTC().Truncate(time.Second), Raw: raw}, nil
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
