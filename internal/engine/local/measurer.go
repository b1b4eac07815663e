package local

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
)

// DryRunMeasurer produces measurements with empty test keys without touching the network.
type DryRunMeasurer struct{}

func (DryRunMeasurer) MeasureURL(ctx context.Context, url string) (*engine.URLMeasurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := engine.NewMeasurement("web_connectivity", url, time.Now(), map[string]interface{}{"dry_run": true})
	if err != nil {
		return nil, err
	}
	return &engine.URLMeasurement{URL: url, Measurement: m}, nil
}

func (DryRunMeasurer) RunExperiment(ctx context.Context, name string, input string) (*engine.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return engine.NewMeasurement(name, input, time.Now(), map[string]interface{}{"dry_run": true})
}

// httpTestKeys are the test keys of a web connectivity measurement made with a plain HTTP fetch.
type httpTestKeys struct {
	Accessible  bool    `json:"accessible"`
	StatusCode  int     `json:"http_status_code,omitempty"`
	BodyLength  int64   `json:"http_body_length"`
	Failure     *string `json:"failure"`
	RuntimeSecs float64 `json:"runtime"`
}

// HTTPMeasurer measures web connectivity by fetching each URL. It does not implement any other experiment.
type HTTPMeasurer struct {
	client *http.Client
	// Upper bound on the number of body bytes read per URL.
	maxBody int64
}

// NewHTTPMeasurer returns a measurer that uses client, or http.DefaultClient if client is nil.
func NewHTTPMeasurer(client *http.Client) *HTTPMeasurer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPMeasurer{client: client, maxBody: 1 << 20}
}

// MeasureURL fetches url. A failed fetch is not an error: it is recorded in the measurement, which
// is what gets submitted. Only an ended context is returned as an error.
func (m *HTTPMeasurer) MeasureURL(ctx context.Context, url string) (*engine.URLMeasurement, error) {
	start := time.Now()
	keys := httpTestKeys{}
	failure := m.fetch(ctx, url, &keys)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys.RuntimeSecs = time.Since(start).Seconds()
	res := &engine.URLMeasurement{URL: url}
	if failure != nil {
		s := failure.Error()
		keys.Failure = &s
		res.Failure = s
	}
	meas, err := engine.NewMeasurement("web_connectivity", url, start, keys)
	if err != nil {
		return nil, err
	}
	res.Measurement = meas
	return res, nil
}

func (m *HTTPMeasurer) fetch(ctx context.Context, url string, keys *httpTestKeys) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	keys.StatusCode = resp.StatusCode
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, m.maxBody))
	keys.BodyLength = n
	if err != nil {
		return err
	}
	keys.Accessible = resp.StatusCode < 400
	return nil
}

func (m *HTTPMeasurer) RunExperiment(ctx context.Context, name string, input string) (*engine.Measurement, error) {
	return nil, errors.WithStack(&probeerrors.ErrValidation{
		Name:    "experiment",
		Value:   name,
		Message: "experiment is not supported by the http measurer",
	})
}
