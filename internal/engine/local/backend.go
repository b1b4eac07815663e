// Package local contains in-process implementations of the engine boundaries: a Backend that keeps
// submissions in memory, used when no probe services are configured, and Measurers that need no
// external engine.
package local

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/openobservatory/probecore/internal/common/util"
	"github.com/openobservatory/probecore/internal/engine"
)

// Backend is an offline engine.Backend. Reports are opened per experiment the first time a
// measurement for it is submitted, and every submission is kept so it can be inspected later.
type Backend struct {
	location engine.GeolocateResults
	urls     []engine.URLInfo

	mu          sync.Mutex
	reports     map[string]string
	submissions []*engine.Measurement
}

// NewBackend creates a backend that reports the given location and serves the given URLs.
func NewBackend(location engine.GeolocateResults, urls []engine.URLInfo) *Backend {
	if location.ASN == "" {
		location.ASN = "AS0"
	}
	if location.CountryCode == "" {
		location.CountryCode = "ZZ"
	}
	return &Backend{
		location: location,
		urls:     slices.Clone(urls),
		reports:  map[string]string{},
	}
}

func (b *Backend) Geolocate(ctx context.Context) (*engine.GeolocateResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	location := b.location
	return &location, nil
}

func (b *Backend) FetchResources(ctx context.Context) error {
	return ctx.Err()
}

func (b *Backend) Submit(ctx context.Context, measurement *engine.Measurement) (*engine.SubmitResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	reportID := b.reportFor(measurement.TestName)
	b.submissions = append(b.submissions, measurement)
	return &engine.SubmitResults{ReportID: reportID, MeasurementUID: util.NewULID()}, nil
}

// Must be called with mu held.
func (b *Backend) reportFor(testName string) string {
	if id, ok := b.reports[testName]; ok {
		return id
	}
	id := util.NewUUID()
	b.reports[testName] = id
	return id
}

func (b *Backend) CheckIn(ctx context.Context, config *engine.CheckInConfig) (*engine.CheckInResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	reportID := b.reportFor("web_connectivity")
	b.mu.Unlock()
	return &engine.CheckInResults{
		ProbeASN: b.location.ASN,
		ProbeCC:  b.location.CountryCode,
		UTCTime:  time.Now().UTC(),
		Assignments: map[string]*engine.CheckInAssignment{
			"web_connectivity": {ReportID: reportID, URLs: b.filter(config.Categories, 0)},
		},
	}, nil
}

func (b *Backend) FetchURLList(ctx context.Context, config *engine.URLListConfig) (*engine.URLListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &engine.URLListResult{URLs: b.filter(config.Categories, config.Limit)}, nil
}

func (b *Backend) filter(categories []string, limit int) []engine.URLInfo {
	urls := make([]engine.URLInfo, 0, len(b.urls))
	for _, u := range b.urls {
		if len(categories) > 0 && !slices.Contains(categories, u.CategoryCode) {
			continue
		}
		urls = append(urls, u)
		if limit > 0 && len(urls) == limit {
			break
		}
	}
	return urls
}

// Submissions returns every measurement submitted so far, in submission order.
func (b *Backend) Submissions() []*engine.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.submissions)
}
