package engine

import "context"

// Backend is the coordinating backend a session talks to. Implementations must honour ctx and
// return either a complete result or an error.
type Backend interface {
	Geolocate(ctx context.Context) (*GeolocateResults, error)
	// FetchResources downloads the engine resources (e.g., geolocation databases).
	FetchResources(ctx context.Context) error
	Submit(ctx context.Context, measurement *Measurement) (*SubmitResults, error)
	CheckIn(ctx context.Context, config *CheckInConfig) (*CheckInResults, error)
	FetchURLList(ctx context.Context, config *URLListConfig) (*URLListResult, error)
}

// Measurer performs the measurements themselves. How an experiment detects interference is its own business;
// the session only schedules and time-bounds the calls.
type Measurer interface {
	// MeasureURL runs web connectivity against a single URL.
	MeasureURL(ctx context.Context, url string) (*URLMeasurement, error)
	// RunExperiment runs the named experiment and returns its measurement.
	RunExperiment(ctx context.Context, name string, input string) (*Measurement, error)
}
