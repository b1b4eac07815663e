package engine

import (
	"encoding/json"
	"time"
)

// RunType tells the backend whether the user or the scheduler started a run.
type RunType string

const (
	RunTypeManual RunType = "manual"
	RunTypeTimed  RunType = "timed"
)

type GeolocateResults struct {
	ProbeIP     string `json:"probe_ip"`
	ASN         string `json:"probe_asn"`
	CountryCode string `json:"probe_cc"`
	NetworkName string `json:"probe_network_name"`
}

// Measurement is a single measurement ready for submission. Raw is the full measurement document;
// TestName and Input are copied out of it so the backend can route the submission.
type Measurement struct {
	TestName  string
	Input     string
	StartTime time.Time
	Raw       json.RawMessage
}

type SubmitResults struct {
	ReportID       string
	MeasurementUID string
}

type CheckInConfig struct {
	Charging        bool
	OnWiFi          bool
	Platform        string
	RunType         RunType
	SoftwareName    string
	SoftwareVersion string
	// Categories restricts the URLs assigned to web_connectivity.
	Categories []string
}

type URLInfo struct {
	URL          string `json:"url"`
	CategoryCode string `json:"category_code"`
	CountryCode  string `json:"country_code"`
}

// CheckInAssignment is what the backend wants a probe to do for one experiment.
type CheckInAssignment struct {
	ReportID string
	URLs     []URLInfo
}

type CheckInResults struct {
	ProbeASN    string
	ProbeCC     string
	UTCTime     time.Time
	Assignments map[string]*CheckInAssignment
}

// Assignment returns the assignment for the named experiment, or nil.
func (r *CheckInResults) Assignment(experiment string) *CheckInAssignment {
	if r == nil {
		return nil
	}
	return r.Assignments[experiment]
}

type URLListConfig struct {
	Categories  []string
	CountryCode string
	// Limit is the maximum number of URLs to return. Zero means no limit.
	Limit int
}

type URLListResult struct {
	URLs []URLInfo
}

type WebConnectivityConfig struct {
	URLs []string
	// Parallelism bounds the number of URLs measured at once. Zero or less uses the session default.
	Parallelism int
}

// URLMeasurement is the outcome of measuring one URL. Failure is empty on success; a failed
// measurement is still a result worth submitting.
type URLMeasurement struct {
	URL         string
	Failure     string
	Measurement *Measurement
}

// WebConnectivityResults holds one entry per requested URL, in request order.
type WebConnectivityResults struct {
	Measurements []*URLMeasurement
}
