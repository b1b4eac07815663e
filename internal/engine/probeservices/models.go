package probeservices

import (
	"encoding/json"

	"github.com/openobservatory/probecore/internal/engine"
)

type checkInWebConnectivity struct {
	CategoryCodes []string `json:"category_codes"`
}

type checkInRequest struct {
	Charging        bool                   `json:"charging"`
	OnWiFi          bool                   `json:"on_wifi"`
	Platform        string                 `json:"platform"`
	ProbeASN        string                 `json:"probe_asn"`
	ProbeCC         string                 `json:"probe_cc"`
	RunType         string                 `json:"run_type"`
	SoftwareName    string                 `json:"software_name"`
	SoftwareVersion string                 `json:"software_version"`
	WebConnectivity checkInWebConnectivity `json:"web_connectivity"`
}

type checkInTest struct {
	ReportID string           `json:"report_id"`
	URLs     []engine.URLInfo `json:"urls"`
}

type checkInResponse struct {
	ProbeASN string                  `json:"probe_asn"`
	ProbeCC  string                  `json:"probe_cc"`
	UTCTime  string                  `json:"utc_time"`
	Tests    map[string]*checkInTest `json:"tests"`
}

type urlListResponse struct {
	Results []engine.URLInfo `json:"results"`
}

type openReportRequest struct {
	DataFormatVersion string `json:"data_format_version"`
	Format            string `json:"format"`
	ProbeASN          string `json:"probe_asn"`
	ProbeCC           string `json:"probe_cc"`
	SoftwareName      string `json:"software_name"`
	SoftwareVersion   string `json:"software_version"`
	TestName          string `json:"test_name"`
	TestStartTime     string `json:"test_start_time"`
}

type openReportResponse struct {
	ReportID string `json:"report_id"`
}

type updateReportRequest struct {
	Format  string          `json:"format"`
	Content json.RawMessage `json:"content"`
}

type updateReportResponse struct {
	MeasurementUID string `json:"measurement_uid"`
}
