// Package probeservices implements engine.Backend on top of the probe services HTTP API.
package probeservices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
)

const (
	defaultReportCacheSize = 64
	dataFormatVersion      = "0.2.0"
	maxErrorBody           = 512
)

type Config struct {
	// Base URL of the probe services, e.g., https://api.example.org
	BaseURL         string
	SoftwareName    string
	SoftwareVersion string
	// Number of open reports remembered, one per experiment.
	ReportCacheSize int
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Client talks to the probe services. Submissions are appended to a report opened on first use for
// each experiment; the report IDs are kept in an LRU cache.
type Client struct {
	baseURL         *url.URL
	softwareName    string
	softwareVersion string
	client          *http.Client
	reports         *lru.Cache

	// Location of the probe as last reported by Geolocate or CheckIn, used when opening reports.
	mu       sync.Mutex
	probeASN string
	probeCC  string
}

func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "BaseURL", Value: config.BaseURL, Message: "base url is required"})
	}
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, errors.WithStack(&probeerrors.ErrValidation{Name: "BaseURL", Value: config.BaseURL, Message: err.Error()})
	}
	size := config.ReportCacheSize
	if size <= 0 {
		size = defaultReportCacheSize
	}
	reports, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:         baseURL,
		softwareName:    config.SoftwareName,
		softwareVersion: config.SoftwareVersion,
		client:          client,
		reports:         reports,
		probeASN:        "AS0",
		probeCC:         "ZZ",
	}, nil
}

func (c *Client) Geolocate(ctx context.Context) (*engine.GeolocateResults, error) {
	var res engine.GeolocateResults
	if err := c.do(ctx, "geolocate", http.MethodGet, "/api/v1/geolocation", nil, nil, &res); err != nil {
		return nil, err
	}
	c.setLocation(res.ASN, res.CountryCode)
	return &res, nil
}

// FetchResources downloads the resources manifest. Its content is not interpreted here; a successful
// download is what marks the resources as fresh.
func (c *Client) FetchResources(ctx context.Context) error {
	var manifest map[string]json.RawMessage
	return c.do(ctx, "fetch-resources", http.MethodGet, "/api/v1/resources", nil, nil, &manifest)
}

func (c *Client) CheckIn(ctx context.Context, config *engine.CheckInConfig) (*engine.CheckInResults, error) {
	asn, cc := c.location()
	req := checkInRequest{
		Charging:        config.Charging,
		OnWiFi:          config.OnWiFi,
		Platform:        config.Platform,
		ProbeASN:        asn,
		ProbeCC:         cc,
		RunType:         string(config.RunType),
		SoftwareName:    config.SoftwareName,
		SoftwareVersion: config.SoftwareVersion,
		WebConnectivity: checkInWebConnectivity{CategoryCodes: config.Categories},
	}
	if req.WebConnectivity.CategoryCodes == nil {
		req.WebConnectivity.CategoryCodes = []string{}
	}
	var resp checkInResponse
	if err := c.do(ctx, "check-in", http.MethodPost, "/api/v1/check-in", nil, req, &resp); err != nil {
		return nil, err
	}
	res := &engine.CheckInResults{
		ProbeASN:    resp.ProbeASN,
		ProbeCC:     resp.ProbeCC,
		Assignments: make(map[string]*engine.CheckInAssignment, len(resp.Tests)),
	}
	if resp.UTCTime != "" {
		if t, err := time.Parse(time.RFC3339, resp.UTCTime); err == nil {
			res.UTCTime = t
		}
	}
	for name, test := range resp.Tests {
		urls := test.URLs
		if urls == nil {
			urls = []engine.URLInfo{}
		}
		res.Assignments[name] = &engine.CheckInAssignment{ReportID: test.ReportID, URLs: urls}
		if test.ReportID != "" {
			c.reports.Add(name, test.ReportID)
		}
	}
	if resp.ProbeASN != "" && resp.ProbeCC != "" {
		c.setLocation(resp.ProbeASN, resp.ProbeCC)
	}
	return res, nil
}

func (c *Client) FetchURLList(ctx context.Context, config *engine.URLListConfig) (*engine.URLListResult, error) {
	query := url.Values{}
	if config.CountryCode != "" {
		query.Set("country_code", config.CountryCode)
	}
	if len(config.Categories) > 0 {
		query.Set("category_codes", strings.Join(config.Categories, ","))
	}
	if config.Limit > 0 {
		query.Set("limit", strconv.Itoa(config.Limit))
	}
	var resp urlListResponse
	if err := c.do(ctx, "fetch-url-list", http.MethodGet, "/api/v1/test-list/urls", query, nil, &resp); err != nil {
		return nil, err
	}
	urls := resp.Results
	if urls == nil {
		urls = []engine.URLInfo{}
	}
	if config.Limit > 0 && len(urls) > config.Limit {
		urls = urls[:config.Limit]
	}
	return &engine.URLListResult{URLs: urls}, nil
}

// Submit appends the measurement to the open report for its experiment, opening one if needed.
// If the backend no longer knows the cached report, a new report is opened and the submission retried once.
func (c *Client) Submit(ctx context.Context, measurement *engine.Measurement) (*engine.SubmitResults, error) {
	reportID, err := c.reportFor(ctx, measurement.TestName)
	if err != nil {
		return nil, err
	}
	uid, err := c.updateReport(ctx, reportID, measurement)
	if isReportGone(err) {
		c.reports.Remove(measurement.TestName)
		if reportID, err = c.reportFor(ctx, measurement.TestName); err != nil {
			return nil, err
		}
		uid, err = c.updateReport(ctx, reportID, measurement)
	}
	if err != nil {
		return nil, err
	}
	return &engine.SubmitResults{ReportID: reportID, MeasurementUID: uid}, nil
}

func (c *Client) reportFor(ctx context.Context, testName string) (string, error) {
	if id, ok := c.reports.Get(testName); ok {
		return id.(string), nil
	}
	asn, cc := c.location()
	req := openReportRequest{
		DataFormatVersion: dataFormatVersion,
		Format:            "json",
		ProbeASN:          asn,
		ProbeCC:           cc,
		SoftwareName:      c.softwareName,
		SoftwareVersion:   c.softwareVersion,
		TestName:          testName,
		TestStartTime:     time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	var resp openReportResponse
	if err := c.do(ctx, "open-report", http.MethodPost, "/report", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.ReportID == "" {
		return "", errors.WithStack(&probeerrors.ErrNetwork{Op: "open-report", Message: "backend returned an empty report id"})
	}
	c.reports.Add(testName, resp.ReportID)
	return resp.ReportID, nil
}

func (c *Client) updateReport(ctx context.Context, reportID string, measurement *engine.Measurement) (string, error) {
	req := updateReportRequest{Format: "json", Content: measurement.Raw}
	var resp updateReportResponse
	if err := c.do(ctx, "submit", http.MethodPost, "/report/"+url.PathEscape(reportID), nil, req, &resp); err != nil {
		return "", err
	}
	return resp.MeasurementUID, nil
}

func (c *Client) setLocation(asn, cc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probeASN = asn
	c.probeCC = cc
}

func (c *Client) location() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeASN, c.probeCC
}

// errStatus is the error for a non-2xx response before it is mapped onto the probeerrors taxonomy.
type errStatus struct {
	code int
	body string
}

func (err *errStatus) Error() string {
	if err.body == "" {
		return fmt.Sprintf("unexpected status %d", err.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", err.code, err.body)
}

func isReportGone(err error) bool {
	var e *errStatus
	return errors.As(err, &e) && e.code == http.StatusNotFound
}

// do performs a single request. The context is checked before the request is sent; a transport
// failure or a 5xx response is an ErrNetwork, and a 4xx response to a submission is an ErrValidation.
func (c *Client) do(ctx context.Context, op string, method string, path string, query url.Values, in interface{}, out interface{}) error {
	if err := probeerrors.FromContext(ctx, op); err != nil {
		return err
	}
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.WithStack(&probeerrors.ErrValidation{Name: "request", Value: op, Message: err.Error()})
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return errors.WithStack(&probeerrors.ErrValidation{Name: "url", Value: endpoint.String(), Message: err.Error()})
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.softwareName != "" {
		req.Header.Set("User-Agent", c.softwareName+"/"+c.softwareVersion)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := probeerrors.FromContext(ctx, op); ctxErr != nil {
			return ctxErr
		}
		return errors.WithStack(&probeerrors.ErrNetwork{Op: op, Endpoint: endpoint.String(), Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		status := &errStatus{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
		if op == "submit" && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusNotFound {
			return errors.WithStack(&probeerrors.ErrValidation{Name: "measurement", Value: op, Message: status.Error()})
		}
		return errors.WithStack(&probeerrors.ErrNetwork{Op: op, Endpoint: endpoint.String(), Err: status})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := probeerrors.FromContext(ctx, op); ctxErr != nil {
			return ctxErr
		}
		return errors.WithStack(&probeerrors.ErrNetwork{Op: op, Endpoint: endpoint.String(), Message: "invalid response body", Err: err})
	}
	return nil
}
