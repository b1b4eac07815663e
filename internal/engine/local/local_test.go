package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobservatory/probecore/internal/common/probeerrors"
	"github.com/openobservatory/probecore/internal/engine"
)

var testURLs = []engine.URLInfo{
	{URL: "https://a.example", CategoryCode: "NEWS"},
	{URL: "https://b.example", CategoryCode: "HUMR"},
	{URL: "https://c.example", CategoryCode: "NEWS"},
}

func TestBackend_Submit(t *testing.T) {
	b := NewBackend(engine.GeolocateResults{}, nil)
	ctx := context.Background()

	m1, err := DryRunMeasurer{}.RunExperiment(ctx, "dnscheck", "")
	require.NoError(t, err)
	m2, err := DryRunMeasurer{}.RunExperiment(ctx, "dnscheck", "")
	require.NoError(t, err)

	first, err := b.Submit(ctx, m1)
	require.NoError(t, err)
	second, err := b.Submit(ctx, m2)
	require.NoError(t, err)

	assert.Equal(t, first.ReportID, second.ReportID)
	assert.NotEqual(t, first.MeasurementUID, second.MeasurementUID)
	assert.Len(t, b.Submissions(), 2)
}

func TestBackend_Geolocate(t *testing.T) {
	b := NewBackend(engine.GeolocateResults{CountryCode: "IT"}, nil)

	res, err := b.Geolocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "IT", res.CountryCode)
	assert.Equal(t, "AS0", res.ASN)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = b.Geolocate(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackend_FetchURLList(t *testing.T) {
	b := NewBackend(engine.GeolocateResults{}, testURLs)

	res, err := b.FetchURLList(context.Background(), &engine.URLListConfig{Categories: []string{"NEWS"}})
	require.NoError(t, err)
	assert.Equal(t, []engine.URLInfo{testURLs[0], testURLs[2]}, res.URLs)

	res, err = b.FetchURLList(context.Background(), &engine.URLListConfig{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []engine.URLInfo{testURLs[0]}, res.URLs)
}

func TestBackend_CheckIn(t *testing.T) {
	b := NewBackend(engine.GeolocateResults{}, testURLs)

	res, err := b.CheckIn(context.Background(), &engine.CheckInConfig{Categories: []string{"HUMR"}})
	require.NoError(t, err)
	assignment := res.Assignment("web_connectivity")
	require.NotNil(t, assignment)
	assert.NotEmpty(t, assignment.ReportID)
	assert.Equal(t, []engine.URLInfo{testURLs[1]}, assignment.URLs)
}

func TestHTTPMeasurer_MeasureURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocked" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()
	m := NewHTTPMeasurer(server.Client())

	res, err := m.MeasureURL(context.Background(), server.URL+"/ok")
	require.NoError(t, err)
	assert.Empty(t, res.Failure)
	var doc struct {
		TestName string       `json:"test_name"`
		TestKeys httpTestKeys `json:"test_keys"`
	}
	require.NoError(t, json.Unmarshal(res.Measurement.Raw, &doc))
	assert.Equal(t, "web_connectivity", doc.TestName)
	assert.True(t, doc.TestKeys.Accessible)
	assert.Equal(t, int64(5), doc.TestKeys.BodyLength)

	res, err = m.MeasureURL(context.Background(), server.URL+"/blocked")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(res.Measurement.Raw, &doc))
	assert.False(t, doc.TestKeys.Accessible)
	assert.Equal(t, http.StatusForbidden, doc.TestKeys.StatusCode)
}

func TestHTTPMeasurer_UnreachableURLIsRecorded(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	res, err := NewHTTPMeasurer(nil).MeasureURL(context.Background(), url)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Failure)
	assert.NotNil(t, res.Measurement)
}

func TestHTTPMeasurer_RunExperimentIsUnsupported(t *testing.T) {
	_, err := NewHTTPMeasurer(nil).RunExperiment(context.Background(), "dnscheck", "")
	assert.Equal(t, probeerrors.CategoryValidation, probeerrors.CategoryFromError(err))
}
