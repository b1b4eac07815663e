package probectl

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobservatory/probecore/internal/common/probecontext"
	"github.com/openobservatory/probecore/internal/common/probeerrors"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	a := New()
	a.Out = &out
	a.Params.DryRun = true
	a.Params.SubmitDelay = 0
	return a, &out
}

func TestVersion(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.Version())
	assert.Contains(t, out.String(), "Version:")
	assert.Contains(t, out.String(), "Commit:")
}

func TestList(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.List(false))

	rows := tableRows(out.String())
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"SUITE", "EXPERIMENTS", "LONG-RUNNING", "WILL", "RUN"}, rows["SUITE"])
	// Without opting in, long-running experiments are left out of manual runs.
	assert.Equal(t, []string{"experimental", "stunreachability,dnscheck,echcheck", "torsf,vanilla_tor", "stunreachability,dnscheck,echcheck"}, rows["experimental"])
	assert.Equal(t, []string{"websites", "web_connectivity", "-", "web_connectivity"}, rows["websites"])
}

func TestList_AutoRun(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.List(true))
	rows := tableRows(out.String())
	assert.Equal(t, "stunreachability,dnscheck,echcheck,torsf,vanilla_tor", rows["experimental"][3])
}

func tableRows(out string) map[string][]string {
	rows := map[string][]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		rows[fields[0]] = fields
	}
	return rows
}

func TestDescribe(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.Describe("experimental", true))
	assert.Equal(t, `experimental (Test_Experimental_Fullname)
experimental suite
1. stunreachability [autorun]
2. dnscheck [autorun]
3. echcheck [autorun]
4. torsf [autorun]
5. vanilla_tor [autorun]
`, out.String())
}

func TestDescribe_NoSettings(t *testing.T) {
	a, out := newTestApp(t)
	a.Params.NoSettings = true
	require.NoError(t, a.Describe("experimental", false))
	assert.Contains(t, out.String(), "5. vanilla_tor [manual]")
}

func TestDescribe_UnknownSuite(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Describe("nope", false)
	assert.Equal(t, probeerrors.CategoryValidation, probeerrors.CategoryFromError(err))
}

func TestRun_DryRun(t *testing.T) {
	a, out := newTestApp(t)
	a.Params.MetricsFile = filepath.Join(t.TempDir(), "metrics.prom")

	require.NoError(t, a.Run(probecontext.Background(), "experimental", false))
	assert.Contains(t, out.String(), "Running suite experimental")
	assert.Contains(t, out.String(), "stunreachability: 1 measurement(s)")
	assert.NotContains(t, out.String(), "torsf")
	assert.Contains(t, out.String(), "Measurements: 3\nFailures: 0\n")

	metrics, err := os.ReadFile(a.Params.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `probe_experiments_total{experiment="dnscheck",outcome="succeeded",suite="experimental"} 1`)
	assert.Contains(t, string(metrics), "probe_log_messages_total")
}

func TestRun_MeasuresInputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	a, out := newTestApp(t)
	a.Params.DryRun = false
	a.Params.Inputs = []string{server.URL}

	require.NoError(t, a.Run(probecontext.Background(), "websites", false))
	assert.Contains(t, out.String(), "web_connectivity: 1 measurement(s)")
	assert.Contains(t, out.String(), "Failures: 0")
}

func TestRun_InvalidParams(t *testing.T) {
	a, _ := newTestApp(t)
	a.Params.URLLimit = -1
	err := a.Run(probecontext.Background(), "websites", false)
	assert.Equal(t, probeerrors.CategoryValidation, probeerrors.CategoryFromError(err))

	a.Params.URLLimit = 0
	a.Params.SubmitAttempts = 0
	err = a.Run(probecontext.Background(), "websites", false)
	assert.Equal(t, probeerrors.CategoryValidation, probeerrors.CategoryFromError(err))
}

func TestRun_Canceled(t *testing.T) {
	a, out := newTestApp(t)
	ctx, cancel := probecontext.WithCancel(probecontext.Background())
	cancel()

	err := a.Run(ctx, "experimental", false)
	assert.Equal(t, probeerrors.CategoryCanceled, probeerrors.CategoryFromError(err))
	assert.Contains(t, out.String(), "dnscheck: CANCELED")
}

func TestResults_Redis(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	a, _ := newTestApp(t)
	a.Params.Redis.Addr = db.Addr()
	require.NoError(t, a.Run(probecontext.Background(), "experimental", true))

	// A second app sees the run through redis.
	b, out := newTestApp(t)
	b.Params.Redis.Addr = db.Addr()
	require.NoError(t, b.Results(probecontext.Background(), ""))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 4)
	assert.Equal(t, "experimental", fields[2])
	assert.Equal(t, "autorun=true", fields[3])

	out.Reset()
	require.NoError(t, b.Results(probecontext.Background(), fields[0]))
	records := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, records, 5)
	assert.True(t, strings.HasPrefix(records[0], "0\tstunreachability\t-\t"))
	assert.True(t, strings.HasSuffix(records[4], "\tok"))
}
