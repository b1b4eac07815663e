package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribe_FromFlags(t *testing.T) {
	out, err := execute(t, "describe", "experimental", "--longRunningAllowedInForeground")
	require.NoError(t, err)
	assert.Contains(t, out, "5. vanilla_tor [manual]")
}

func TestDescribe_FromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("longRunningAllowedInForeground: true\nlogLevel: warn\n"), 0o600))

	out, err := execute(t, "describe", "experimental", "--autorun=false", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "4. torsf [manual]")
}

func TestDescribe_UnknownSuite(t *testing.T) {
	_, err := execute(t, "describe", "nope")
	assert.Error(t, err)
}

func TestRun_DryRun(t *testing.T) {
	out, err := execute(t, "run", "experimental", "--dryRun", "--submitDelay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Measurements: 3")
	assert.Contains(t, out, "Failures: 0")
}

func TestRun_RequiresSuite(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}
