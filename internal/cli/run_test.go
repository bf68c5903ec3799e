package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REHIRE_DIR", "")
	t.Setenv("REHIRE_LUA_PATH", "")
	t.Setenv("REHIRE_LOG_LEVEL", "")
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

var scripts = []string{
	"testdata/project/pass_test.lua",
	"testdata/project/override_test.lua",
	"testdata/project/fail_test.lua",
}

func TestRunTextOutput(t *testing.T) {
	clearEnv(t)

	out, _, err := execute(t, append([]string{"run"}, scripts...)...)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorContains(t, err, "1 of 3 scripts failed")
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_text", []byte(out))
}

func TestRunVerboseReportsErrors(t *testing.T) {
	clearEnv(t)

	_, errOut, err := execute(t, "run", "-v", "testdata/project/fail_test.lua")

	assert.Error(t, err)
	assert.Contains(t, errOut, "greeting was not reset")
}

func TestRunJSONOutput(t *testing.T) {
	clearEnv(t)

	out, _, err := execute(t, append([]string{"run", "--format", "json"}, scripts...)...)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var report RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "ok", report.Results[0].Status)
	assert.Empty(t, report.Results[0].Error)
	assert.Equal(t, "fail", report.Results[2].Status)
	assert.Contains(t, report.Results[2].Error, "greeting was not reset")
}

func TestRunAllPassing(t *testing.T) {
	clearEnv(t)

	out, _, err := execute(t, "run", "testdata/project/pass_test.lua")

	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestRunInvalidConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rehire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))

	_, _, err := execute(t, "run", "--config", path, "testdata/project/pass_test.lua")

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestRunRequiresScripts(t *testing.T) {
	_, _, err := execute(t, "run")
	assert.Error(t, err)
}
