package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const limitScenario = `name: limit_three
description: "LIMIT becomes a limit stage"
query: "SELECT * FROM orders LIMIT 3"
schema: '{"price":"number"}'
expect:
  pipeline: '[{"@":"limit","=":3}]'
  output: '{"price":"number"}'
`

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandSharedScenarios(t *testing.T) {
	out, _, err := execute(t, "", "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ avg_by_customer")
	assert.Contains(t, out, "✓ empty_projection")
	assert.Contains(t, out, "7 passed, 0 failed, 7 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "test", "--filter", "avg_*", scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Equal(t, "avg_by_customer", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "avg_of_string", resp.Data.Scenarios[1].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "wrong.yaml"), `name: wrong
description: "Expects the wrong limit"
query: "SELECT * FROM t LIMIT 3"
expect:
  pipeline: '[{"@":"limit","=":4}]'
`)
	writeTestFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")

	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "pipeline mismatch")
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "limit.yaml"), limitScenario)

	out, _, err := execute(t, "", "test", "--update", dir)
	require.NoError(t, err, out)

	goldenPath := filepath.Join(dir, "golden", "limit.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario": "limit_three"`)
	assert.Contains(t, string(golden), `"price": "number"`)

	out, _, err = execute(t, "", "test", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ limit_three")

	writeTestFile(t, goldenPath, `{"scenario": "limit_three"}`)
	out, _, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "b.yaml"), "")
	writeTestFile(t, filepath.Join(dir, "a.yml"), "")
	writeTestFile(t, filepath.Join(dir, "notes.txt"), "")
	writeTestFile(t, filepath.Join(dir, "golden", "a.golden"), "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "avg_price.yaml"), "")
	writeTestFile(t, filepath.Join(dir, "limit.yaml"), "")

	files, err := findScenarioFiles(dir, "avg_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "avg_price.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "nested", "deep.yaml"), "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "nested", "deep.yaml")}, files)
}

func TestGoldenFilePath(t *testing.T) {
	tests := []struct {
		scenario string
		want     string
	}{
		{"/path/to/scenarios/avg.yaml", "/path/to/scenarios/golden/avg.golden"},
		{"scenarios/limit.yml", "scenarios/golden/limit.golden"},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			assert.Equal(t, tt.want, goldenFilePath(tt.scenario))
		})
	}
}
