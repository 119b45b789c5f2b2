package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/danielledeleo/mdtest"
	"github.com/danielledeleo/mdtest/runner"
)

func sampleReport() *runner.Report {
	test := func(name string, line int) *mdtest.Test {
		return &mdtest.Test{
			Name:      name,
			Path:      "docs/guide.md",
			Fragments: []mdtest.Fragment{{Name: name, Path: "docs/guide.md", StartLine: line - 1}},
		}
	}
	return &runner.Report{
		RunID:    "0b4c6f1e-2d6a-4a57-9a43-3c1f6d9e8b21",
		Started:  time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Files: []runner.FileReport{
			{
				Path: "docs/guide.md",
				Results: []runner.Result{
					{Test: test("test_ok", 5), Status: runner.Passed, Strategy: "subprocess", Duration: 20 * time.Millisecond},
					{
						Test:     test("test_div", 12),
						Status:   runner.Failed,
						Strategy: "subprocess",
						Failure:  &runner.Failure{Message: "Subprocess failed (exit code 1):\n\nZeroDivisionError: division by zero", Exception: "ZeroDivisionError", ExitCode: 1},
						Stderr:   "ZeroDivisionError: division by zero\n",
					},
					{
						Test:   test("test_cases", 30),
						Status: runner.Failed,
						Cases: []runner.CaseResult{
							{Label: "adds line=31", Status: runner.Passed},
							{Label: "fails line=36", Status: runner.Failed, Detail: "AssertionError: bad math", Exception: "AssertionError"},
						},
					},
					{Test: test("test_later", 40), Status: runner.Skipped, Reason: "not on CI"},
					{Test: test("test_bug", 50), Status: runner.XFailed, Reason: "bug 12"},
				},
			},
			{Path: "docs/missing.md", Err: errors.New("docs/missing.md: cannot open docs/missing.md")},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", sampleReport(), false))
	got := buf.String()
	t.Log("\n" + got)

	want := `FAILED docs/guide.md::test_div - Subprocess failed (exit code 1):
    Subprocess failed (exit code 1):

    ZeroDivisionError: division by zero
FAILED docs/guide.md::test_cases
    case fails line=36: AssertionError: bad math
SKIPPED docs/guide.md::test_later - not on CI
XFAILED docs/guide.md::test_bug - bug 12
ERROR docs/missing.md - docs/missing.md: cannot open docs/missing.md
== 2 failed, 1 passed, 1 skipped, 1 xfailed in 1.50s ==
`
	assert.Equal(t, want, got)
}

func TestWriteTextVerbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "", sampleReport(), true))
	assert.True(t, strings.HasPrefix(buf.String(), "PASSED docs/guide.md::test_ok\n"))
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", &runner.Report{}, false))
	assert.Equal(t, "== no tests ran in 0.00s ==\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sampleReport(), false))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "0b4c6f1e-2d6a-4a57-9a43-3c1f6d9e8b21", doc.RunID)
	assert.False(t, doc.OK)
	assert.Equal(t, "1.5s", doc.Duration)
	assert.Equal(t, map[string]int{"passed": 1, "failed": 2, "skipped": 1, "xfailed": 1}, doc.Counts)
	require.Len(t, doc.Files, 2)
	assert.Equal(t, "docs/missing.md: cannot open docs/missing.md", doc.Files[1].Error)

	tests := doc.Files[0].Tests
	require.Len(t, tests, 5)
	assert.Equal(t, "docs/guide.md::test_div", tests[1].ID)
	assert.Equal(t, 12, tests[1].Line)
	assert.Equal(t, runner.Failed, tests[1].Status)
	assert.Equal(t, "ZeroDivisionError", tests[1].Failure.Exception)
	assert.NotEmpty(t, tests[1].Stderr, "output of failed tests is kept")
	assert.Empty(t, tests[0].Stderr)
	assert.Contains(t, buf.String(), `"status": "xfailed"`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", sampleReport(), false))
	assert.Contains(t, buf.String(), "run_id: 0b4c6f1e-2d6a-4a57-9a43-3c1f6d9e8b21\n")
	assert.Contains(t, buf.String(), "status: skipped\n")

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Files, 2)
	assert.Equal(t, runner.XFailed, doc.Files[0].Tests[4].Status)
	assert.Equal(t, "fails line=36", doc.Files[0].Tests[2].Cases[1].Label)
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", sampleReport(), false)
	assert.EqualError(t, err, `unknown report format "xml"`)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"report.json", "report.yaml", "report.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
		require.NoError(t, WriteFile(path, "", sampleReport()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "stale")
		switch filepath.Ext(name) {
		case ".json":
			assert.True(t, json.Valid(data))
		case ".yaml":
			assert.Contains(t, string(data), "files:\n")
		default:
			assert.Contains(t, string(data), "PASSED docs/guide.md::test_ok")
		}
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files left behind")
}
