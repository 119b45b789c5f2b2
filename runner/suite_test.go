package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danielledeleo/mdtest"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSuite(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.md", "<!-- name: test_a1 -->\n```python\npass\n```\n<!-- name: test_a2; mark: skip -->\n```python\npass\n```\n<!-- name: helper -->\n```python\npass\n```\n"),
		filepath.Join(dir, "missing.md"),
		writeDoc(t, dir, "b.md", "<!-- name: test_b -->\n```python\npass\n```\n"),
		writeDoc(t, dir, "c.md", "# Nothing to test\n"),
	}
	fake := &fakeStrategy{name: "fake"}
	s := &Suite{
		Runner: newFakeRunner(t, fake),
		Jobs:   2,
		Log:    zaptest.NewLogger(t),
	}

	report, err := s.Run(context.Background(), paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.md")

	_, uerr := uuid.Parse(report.RunID)
	assert.NoError(t, uerr)
	require.Len(t, report.Files, 4)
	for i, f := range report.Files {
		assert.Equal(t, paths[i], f.Path)
	}

	a := report.Files[0]
	require.NoError(t, a.Err)
	require.Len(t, a.Results, 2, "helper is not a test")
	assert.Equal(t, "test_a1", a.Results[0].Test.Name)
	assert.Equal(t, Passed, a.Results[0].Status)
	assert.Equal(t, Skipped, a.Results[1].Status)

	var mdErr mdtest.Error
	require.ErrorAs(t, report.Files[1].Err, &mdErr)
	assert.Equal(t, mdtest.ErrCodeIO, mdErr.Code)
	assert.Empty(t, report.Files[1].Results)

	assert.Len(t, report.Files[2].Results, 1)
	assert.Empty(t, report.Files[3].Results)

	assert.Equal(t, map[Status]int{Passed: 2, Skipped: 1}, report.Counts())
	assert.False(t, report.OK(), "a document which cannot be read fails the run")
	assert.Equal(t, 2, fake.calls())
}

func TestSuiteFilterAndPrefix(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<!-- name: check_one -->\n```python\npass\n```\n<!-- name: check_two -->\n```python\npass\n```\n<!-- name: test_three -->\n```python\npass\n```\n")
	fake := &fakeStrategy{name: "fake"}
	s := &Suite{
		Runner:  newFakeRunner(t, fake),
		Collect: []mdtest.Option{mdtest.WithPrefix("check_")},
		Filter:  func(t *mdtest.Test) bool { return t.Name != "check_two" },
	}
	report, err := s.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, report.Files[0].Results, 1)
	assert.Equal(t, "check_one", report.Files[0].Results[0].Test.Name)
	assert.True(t, report.OK())
}

func TestSuiteFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<!-- name: test_x -->\n```python\nraise SystemExit(1)\n```\n")
	fake := &fakeStrategy{name: "fake", out: &Outcome{Failure: &Failure{Message: "exit", ExitCode: 1}}}
	s := &Suite{Runner: newFakeRunner(t, fake)}
	report, err := s.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, map[Status]int{Failed: 1}, report.Counts())
}

func TestSuiteCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<!-- name: test_x -->\n```python\npass\n```\n")
	fake := &fakeStrategy{name: "fake"}
	s := &Suite{Runner: newFakeRunner(t, fake)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.Run(ctx, []string{path})
	require.NoError(t, err)
	require.Len(t, report.Files[0].Results, 1)
	res := report.Files[0].Results[0]
	assert.Equal(t, Errored, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, fake.calls())
}
