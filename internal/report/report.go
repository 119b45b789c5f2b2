// Package report renders the results of a run as text, JSON or YAML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/danielledeleo/mdtest/runner"
)

// Formats are the supported output formats.
var Formats = []string{"text", "json", "yaml"}

// Document is the serialized form of a run.
type Document struct {
	RunID    string         `json:"run_id" yaml:"run_id"`
	Started  time.Time      `json:"started" yaml:"started"`
	Duration string         `json:"duration" yaml:"duration"`
	OK       bool           `json:"ok" yaml:"ok"`
	Counts   map[string]int `json:"counts" yaml:"counts"`
	Files    []File         `json:"files" yaml:"files"`
}

// File is the serialized form of one document's results.
type File struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	Tests []Test `json:"tests" yaml:"tests"`
}

// Test is the serialized form of one test result.
type Test struct {
	ID       string              `json:"id" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Line     int                 `json:"line" yaml:"line"`
	Status   runner.Status       `json:"status" yaml:"status"`
	Strategy string              `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Reason   string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	Duration string              `json:"duration" yaml:"duration"`
	Failure  *runner.Failure     `json:"failure,omitempty" yaml:"failure,omitempty"`
	Cases    []runner.CaseResult `json:"cases,omitempty" yaml:"cases,omitempty"`
	Error    string              `json:"error,omitempty" yaml:"error,omitempty"`
	Stdout   string              `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   string              `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// NewDocument converts a run report into its serialized form.
func NewDocument(r *runner.Report) *Document {
	doc := &Document{
		RunID:    r.RunID,
		Started:  r.Started,
		Duration: r.Duration.Round(time.Millisecond).String(),
		OK:       r.OK(),
		Counts:   make(map[string]int),
		Files:    make([]File, 0, len(r.Files)),
	}
	for status, n := range r.Counts() {
		doc.Counts[status.String()] = n
	}
	for _, f := range r.Files {
		file := File{Path: f.Path, Tests: make([]Test, 0, len(f.Results))}
		if f.Err != nil {
			file.Error = f.Err.Error()
		}
		for _, res := range f.Results {
			test := Test{
				ID:       res.Test.ID(),
				Name:     res.Test.Name,
				Line:     res.Test.Line(),
				Status:   res.Status,
				Strategy: res.Strategy,
				Reason:   res.Reason,
				Duration: res.Duration.Round(time.Microsecond).String(),
				Failure:  res.Failure,
				Cases:    res.Cases,
			}
			if res.Err != nil {
				test.Error = res.Err.Error()
			}
			if !res.Status.OK() {
				test.Stdout, test.Stderr = res.Stdout, res.Stderr
			}
			file.Tests = append(file.Tests, test)
		}
		doc.Files = append(doc.Files, file)
	}
	return doc
}

// Write renders the report in the given format. Verbose text output lists
// passing tests too.
func Write(w io.Writer, format string, r *runner.Report, verbose bool) error {
	switch format {
	case "", "text":
		return writeText(w, r, verbose)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(r))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(r)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteFile renders the report to path. The file is replaced atomically, so a
// reader never sees a partial report.
func WriteFile(path, format string, r *runner.Report) error {
	if format == "" || format == "text" {
		format = formatFromPath(path)
	}
	var buf bytes.Buffer
	if err := Write(&buf, format, r, true); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "json"
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return "yaml"
	}
	return "text"
}

// summaryOrder is the order of statuses in the summary line.
var summaryOrder = []runner.Status{runner.Failed, runner.Passed, runner.Skipped, runner.XFailed, runner.XPassed, runner.Errored}

func writeText(w io.Writer, r *runner.Report, verbose bool) error {
	var b strings.Builder
	for _, f := range r.Files {
		if f.Err != nil {
			fmt.Fprintf(&b, "ERROR %s - %v\n", f.Path, f.Err)
			continue
		}
		for i := range f.Results {
			res := &f.Results[i]
			if res.Status == runner.Passed && !verbose {
				continue
			}
			b.WriteString(res.Summary())
			b.WriteByte('\n')
			if res.Status != runner.Failed {
				continue
			}
			for _, c := range res.Cases {
				if c.Status == runner.Failed {
					fmt.Fprintf(&b, "    case %s: %s\n", c.Label, c.Detail)
				}
			}
			if res.Failure != nil {
				writeIndented(&b, res.Failure.Message, "    ")
			}
		}
	}

	counts := r.Counts()
	var parts []string
	for _, status := range summaryOrder {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no tests ran")
	}
	fmt.Fprintf(&b, "== %s in %.2fs ==\n", strings.Join(parts, ", "), r.Duration.Seconds())
	_, err := io.WriteString(w, b.String())
	return err
}

func writeIndented(b *strings.Builder, text, indent string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
