package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/danielledeleo/mdtest"
)

// removeFile deletes subprocess source files.
var removeFile = os.Remove

// Subprocess runs a test as a separate process. The program is written to a fresh
// temporary file which the dialect's command executes; exit code 0 is success.
type Subprocess struct {
	TempDir string // directory for source files, os.TempDir() if empty
	log     *zap.Logger
}

func (*Subprocess) Name() string { return "subprocess" }

// Run executes the job. A process killed by a signal reports the negated signal
// number as its exit code. The temporary source file is removed exactly once,
// whatever the outcome.
func (s *Subprocess) Run(ctx context.Context, job *Job) (out *Outcome, err error) {
	t := job.Test
	if len(job.Command) == 0 {
		return nil, mdtest.MakeError(mdtest.ErrCodeUsage, fmt.Sprintf("no command to run %s programs", t.Dialect))
	}
	f, err := os.CreateTemp(s.TempDir, "mdtest-*"+t.Dialect.Ext)
	if err != nil {
		return nil, fmt.Errorf("cannot create source file: %w", err)
	}
	name := f.Name()
	defer func() {
		if rmErr := removeFile(name); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("cannot remove source file: %w", rmErr))
		}
	}()
	_, writeErr := f.WriteString(t.Dialect.SubprocessSource(t.Source))
	if err := multierr.Append(writeErr, f.Close()); err != nil {
		return nil, fmt.Errorf("cannot write source file: %w", err)
	}

	argv := t.Dialect.WithCommand(job.Command...).Argv(name, t.Source.Path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = job.Dir
	cmd.Env = append(os.Environ(), job.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	s.logger().Debug("Starting subprocess", zap.Strings("argv", argv), zap.String("dir", job.Dir))

	runErr := cmd.Run()
	out = &Outcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		out.Cases = caseResults(t.Cases, out.Stderr, true)
	case errors.As(runErr, &exitErr):
		code := exitCode(exitErr.ProcessState)
		msg := fmt.Sprintf("Subprocess failed (exit code %d):\n%s\n%s", code, out.Stdout, out.Stderr)
		if ctxErr := ctx.Err(); ctxErr != nil {
			msg = fmt.Sprintf("Subprocess interrupted: %v\n", ctxErr) + msg
		}
		out.Failure = &Failure{
			Message:   msg,
			Exception: exceptionName(out.Stderr),
			ExitCode:  code,
		}
		out.Cases = caseResults(t.Cases, out.Stderr, false)
	default:
		return nil, fmt.Errorf("cannot run %s: %w", argv[0], runErr)
	}
	return out, nil
}

func (s *Subprocess) logger() *zap.Logger {
	if s.log == nil {
		return zap.NewNop()
	}
	return s.log
}

// exitCode is the exit code of a process, or the negated signal number if a
// signal terminated it.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}

var caseMarker = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(mdtest.CaseMarker) + `(.*)\] failed: (.*)$`)

// caseResults reads the case failure markers from the standard error of a
// program. Cases without a marker passed if the program completed, and are not
// reported otherwise.
func caseResults(labels []string, stderr string, completed bool) []CaseResult {
	failed := make(map[string]string)
	for _, m := range caseMarker.FindAllStringSubmatch(stderr, -1) {
		if _, dup := failed[m[1]]; !dup {
			failed[m[1]] = strings.TrimRight(m[2], "\r")
		}
	}
	var results []CaseResult
	for _, label := range labels {
		detail, ok := failed[label]
		switch {
		case ok:
			exception, _, _ := strings.Cut(detail, ":")
			results = append(results, CaseResult{
				Label:     label,
				Status:    Failed,
				Detail:    detail,
				Exception: strings.TrimSpace(exception),
			})
		case completed:
			results = append(results, CaseResult{Label: label, Status: Passed})
		}
	}
	return results
}

var (
	tracebackLine = regexp.MustCompile(`^([A-Za-z_][\w.]*)(:.*)?$`)
	goPanicLine   = regexp.MustCompile(`^panic: (.*?)( \[recovered\])?$`)
)

// exceptionName extracts the type of the exception a program died with from its
// standard error: the last line of a Python traceback, or a Go panic.
func exceptionName(stderr string) string {
	lines := strings.Split(strings.TrimRight(stderr, "\r\n"), "\n")
	if i := slices.IndexFunc(lines, func(line string) bool {
		return strings.HasPrefix(line, "Traceback (most recent call last):")
	}); i >= 0 {
		for j := len(lines) - 1; j > i; j-- {
			line := strings.TrimRight(lines[j], "\r")
			if line == "" || strings.HasPrefix(line, " ") {
				continue
			}
			if m := tracebackLine.FindStringSubmatch(line); m != nil {
				return m[1]
			}
			break
		}
	}
	for _, line := range lines {
		if m := goPanicLine.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			if strings.HasPrefix(m[1], "runtime error:") {
				return "runtime.Error"
			}
			return "panic"
		}
	}
	return ""
}
