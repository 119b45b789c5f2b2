package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/parser"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

// InProcess evaluates Go programs with the yaegi interpreter. Every job gets a
// fresh interpreter, so tests never share state.
//
// Programs may import "mdtest", which exports
//
//	func Case(label string, fn func()) bool
//	func Fixture(name string) string
//
// Case runs fn as a sub-test: a panic in fn fails the case but not the program.
type InProcess struct {
	log *zap.Logger
}

func (*InProcess) Name() string { return "in-process" }

// Run parses the program under the document's path, so positions in compile
// errors and panics refer to document lines, then compiles and executes it.
// The program text never touches the disk.
func (s *InProcess) Run(ctx context.Context, job *Job) (*Outcome, error) {
	t := job.Test
	name := sourceName(t.Path)
	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("cannot load standard library symbols: %w", err)
	}
	h := &caseHandle{fixtures: job.Fixtures}
	if err := i.Use(h.exports()); err != nil {
		return nil, fmt.Errorf("cannot load mdtest symbols: %w", err)
	}

	out := &Outcome{}
	var prog *interp.Program
	file, err := parser.ParseFile(i.FileSet(), name, t.Source.Text, parser.DeclarationErrors)
	if err == nil {
		prog, err = i.CompileAST(file)
	}
	if err == nil && prog != nil {
		s.logger().Debug("Executing program", zap.String("source", name))
		_, err = i.ExecuteWithContext(ctx, prog)
	}
	out.Stdout, out.Stderr = stdout.String(), stderr.String()
	out.Cases = h.results()
	if err != nil {
		out.Failure = failureOf(err, prog == nil)
	}
	return out, nil
}

func (s *InProcess) logger() *zap.Logger {
	if s.log == nil {
		return zap.NewNop()
	}
	return s.log
}

// sourceName is the file name positions of a document's program refer to.
func sourceName(docPath string) string {
	if docPath == "" {
		return interp.DefaultSourceName
	}
	return docPath
}

// failureOf converts an interpreter error to a failure.
func failureOf(err error, compile bool) *Failure {
	f := &Failure{Message: err.Error()}
	var p interp.Panic
	switch {
	case compile:
		f.Exception = "CompileError"
	case errors.As(err, &p):
		v := panicValue(p.Value)
		f.Exception = panicType(v)
		f.Message = fmt.Sprintf("panic: %v\n\n%s", v, p.Stack)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.Message = "Program interrupted: " + err.Error()
	}
	return f
}

// panicValue unwraps the reflect.Value the interpreter boxes panic values in.
func panicValue(v any) any {
	if rv, ok := v.(reflect.Value); ok && rv.IsValid() && rv.CanInterface() {
		return rv.Interface()
	}
	return v
}

// panicType names the dynamic type of a panic value. The interpreter indexes
// through package reflect, whose bounds panics are plain strings; they are
// runtime errors of the interpreted program.
func panicType(v any) string {
	if _, ok := v.(runtime.Error); ok {
		return "runtime.Error"
	}
	if s, ok := v.(string); ok && strings.HasPrefix(s, "reflect") && strings.Contains(s, "out of range") {
		return "runtime.Error"
	}
	return fmt.Sprintf("%T", v)
}

// caseHandle is the "mdtest" package seen by interpreted programs.
type caseHandle struct {
	fixtures map[string]string

	mu    sync.Mutex
	cases []CaseResult
}

func (h *caseHandle) exports() interp.Exports {
	return interp.Exports{
		"mdtest/mdtest": {
			"Case":    reflect.ValueOf(h.Case),
			"Fixture": reflect.ValueOf(h.Fixture),
		},
	}
}

// Case runs fn and records its outcome under label. It reports whether fn
// returned without panicking.
func (h *caseHandle) Case(label string, fn func()) (ok bool) {
	defer func() {
		r := panicValue(recover())
		result := CaseResult{Label: label, Status: Passed}
		if r != nil {
			result.Status = Failed
			result.Detail = fmt.Sprint(r)
			result.Exception = panicType(r)
		}
		h.mu.Lock()
		h.cases = append(h.cases, result)
		h.mu.Unlock()
		ok = r == nil
	}()
	fn()
	return true
}

// Fixture returns the value of a fixture. Asking for a fixture the test did not
// declare panics.
func (h *caseHandle) Fixture(name string) string {
	value, ok := h.fixtures[name]
	if !ok {
		panic(fmt.Sprintf("fixture %q not declared", name))
	}
	return value
}

func (h *caseHandle) results() []CaseResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cases
}
