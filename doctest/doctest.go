// Package doctest runs the tests of Markdown documents as Go subtests.
//
//	func TestReadme(t *testing.T) {
//		doctest.Run(t, "README.md", doctest.WithCollectOptions(mdtest.WithLang("go")))
//	}
//
// Every collected test becomes a subtest named after the test; every case
// becomes a subtest of its test. Skipped and expected failures are reported as
// skipped subtests, unexpected passes are logged.
package doctest

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danielledeleo/mdtest"
	"github.com/danielledeleo/mdtest/runner"
)

// Option configures Run.
type Option func(*settings)

type settings struct {
	collect []mdtest.Option
	run     []runner.Option
}

// WithCollectOptions passes options to mdtest.CollectFile.
func WithCollectOptions(opts ...mdtest.Option) Option {
	return func(s *settings) {
		s.collect = append(s.collect, opts...)
	}
}

// WithRunnerOptions passes options to runner.New. The runner logs to t unless
// the options set another logger.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *settings) {
		s.run = append(s.run, opts...)
	}
}

// Run collects the tests of the document at path and runs each as a subtest of t.
func Run(t *testing.T, path string, opts ...Option) {
	t.Helper()
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	tests, err := mdtest.CollectFile(path, s.collect...)
	if err != nil {
		t.Fatalf("cannot collect %s: %v", path, err)
	}
	if len(tests) == 0 {
		t.Logf("%s: no tests", path)
		return
	}
	r, err := runner.New(append([]runner.Option{runner.WithLogger(zaptest.NewLogger(t))}, s.run...)...)
	if err != nil {
		t.Fatalf("cannot create runner: %v", err)
	}
	for i := range tests {
		test := &tests[i]
		t.Run(test.Name, func(t *testing.T) {
			report(t, r.Run(context.Background(), test))
		})
	}
}

func report(t *testing.T, res runner.Result) {
	t.Helper()
	for _, c := range res.Cases {
		t.Run(c.Label, func(t *testing.T) {
			if c.Status == runner.Failed && res.Status == runner.Failed {
				t.Errorf("%s", c.Detail)
			}
		})
	}
	switch res.Status {
	case runner.Passed:
		if res.Stdout != "" {
			t.Logf("stdout:\n%s", res.Stdout)
		}
	case runner.Skipped:
		t.Skip(res.Reason)
	case runner.XFailed:
		t.Skipf("XFAIL %s", res.Reason)
	case runner.XPassed:
		t.Logf("XPASS %s", res.Reason)
	case runner.Errored:
		t.Errorf("%s:%d: %v", res.Test.Path, res.Test.Line(), res.Err)
	case runner.Failed:
		switch {
		case res.Failure != nil:
			t.Errorf("%s:%d: %s", res.Test.Path, res.Test.Line(), res.Failure.Message)
		case res.Reason != "":
			t.Errorf("%s:%d: %s", res.Test.Path, res.Test.Line(), res.Reason)
		}
		if res.Stdout != "" {
			t.Logf("stdout:\n%s", res.Stdout)
		}
		if res.Stderr != "" && res.Failure == nil {
			t.Logf("stderr:\n%s", res.Stderr)
		}
	}
}
