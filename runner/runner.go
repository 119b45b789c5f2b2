// Package runner executes collected tests and decides their reported status.
//
// A Runner picks a Strategy per test, in-process for dialects with an evaluator
// and a subprocess otherwise or when a fragment asks for isolation, provides the
// fixtures the test declares and applies its skip and xfail marks.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/danielledeleo/mdtest"
)

// Runner executes tests. A Runner is safe for concurrent use once created.
type Runner struct {
	log         *zap.Logger
	fixtures    map[string]Provider
	commands    map[string][]string
	timeout     time.Duration
	strictXfail bool
	inProcess   Strategy
	subprocess  Strategy
}

// Option configures a Runner.
type Option func(*Runner) error

// New creates a runner.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		log:      zap.NewNop(),
		fixtures: builtinFixtures(),
		commands: make(map[string][]string),
	}
	inProcess := &InProcess{}
	subprocess := &Subprocess{}
	r.inProcess, r.subprocess = inProcess, subprocess
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	inProcess.log = r.log.Named("inprocess")
	subprocess.log = r.log.Named("subprocess")
	return r, nil
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) error {
		if log == nil {
			return mdtest.MakeError(mdtest.ErrCodeUsage, "logger must not be nil")
		}
		r.log = log
		return nil
	}
}

// WithFixture registers a fixture provider. It replaces a built-in fixture of the
// same name.
func WithFixture(name string, provide Provider) Option {
	return func(r *Runner) error {
		if name == "" || provide == nil {
			return mdtest.MakeError(mdtest.ErrCodeUsage, "fixture needs a name and a provider")
		}
		r.fixtures[name] = provide
		return nil
	}
}

// WithStaticFixture registers a fixture with a fixed value.
func WithStaticFixture(name, value string) Option {
	return WithFixture(name, staticFixture(value))
}

// WithCommand sets the subprocess command for a language, overriding the
// dialect's default command.
func WithCommand(lang string, argv ...string) Option {
	return func(r *Runner) error {
		d, ok := mdtest.LookupDialect(lang)
		if !ok {
			return mdtest.MakeError(mdtest.ErrCodeUsage, fmt.Sprintf("unknown language %q", lang))
		}
		if len(argv) == 0 {
			return mdtest.MakeError(mdtest.ErrCodeUsage, fmt.Sprintf("empty command for %s", d))
		}
		r.commands[d.Name] = slices.Clone(argv)
		return nil
	}
}

// WithTimeout bounds the execution of every test. Zero, the default, means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return mdtest.MakeError(mdtest.ErrCodeUsage, "timeout must not be negative")
		}
		r.timeout = d
		return nil
	}
}

// WithStrictXfail makes xfail marks without a strict argument strict.
func WithStrictXfail(strict bool) Option {
	return func(r *Runner) error {
		r.strictXfail = strict
		return nil
	}
}

// WithTempDir sets the directory for subprocess source files.
func WithTempDir(dir string) Option {
	return func(r *Runner) error {
		if s, ok := r.subprocess.(*Subprocess); ok {
			s.TempDir = dir
		}
		return nil
	}
}

// WithStrategies replaces the in-process and subprocess strategies. A nil
// strategy keeps the default.
func WithStrategies(inProcess, subprocess Strategy) Option {
	return func(r *Runner) error {
		if inProcess != nil {
			r.inProcess = inProcess
		}
		if subprocess != nil {
			r.subprocess = subprocess
		}
		return nil
	}
}

// Run executes one test and reports its result. Failures of the test are part of
// the result; Run has no error of its own.
func (r *Runner) Run(ctx context.Context, t *mdtest.Test) (res Result) {
	start := time.Now()
	res.Test = t
	log := r.log.With(zap.String("path", t.Path), zap.String("test", t.Name))
	defer func() {
		res.Duration = time.Since(start)
		log.Debug("Test finished",
			zap.Stringer("status", res.Status),
			zap.String("strategy", res.Strategy),
			zap.Duration("duration", res.Duration))
	}()

	if t.Err != nil {
		return errored(res, t.Err)
	}
	if t.Source == nil {
		return errored(res, mdtest.MakeError(mdtest.ErrCodeUsage, "test has no source"))
	}
	p, err := dispose(t.Marks, r.strictXfail)
	if err != nil {
		return errored(res, err)
	}
	if !p.runs() {
		res.Status, res.Reason = p.before()
		return res
	}

	fixtures, err := r.resolveFixtures(ctx, t)
	if err != nil {
		return errored(res, err)
	}
	defer func() {
		if err := fixtures.cleanup(); err != nil {
			log.Warn("Fixture cleanup failed", zap.Error(err))
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	strategy := r.Select(t)
	res.Strategy = strategy.Name()
	log.Debug("Running test", zap.String("strategy", res.Strategy))
	out, err := strategy.Run(ctx, &Job{
		Test:     t,
		Fixtures: fixtures.values,
		Command:  r.command(t.Dialect),
		Dir:      filepath.Dir(t.Path),
		Env:      fixtures.env(),
	})
	if err != nil {
		return errored(res, err)
	}
	res.Status, res.Reason = p.after(out)
	res.Failure, res.Cases = out.Failure, out.Cases
	res.Stdout, res.Stderr = out.Stdout, out.Stderr
	if out.Failure != nil {
		log.Debug("Test program failed",
			zap.String("exception", out.Failure.Exception),
			zap.Int("exit_code", out.Failure.ExitCode))
	}
	return res
}

func (r *Runner) command(d *mdtest.Dialect) []string {
	if d == nil {
		return nil
	}
	if argv, ok := r.commands[d.Name]; ok {
		return argv
	}
	return d.Command
}

func errored(res Result, err error) Result {
	res.Status = Errored
	res.Err = err
	return res
}
