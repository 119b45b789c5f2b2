// Command mdtest runs the code examples of Markdown documents as tests.
//
// Usage:
//
//	mdtest run [flags] [path ...]
//	mdtest list [flags] [path ...]
//	mdtest source [flags] path test
//	mdtest watch [flags] [path ...]
//
// Paths are documents or directories, searched recursively for *.md files. The
// exit code is 0 when no test failed, 1 when some test failed or errored and 2
// on usage or configuration errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/danielledeleo/mdtest/internal/config"
	"github.com/danielledeleo/mdtest/internal/logging"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError ends the command with an exit code. A nil err prints nothing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "mdtest: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "mdtest: %v\n", err)
	return exitUsage
}

// app holds the state shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *zap.Logger
	cfg    config.Config

	configPath  string
	verbose     bool
	quiet       bool
	logFormat   string
	lang        string
	prefix      string
	noqa        bool
	timeout     time.Duration
	jobs        int
	strictXfail bool
	interpreter map[string]string
	fixtures    map[string]string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "mdtest",
		Short: "Run the code examples of Markdown documents as tests",
		Long: `mdtest collects fenced code blocks annotated with an HTML comment like

    <!-- name: test_sum; mark: xfail(raises=ZeroDivisionError) -->

groups blocks of the same name into one program whose line numbers match the
document, and runs every group whose name starts with the test prefix.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	a.addPersistentFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newSourceCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) addPersistentFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&a.configPath, "config", "c", "", "config file (default: .mdtest.json or .mdtest.yaml, searched upwards)")
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "log debug messages and list passing tests")
	fs.BoolVarP(&a.quiet, "quiet", "q", false, "log warnings and errors only")
	fs.StringVar(&a.logFormat, "log-format", "console", "log format: console or json")
	fs.StringVarP(&a.lang, "lang", "l", "", "language of the collected fences: python or go")
	fs.StringVar(&a.prefix, "prefix", "", "name prefix of collected tests (default \"test\")")
	fs.BoolVar(&a.noqa, "noqa", false, "end fragment content at a '# noqa' line (legacy)")
	fs.DurationVar(&a.timeout, "timeout", 0, "time limit per test, 0 for none")
	fs.IntVarP(&a.jobs, "jobs", "j", 0, "documents run concurrently (default 1)")
	fs.BoolVar(&a.strictXfail, "strict-xfail", false, "treat unexpected passes of xfail tests as failures")
	fs.StringToStringVar(&a.interpreter, "interpreter", nil, "command for a language, e.g. python='python3 -X dev'")
	fs.StringToStringVar(&a.fixtures, "fixture", nil, "static fixture value, e.g. api=http://localhost:8080")
}

// setup builds the logger and the effective configuration: the loaded config
// files, overridden by the flags given on the command line.
func (a *app) setup(cmd *cobra.Command) error {
	log, err := logging.New(logging.Options{Verbose: a.verbose, Quiet: a.quiet, Format: a.logFormat})
	if err != nil {
		return usageError(err)
	}
	a.log = log

	wd, err := os.Getwd()
	if err != nil {
		return usageError(err)
	}
	cfg, sources, err := config.Load(wd, a.configPath)
	if err != nil {
		return usageError(err)
	}
	a.log.Debug("Loaded config",
		zap.String("project", sources.Project),
		zap.String("explicit", sources.Explicit))

	flags := cmd.Flags()
	var overlay config.Config
	if flags.Changed("lang") {
		overlay.Lang = a.lang
	}
	if flags.Changed("prefix") {
		overlay.Prefix = &a.prefix
	}
	if flags.Changed("noqa") {
		overlay.Noqa = &a.noqa
	}
	if flags.Changed("timeout") {
		overlay.Timeout = config.Duration(a.timeout)
	}
	if flags.Changed("jobs") {
		overlay.Jobs = a.jobs
	}
	if flags.Changed("strict-xfail") {
		overlay.StrictXfail = &a.strictXfail
	}
	if len(a.interpreter) > 0 {
		overlay.Interpreters = make(map[string][]string, len(a.interpreter))
		for lang, command := range a.interpreter {
			overlay.Interpreters[lang] = splitCommand(command)
		}
	}
	overlay.Fixtures = a.fixtures
	cfg = config.Merge(cfg, overlay)
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	a.cfg = cfg
	return nil
}
