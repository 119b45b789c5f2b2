package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/danielledeleo/mdtest"
	"github.com/danielledeleo/mdtest/internal/report"
	"github.com/danielledeleo/mdtest/internal/watch"
	"github.com/danielledeleo/mdtest/runner"
)

// selection holds the flags choosing which tests run.
type selection struct {
	marks []string
	match string
}

func (s *selection) addFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&s.marks, "mark", "m", nil, "run tests carrying the mark; 'not NAME' excludes it (repeatable)")
	fs.StringVarP(&s.match, "name", "k", "", "run tests whose name contains the substring")
}

// filter returns the test filter of the selection, nil if it selects everything.
func (s *selection) filter() func(*mdtest.Test) bool {
	if len(s.marks) == 0 && s.match == "" {
		return nil
	}
	return func(t *mdtest.Test) bool {
		if s.match != "" && !strings.Contains(t.Name, s.match) {
			return false
		}
		for _, expr := range s.marks {
			expr = strings.TrimSpace(expr)
			if name, ok := strings.CutPrefix(expr, "not "); ok {
				if t.HasMark(strings.TrimSpace(name)) {
					return false
				}
				continue
			}
			if !t.HasMark(expr) {
				return false
			}
		}
		return true
	}
}

// output holds the flags controlling the report.
type output struct {
	format     string
	reportPath string
}

func (o *output) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.format, "format", "f", "text", "output format: "+strings.Join(report.Formats, ", "))
	fs.StringVar(&o.reportPath, "report", "", "also write the report to this file, format chosen by extension")
}

func (o *output) validate() error {
	if !slices.Contains(report.Formats, o.format) {
		return usageError(fmt.Errorf("unknown format %q", o.format))
	}
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var sel selection
	var out output
	cmd := &cobra.Command{
		Use:   "run [path ...]",
		Short: "Run the tests of documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			paths, err := expandPaths(args)
			if err != nil {
				return usageError(err)
			}
			rep, err := a.runSuite(cmd.Context(), paths, sel.filter())
			if err != nil {
				return err
			}
			if err := a.writeReport(rep, out); err != nil {
				return err
			}
			if !rep.OK() {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	sel.addFlags(cmd.Flags())
	out.addFlags(cmd.Flags())
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var sel selection
	var out output
	var debounce = watch.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch [path ...]",
		Short: "Run the tests of documents, then again whenever a document changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			paths, err := expandPaths(args)
			if err != nil {
				return usageError(err)
			}
			ctx := cmd.Context()
			runAndReport := func(ctx context.Context, paths []string) {
				rep, err := a.runSuite(ctx, paths, sel.filter())
				if err != nil {
					a.log.Error("Run failed", zap.Error(err))
					return
				}
				if err := a.writeReport(rep, out); err != nil {
					a.log.Error("Cannot write report", zap.Error(err))
				}
			}
			runAndReport(ctx, paths)

			w, err := watch.New(args, debounce, a.log.Named("watch"))
			if err != nil {
				return usageError(err)
			}
			a.log.Info("Watching for changes", zap.Strings("paths", args))
			return w.Run(ctx, runAndReport)
		},
	}
	sel.addFlags(cmd.Flags())
	out.addFlags(cmd.Flags())
	cmd.Flags().DurationVar(&debounce, "debounce", debounce, "quiet period before changed documents run")
	return cmd
}

// runSuite runs the tests of paths with the effective configuration. Documents
// which cannot be collected are part of the report, not an error.
func (a *app) runSuite(ctx context.Context, paths []string, filter func(*mdtest.Test) bool) (*runner.Report, error) {
	r, err := runner.New(append(a.cfg.RunnerOptions(), runner.WithLogger(a.log.Named("runner")))...)
	if err != nil {
		return nil, usageError(err)
	}
	suite := &runner.Suite{
		Runner:  r,
		Collect: a.cfg.CollectOptions(),
		Jobs:    a.cfg.Jobs,
		Filter:  filter,
		Log:     a.log,
	}
	rep, _ := suite.Run(ctx, paths)
	return rep, nil
}

func (a *app) writeReport(rep *runner.Report, out output) error {
	if err := report.Write(a.stdout, out.format, rep, a.verbose); err != nil {
		return &exitError{code: exitFailed, err: err}
	}
	if out.reportPath != "" {
		if err := report.WriteFile(out.reportPath, "", rep); err != nil {
			return &exitError{code: exitFailed, err: err}
		}
		a.log.Debug("Wrote report", zap.String("path", out.reportPath))
	}
	return nil
}

// expandPaths turns the command line paths into documents. Directories are
// searched recursively for Markdown files, skipping hidden directories. No
// paths means the current directory.
func expandPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	var docs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			docs = append(docs, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if watch.IsDocument(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(found)
		docs = append(docs, found...)
	}
	return slices.Compact(docs), nil
}

// splitCommand splits a command line at spaces. Quoting is not supported.
func splitCommand(command string) []string {
	return strings.Fields(command)
}
