package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielledeleo/mdtest"
)

// Suite runs the tests of many documents. Documents run concurrently, up to Jobs
// at a time; the tests of one document run one after the other, in document order.
type Suite struct {
	Runner  *Runner
	Collect []mdtest.Option        // options for collecting tests
	Jobs    int                    // concurrent documents, 1 if not positive
	Filter  func(*mdtest.Test) bool // selects tests to run, all if nil
	Log     *zap.Logger
}

// Report is the result of a suite run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Files    []FileReport // in the order the documents were given
}

// FileReport holds the results of one document.
type FileReport struct {
	Path    string
	Results []Result
	Err     error // the document could not be collected
}

// Counts returns the number of results per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, f := range r.Files {
		for _, res := range f.Results {
			counts[res.Status]++
		}
	}
	return counts
}

// OK reports whether every document was collected and no test failed or errored.
func (r *Report) OK() bool {
	for _, f := range r.Files {
		if f.Err != nil {
			return false
		}
		for _, res := range f.Results {
			if !res.Status.OK() {
				return false
			}
		}
	}
	return true
}

// Run collects and runs the tests of all documents. The returned error combines
// the collection errors of all documents; the report is complete regardless.
func (s *Suite) Run(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Files:   make([]FileReport, len(paths)),
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run_id", report.RunID))
	log.Info("Starting run", zap.Int("documents", len(paths)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Jobs, 1))
	for i, path := range paths {
		g.Go(func() error {
			report.Files[i] = s.runFile(gctx, log, path)
			return nil
		})
	}
	_ = g.Wait() // documents report their errors in the report

	var err error
	for _, f := range report.Files {
		err = multierr.Append(err, f.Err)
	}
	report.Duration = time.Since(report.Started)
	counts := report.Counts()
	log.Info("Run finished",
		zap.Duration("duration", report.Duration),
		zap.Int("passed", counts[Passed]),
		zap.Int("failed", counts[Failed]+counts[Errored]))
	return report, err
}

func (s *Suite) runFile(ctx context.Context, log *zap.Logger, path string) FileReport {
	fr := FileReport{Path: path}
	tests, err := mdtest.CollectFile(path, s.Collect...)
	if err != nil {
		log.Warn("Cannot collect document", zap.String("path", path), zap.Error(err))
		fr.Err = err
		return fr
	}
	log.Debug("Collected document", zap.String("path", path), zap.Int("tests", len(tests)))
	for i := range tests {
		t := &tests[i]
		if s.Filter != nil && !s.Filter(t) {
			continue
		}
		if ctx.Err() != nil {
			fr.Results = append(fr.Results, errored(Result{Test: t}, fmt.Errorf("not run: %w", ctx.Err())))
			continue
		}
		fr.Results = append(fr.Results, s.Runner.Run(ctx, t))
	}
	return fr
}
