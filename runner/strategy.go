package runner

import (
	"context"

	"github.com/danielledeleo/mdtest"
)

// Strategy executes the program of a test.
//
// A strategy reports failures of the program in the Outcome. The returned error
// is reserved for faults of the strategy itself, like a temp file which cannot
// be written or a command which cannot be started.
type Strategy interface {
	Name() string
	Run(ctx context.Context, job *Job) (*Outcome, error)
}

// Job is one execution of a test.
type Job struct {
	Test     *mdtest.Test
	Fixtures map[string]string // fixture values by name
	Command  []string          // subprocess command, completed by mdtest.Dialect.Argv
	Dir      string            // working directory of subprocesses
	Env      []string          // extra environment of subprocesses
}

// Select picks the strategy for a test: a subprocess if some fragment asks for
// isolation or the dialect has no in-process evaluator, in-process otherwise.
func (r *Runner) Select(t *mdtest.Test) Strategy {
	if t.Isolated || t.Dialect == nil || !t.Dialect.InProcess {
		return r.subprocess
	}
	return r.inProcess
}
