package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielledeleo/mdtest"
)

// Status is the reported outcome of a test.
type Status int

const (
	Passed  Status = iota // ran and succeeded
	Failed                // ran and failed, or an xfail expectation was violated
	Skipped               // not run because of a skip mark
	XFailed               // failed as expected
	XPassed               // passed although expected to fail
	Errored               // could not be run: collection, fixture or infrastructure error
)

var statusNames = [...]string{"passed", "failed", "skipped", "xfailed", "xpassed", "error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// OK reports whether the status lets a run succeed.
func (s Status) OK() bool {
	return s != Failed && s != Errored
}

// MarshalText encodes the status by its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Failure describes why an execution failed.
type Failure struct {
	Message   string `json:"message" yaml:"message"`                         // failure report
	Exception string `json:"exception,omitempty" yaml:"exception,omitempty"` // type of the raised exception or panic value
	ExitCode  int    `json:"exit_code,omitempty" yaml:"exit_code,omitempty"` // subprocess exit code, negative for a signal
}

// CaseResult is the outcome of one case of a test.
type CaseResult struct {
	Label     string `json:"label" yaml:"label"`
	Status    Status `json:"status" yaml:"status"` // Passed or Failed
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Exception string `json:"exception,omitempty" yaml:"exception,omitempty"`
}

// Outcome is what a strategy observed while executing a test.
type Outcome struct {
	Failure *Failure // nil if the program succeeded
	Cases   []CaseResult
	Stdout  string
	Stderr  string
}

// failed reports whether the program or one of its cases failed.
func (o *Outcome) failed() bool {
	if o.Failure != nil {
		return true
	}
	for _, c := range o.Cases {
		if c.Status == Failed {
			return true
		}
	}
	return false
}

// exception is the exception type of the first failure.
func (o *Outcome) exception() string {
	if o.Failure != nil {
		return o.Failure.Exception
	}
	for _, c := range o.Cases {
		if c.Status == Failed {
			return c.Exception
		}
	}
	return ""
}

// Result is the reported result of one test.
type Result struct {
	Test     *mdtest.Test
	Status   Status
	Strategy string // name of the strategy which ran the test, empty if it did not run
	Reason   string // skip or xfail reason
	Failure  *Failure
	Cases    []CaseResult
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error // cause of an Errored status
}

// Summary is a one-line description of the result.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", strings.ToUpper(r.Status.String()), r.Test.ID())
	switch {
	case r.Err != nil:
		fmt.Fprintf(&b, " - %v", r.Err)
	case r.Reason != "":
		fmt.Fprintf(&b, " - %s", r.Reason)
	case r.Failure != nil:
		first, _, _ := strings.Cut(r.Failure.Message, "\n")
		fmt.Fprintf(&b, " - %s", first)
	}
	return b.String()
}
