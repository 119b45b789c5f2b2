package runner

import (
	"strings"

	"github.com/danielledeleo/mdtest"
)

// skipArgs are the arguments of skip(reason=...).
type skipArgs struct {
	Reason string `md:"reason,positional"`
}

// skipIfArgs are the arguments of skipif(condition, reason=...).
type skipIfArgs struct {
	Condition bool   `md:"condition,positional"`
	Reason    string `md:"reason"`
}

// xfailArgs are the arguments of xfail(condition, reason=, raises=, strict=, run=).
type xfailArgs struct {
	Condition *bool    `md:"condition,positional"`
	Reason    string   `md:"reason"`
	Raises    []string `md:"raises"`
	Strict    *bool    `md:"strict"`
	Run       *bool    `md:"run"`
}

// plan is the disposition of a test derived from its marks.
type plan struct {
	skip       bool
	skipReason string
	xfail      *xfailArgs
	strict     bool
}

// dispose derives the plan for a test from its marks. Unknown marks are labels and
// do not change the plan. strictDefault is the strictness of xfail marks without
// a strict argument.
func dispose(marks []mdtest.Mark, strictDefault bool) (*plan, error) {
	p := &plan{}
	for _, m := range marks {
		switch m.Name {
		case "skip":
			var args skipArgs
			if err := mdtest.DecodeMark(m, &args); err != nil {
				return nil, err
			}
			if !p.skip {
				p.skip, p.skipReason = true, args.Reason
			}
		case "skipif":
			var args skipIfArgs
			if err := mdtest.DecodeMark(m, &args); err != nil {
				return nil, err
			}
			if args.Condition && !p.skip {
				p.skip, p.skipReason = true, args.Reason
			}
		case "xfail":
			var args xfailArgs
			if err := mdtest.DecodeMark(m, &args); err != nil {
				return nil, err
			}
			if args.Condition != nil && !*args.Condition {
				continue
			}
			if p.xfail == nil {
				p.xfail = &args
				p.strict = strictDefault
				if args.Strict != nil {
					p.strict = *args.Strict
				}
			}
		}
	}
	return p, nil
}

// runs reports whether the test is executed at all.
func (p *plan) runs() bool {
	if p.skip {
		return false
	}
	return p.xfail == nil || p.xfail.Run == nil || *p.xfail.Run
}

// before returns the status of a test which is not run, with its reason.
func (p *plan) before() (Status, string) {
	if p.skip {
		return Skipped, p.skipReason
	}
	return XFailed, "[NOTRUN] " + p.xfail.Reason
}

// after maps the outcome of an executed test to its reported status.
func (p *plan) after(out *Outcome) (Status, string) {
	failed := out.failed()
	if p.xfail == nil {
		if failed {
			return Failed, ""
		}
		return Passed, ""
	}
	reason := p.xfail.Reason
	if failed {
		if len(p.xfail.Raises) > 0 && !raisesMatch(p.xfail.Raises, out.exception()) {
			return Failed, ""
		}
		return XFailed, reason
	}
	if p.strict {
		return Failed, strings.TrimSpace("[XPASS(strict)] " + reason)
	}
	return XPassed, reason
}

// raisesMatch reports whether exception is one of the expected exception types.
// Names match in full or by their last dotted segment, so ZeroDivisionError
// matches builtins.ZeroDivisionError and errors.errorString matches
// *errors.errorString.
func raisesMatch(raises []string, exception string) bool {
	exception = strings.TrimPrefix(exception, "*")
	if exception == "" {
		return false
	}
	for _, want := range raises {
		want = strings.TrimPrefix(want, "*")
		if want == exception || lastSegment(want) == lastSegment(exception) {
			return true
		}
	}
	return false
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
