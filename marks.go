package mdtest

import (
	"github.com/danielledeleo/mdtest/internal/parse"
)

// Ref is a reference to a named entity in a mark argument, written as a dotted
// name, e.g. ZeroDivisionError.
type Ref = parse.Ref

// Mark is one parsed mark directive, e.g. xfail(reason="not yet", strict=True).
//
// Argument values are string, bool, int, float64, Ref, nil, or []any for
// parenthesized and bracketed sequences.
type Mark struct {
	Name   string
	Args   []any
	Kwargs map[string]any
	Raw    string // source text; two marks are the same mark iff their Raw is equal
}

func (m Mark) String() string {
	return m.Raw
}

// Kwarg returns the keyword argument key.
func (m Mark) Kwarg(key string) (any, bool) {
	v, ok := m.Kwargs[key]
	return v, ok
}

// SplitMarks splits the value of a "mark" metadata key into single directives.
// Commas inside brackets or quotes do not split:
//
//	SplitMarks("xfail(reason='a, b'), skip") // ["xfail(reason='a, b')", "skip"]
func SplitMarks(s string) []string {
	return parse.SplitTopLevel(s, ',')
}

// ParseMark parses a single mark directive: a name, optionally followed by a
// parenthesized argument list. Errors are of type Error with code ErrCodeMark.
func ParseMark(s string) (Mark, error) {
	d, err := parse.ParseDirective(s, makeMarkError)
	if err != nil {
		return Mark{}, err
	}
	return Mark{
		Name:   d.Name,
		Args:   d.Args,
		Kwargs: d.Kwargs,
		Raw:    d.Raw,
	}, nil
}

// CollectMarks parses the marks of all frags. A mark repeated on several fragments
// of a group counts once; marks are ordered by first occurrence. The first
// malformed directive aborts collection.
func CollectMarks(frags []Fragment) ([]Mark, error) {
	var marks []Mark
	seen := make(map[string]bool)
	for _, frag := range frags {
		meta := decodeMeta(frag.Args)
		for _, raw := range SplitMarks(meta.Mark) {
			m, err := ParseMark(raw)
			if err != nil {
				return nil, at(err, frag.Path, frag.Line())
			}
			if seen[m.Raw] {
				continue
			}
			seen[m.Raw] = true
			marks = append(marks, m)
		}
	}
	return marks, nil
}
