package mdtest

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Test is a collected test: one fragment group whose name carries the test prefix.
type Test struct {
	Name      string
	Path      string
	Dialect   *Dialect
	Fragments []Fragment
	Source    *Source  // program built from all fragments of the group
	Marks     []Mark   // distinct marks, first occurrence first
	Fixtures  []string // distinct fixture names, first occurrence first
	Cases     []string // case labels, in document order
	Isolated  bool     // some fragment asks for a subprocess run
	Err       error    // collection error, e.g. a malformed mark; the test cannot run
}

// Line is the 1-based document line of the first content line of the test.
func (t *Test) Line() int {
	if len(t.Fragments) == 0 {
		return 0
	}
	return t.Fragments[0].Line()
}

// ID identifies the test in reports: "<path>::<name>".
func (t *Test) ID() string {
	return t.Path + "::" + t.Name
}

// Mark returns the first mark named name.
func (t *Test) Mark(name string) (Mark, bool) {
	for _, m := range t.Marks {
		if m.Name == name {
			return m, true
		}
	}
	return Mark{}, false
}

// HasMark reports whether the test carries a mark named name.
func (t *Test) HasMark(name string) bool {
	_, ok := t.Mark(name)
	return ok
}

// Collect parses a document and returns its tests in the order their names first
// appear. Fragment groups whose name lacks the prefix are dropped.
//
// A malformed mark does not fail Collect; it is reported in the Err field of the
// one test it belongs to.
func Collect(r io.Reader, path string, opts ...Option) ([]Test, error) {
	c, err := newCollector(opts)
	if err != nil {
		return nil, err
	}
	frags, err := c.parse(r, path)
	if err != nil {
		return nil, err
	}
	var tests []Test
	for _, group := range GroupFragments(frags) {
		if !strings.HasPrefix(group.Name, c.prefix) {
			continue
		}
		tests = append(tests, c.test(group))
	}
	return tests, nil
}

// CollectFile is Collect for a document on disk.
func CollectFile(path string, opts ...Option) ([]Test, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(ErrCodeIO, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()
	return Collect(f, path, opts...)
}

func (c *collector) test(group Group) Test {
	t := Test{
		Name:      group.Name,
		Path:      group.Fragments[0].Path,
		Dialect:   c.dialect,
		Fragments: group.Fragments,
		Source:    BuildSource(group.Fragments...),
	}
	t.Marks, t.Err = CollectMarks(group.Fragments)
	for _, frag := range group.Fragments {
		meta := decodeMeta(frag.Args)
		for _, name := range meta.Fixtures {
			if !slices.Contains(t.Fixtures, name) {
				t.Fixtures = append(t.Fixtures, name)
			}
		}
		if meta.Case != "" && len(frag.Lines) > 0 {
			t.Cases = append(t.Cases, fmt.Sprintf("%s line=%d", meta.Case, frag.Line()+1))
		}
		if meta.Subprocess {
			t.Isolated = true
		}
	}
	return t
}
