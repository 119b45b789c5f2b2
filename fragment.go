package mdtest

import (
	"fmt"
)

// Fragment is one fenced code region of a document plus its resolved metadata.
// Fragments are created by Parse and not modified afterwards.
type Fragment struct {
	Name      string            // test name, never empty
	Path      string            // document the fragment was found in
	StartLine int               // zero-based index of the first content line
	Lines     []string          // content lines, fence indentation removed
	Args      map[string]string // metadata, repeated keys joined as "<old>, <new>"
}

// EndLine is the index one past the last content line.
func (f Fragment) EndLine() int {
	return f.StartLine + len(f.Lines)
}

// Line is the 1-based document line of the first content line.
func (f Fragment) Line() int {
	return f.StartLine + 1
}

func (f Fragment) String() string {
	return fmt.Sprintf("%s:%d-%d[%s]", f.Path, f.Line(), f.EndLine(), f.Name)
}
