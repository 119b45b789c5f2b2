package mdtest

import (
	"cmp"
	"slices"
	"strings"
)

// Source is a program reconstructed from fragments. Line n of Text is line n of the
// document the fragments came from; lines not covered by a fragment are empty.
type Source struct {
	Text  string // program text, lines joined with "\n"
	Path  string // document the program was built from
	Lines int    // number of lines in Text
}

// BuildSource places the lines of frags at their document positions. Gaps between
// fragments stay as blank lines so that line numbers reported for the program match
// the document. BuildSource returns nil if no fragments are given.
func BuildSource(frags ...Fragment) *Source {
	if len(frags) == 0 {
		return nil
	}
	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(a, b Fragment) int {
		return cmp.Compare(a.StartLine, b.StartLine)
	})
	end := 0
	for _, frag := range sorted {
		end = max(end, frag.EndLine())
	}
	buf := make([]string, end)
	for _, frag := range sorted {
		copy(buf[frag.StartLine:frag.EndLine()], frag.Lines)
	}
	return &Source{
		Text:  strings.Join(buf, "\n"),
		Path:  sorted[0].Path,
		Lines: end,
	}
}
