package parse

import (
	"fmt"
	"strings"
)

// Block is a type for communicating between the fence scanner and its callers.
// The scanner will read lines and wrap every fenced region of the target language,
// together with the metadata attached to it, into a Block.
type Block struct {
	StartLine int               // index of the first content line
	Lines     []string          // content lines, fence indentation removed
	Args      map[string]string // resolved metadata, nil if there is none
	Fence     Fence             // opening fence of the block
	Closed    bool              // false if the document ended before the closing fence
}

// EndLine is the index one past the last content line.
func (b *Block) EndLine() int {
	return b.StartLine + len(b.Lines)
}

func (b *Block) String() string {
	return fmt.Sprintf("block[at(%d,%d) fence=%s %#v]", b.StartLine, b.EndLine(), b.Fence, b.Args)
}

// Fence is a line opening or closing a fenced code region.
type Fence struct {
	Line   int    // index of the fence line
	Indent int    // number of white space characters before the backticks
	Width  int    // length of the backtick run
	Info   string // info string following the backticks, trimmed
}

const fenceChar = '`'

// minFenceWidth is the shortest backtick run that opens a fence.
const minFenceWidth = 3

// ParseFence recognizes a fence line: optional indentation followed by a run of at
// least three backticks and an optional info string.
func ParseFence(line Line) (Fence, bool) {
	body := strings.TrimLeft(line.Text, " \t")
	width := 0
	for width < len(body) && body[width] == fenceChar {
		width++
	}
	if width < minFenceWidth {
		return Fence{}, false
	}
	info := strings.TrimSpace(body[width:])
	if strings.ContainsRune(info, fenceChar) { // not a fence but inline code
		return Fence{}, false
	}
	return Fence{
		Line:   line.No,
		Indent: len(line.Text) - len(body),
		Width:  width,
		Info:   info,
	}, true
}

// Lang returns the first word of the info string, the fence's language tag.
func (f Fence) Lang() string {
	lang, _, _ := strings.Cut(f.Info, " ")
	return lang
}

// Closes reports whether f is a closing fence for the opening fence open: a bare
// backtick run of the same length at the same indentation.
func (f Fence) Closes(open Fence) bool {
	return f.Info == "" && f.Width == open.Width && f.Indent == open.Indent
}

func (f Fence) String() string {
	return strings.Repeat(" ", f.Indent) + strings.Repeat(string(fenceChar), f.Width) + f.Info
}

// deindent removes up to n leading white space characters from text.
func deindent(text string, n int) string {
	i := 0
	for i < n && i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return text[i:]
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
