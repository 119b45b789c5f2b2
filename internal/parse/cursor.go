package parse

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
	"unicode"
)

// Line is one line of a Markdown document.
type Line struct {
	No   int    // zero-based line index within the document
	Text string // line content, trailing white space removed
}

// Cursor is an abstraction of a Markdown document source.
// The scanner will use a Cursor for input.
//
// Unlike a reader, a Cursor holds every line of the document, so callers may look
// backwards and forwards from the current line without losing their place. The
// forward walk is moved only by Next and Skip; lookups through Peek, At and Before
// never change it.
type Cursor struct {
	lines []Line
	pos   int // index of the line Next will return
}

// maxLineLength bounds a single line of input.
const maxLineLength = 1 << 20

var (
	ErrAtEof      = errors.New("EOF")
	ErrOutOfRange = errors.New("line index out of range")
)

// NewCursor reads all of inputDoc and splits it into lines. Lines may be terminated by
// CR LF, CR, or LF; a single document may mix them.
func NewCursor(inputDoc io.Reader, wrapIOError func(string, error) error) (*Cursor, error) {
	input := bufio.NewScanner(inputDoc)
	input.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	input.Split(splitLines)
	c := &Cursor{}
	for input.Scan() {
		text := input.Text()
		if len(c.lines) == 0 {
			// Strip BOM (Byte Order Mark) at start of document if present
			text = strings.TrimPrefix(text, "\uFEFF")
		}
		c.lines = append(c.lines, Line{
			No:   len(c.lines),
			Text: strings.TrimRightFunc(text, unicode.IsSpace),
		})
	}
	if err := input.Err(); err != nil {
		return nil, wrapIOError("I/O error while reading document", err)
	}
	return c, nil
}

// NewCursorFromLines creates a cursor over already split lines.
func NewCursorFromLines(texts []string) *Cursor {
	c := &Cursor{lines: make([]Line, len(texts))}
	for i, text := range texts {
		c.lines[i] = Line{No: i, Text: strings.TrimRightFunc(text, unicode.IsSpace)}
	}
	return c
}

func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, ch := range data {
		switch ch {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			return 0, nil, nil // CR at end of window: might be CR LF
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Len returns the number of lines in the document.
func (c *Cursor) Len() int {
	return len(c.lines)
}

// Next advances the cursor and returns the line it moved onto. ErrAtEof is returned
// once all lines have been read.
func (c *Cursor) Next() (Line, error) {
	if c.pos >= len(c.lines) {
		return Line{}, ErrAtEof
	}
	line := c.lines[c.pos]
	c.pos++
	return line, nil
}

// current is the index of the line most recently returned by Next, or -1.
func (c *Cursor) current() int {
	return c.pos - 1
}

// Peek returns the line at offset from the current line without moving the cursor.
// Peek(0) is the current line, negative offsets look behind and positive offsets
// look ahead.
func (c *Cursor) Peek(offset int) (Line, error) {
	return c.At(c.current() + offset)
}

// At returns the line with index no.
func (c *Cursor) At(no int) (Line, error) {
	if no < 0 || no >= len(c.lines) {
		return Line{}, ErrOutOfRange
	}
	return c.lines[no], nil
}

// Skip moves the cursor by offset lines without reading them.
func (c *Cursor) Skip(offset int) {
	c.pos = min(max(c.pos+offset, 0), len(c.lines))
}

// Before yields up to n lines preceding the current line, most recent first.
// The starting point is captured when Before is called, so the sequence may be
// ranged over repeatedly and is unaffected by later cursor movement.
func (c *Cursor) Before(n int) iter.Seq[Line] {
	from := c.current() - 1
	lines := c.lines
	return func(yield func(Line) bool) {
		for i := from; i >= 0 && from-i < n; i-- {
			if !yield(lines[i]) {
				return
			}
		}
	}
}

// Mark returns the cursor position for a later Reset.
func (c *Cursor) Mark() int {
	return c.pos
}

// Reset restores a position previously obtained from Mark.
func (c *Cursor) Reset(mark int) {
	c.pos = min(max(mark, 0), len(c.lines))
}
