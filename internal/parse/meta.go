package parse

import (
	"strings"
)

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// ReadMeta resolves the metadata comment annotating the fence the cursor is on.
// The cursor must have just returned the opening fence line from Next.
//
// A metadata comment either sits entirely before the fence (only blank lines in
// between), or wraps it: it opens before the fence and its closing "-->" is the
// first non-blank line after the fenced region. The cursor position is restored
// before ReadMeta returns.
//
// The result is nil if no comment applies or the comment has no "key: value"
// clauses.
func ReadMeta(c *Cursor, fence Fence) map[string]string {
	mark := c.Mark()
	defer c.Reset(mark)

	comment, ok := commentBefore(c)
	if !ok {
		comment, ok = commentAround(c, fence)
	}
	if !ok {
		return nil
	}
	return ParseArgs(comment)
}

// commentBefore looks backwards over blank lines for a comment ending right above
// the fence.
func commentBefore(c *Cursor) ([]string, bool) {
	for line := range c.Before(c.Len()) {
		if isBlank(line.Text) {
			continue
		}
		if !isCommentClose(line.Text) {
			return nil, false
		}
		return collectComment(c, line.No)
	}
	return nil, false
}

// commentAround looks forward past the end of the fenced region for the closing
// marker of a comment which wraps the fence.
func commentAround(c *Cursor, fence Fence) ([]string, bool) {
	end, ok := closingFence(c, fence)
	if !ok {
		return nil, false
	}
	for no := end + 1; ; no++ {
		line, err := c.At(no)
		if err != nil {
			return nil, false
		}
		if isBlank(line.Text) {
			continue
		}
		if strings.Contains(line.Text, commentOpen) || !isCommentClose(line.Text) {
			return nil, false
		}
		return collectComment(c, no)
	}
}

// closingFence finds the line index of the fence closing open.
func closingFence(c *Cursor, open Fence) (int, bool) {
	for no := open.Line + 1; ; no++ {
		line, err := c.At(no)
		if err != nil {
			return 0, false
		}
		if f, ok := ParseFence(line); ok && f.Closes(open) {
			return no, true
		}
	}
}

// openingFence finds the line index of the fence opened by the closing fence at
// line close, scanning backwards.
func openingFence(c *Cursor, close Fence) (int, bool) {
	for no := close.Line - 1; ; no-- {
		line, err := c.At(no)
		if err != nil {
			return 0, false
		}
		if f, ok := ParseFence(line); ok && f.Width == close.Width && f.Indent == close.Indent {
			return no, true
		}
	}
}

// collectComment gathers the raw lines of the comment whose closing marker is on
// line end. Fenced regions inside the comment are skipped, so an example fence
// shown in a comment cannot be mistaken for its boundary.
func collectComment(c *Cursor, end int) ([]string, bool) {
	var lines []string
	for no := end; no >= 0; no-- {
		line, err := c.At(no)
		if err != nil {
			return nil, false
		}
		if f, ok := ParseFence(line); ok && no != end {
			open, found := openingFence(c, f)
			if !found {
				return nil, false
			}
			no = open
			continue
		}
		lines = append(lines, line.Text)
		if strings.Contains(line.Text, commentOpen) {
			reverse(lines)
			return lines, true
		}
	}
	return nil, false
}

func isCommentClose(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), commentClose)
}

func reverse(lines []string) {
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
}

// ParseArgs parses the "key: value" grammar of a metadata comment.
//
//	<!-- name: test_a; mark: xfail; fixtures: tmpdir -->
//
// Clauses are separated by ';', keys from values by the first ':'. Clauses without
// a ':' are ignored. A key given more than once collects its values as
// "<old>, <new>".
func ParseArgs(comment []string) map[string]string {
	parts := make([]string, 0, len(comment))
	for _, line := range comment {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	text := strings.Join(parts, " ")
	if i := strings.Index(text, commentOpen); i >= 0 {
		text = text[i+len(commentOpen):]
	}
	if i := strings.LastIndex(text, commentClose); i >= 0 {
		text = text[:i]
	}
	text = strings.Trim(strings.TrimSpace(text), "-")

	var args map[string]string
	for _, clause := range SplitTopLevel(text, ';') {
		key, value, ok := strings.Cut(clause, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if args == nil {
			args = make(map[string]string)
		}
		if old, exists := args[key]; exists {
			value = old + ", " + value
		}
		args[key] = value
	}
	return args
}
