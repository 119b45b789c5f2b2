package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitTopLevel splits s at every sep which is neither nested in brackets nor part
// of a quoted string. Parts are trimmed and empty parts dropped, so
//
//	xfail(reason='a, b'), skip
//
// splits into two parts at ','. If s has unbalanced brackets or an unterminated
// quote, it is split at every sep instead.
func SplitTopLevel(s string, sep rune) []string {
	if parts, ok := splitTopLevel(s, sep); ok {
		return parts
	}
	var parts []string
	for _, part := range strings.Split(s, string(sep)) {
		parts = appendPart(parts, part)
	}
	return parts
}

func splitTopLevel(s string, sep rune) ([]string, bool) {
	var (
		parts   []string
		stack   Stack
		quote   rune
		escaped bool
		prev    rune
		start   int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case (r == '\'' || r == '"') && !isIdentChar(prev):
			// an apostrophe inside a word ("don't") does not start a string
			quote = r
		case r == sep && len(stack) == 0:
			parts = appendPart(parts, s[start:i])
			start = i + utf8.RuneLen(r)
		case closing(r) != 0:
			stack.Push(r)
		case isClosingBracket(r):
			if closing(stack.Tos()) != r {
				return nil, false
			}
			stack.Pop()
		}
		prev = r
	}
	if quote != 0 || len(stack) > 0 {
		return nil, false
	}
	return appendPart(parts, s[start:]), true
}

func appendPart(parts []string, part string) []string {
	if part = strings.TrimSpace(part); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// Ref is a reference to a named entity in a directive, written as a dotted name,
// e.g. ZeroDivisionError or errors.ErrUnsupported.
type Ref string

// Directive is one parsed mark entry: a name plus optional arguments.
type Directive struct {
	Raw    string         // source text of the directive
	Name   string         // mark name
	Args   []any          // positional arguments
	Kwargs map[string]any // keyword arguments
}

// directiveParser is a scannerless recursive-descent parser for directives
//
//	name
//	name(key=value, ...)
//
// Values are literals: quoted strings, integers, floats, True/False/None,
// dotted references and parenthesized or bracketed sequences of values.
type directiveParser struct {
	text      string
	pos       int
	makeError func(msg string) error
}

// ParseDirective parses a single directive. Errors are created by makeError.
func ParseDirective(text string, makeError func(string) error) (Directive, error) {
	p := &directiveParser{text: strings.TrimSpace(text), makeError: makeError}
	d := Directive{Raw: p.text}
	if d.Name = p.dotted(); d.Name == "" {
		return d, p.errorf("mark name expected")
	}
	p.skipSpace()
	if p.eof() {
		return d, nil
	}
	if !p.match('(') {
		return d, p.errorf("unexpected %q after mark name", p.rest())
	}
	for {
		p.skipSpace()
		if p.match(')') {
			break
		}
		if err := p.argument(&d); err != nil {
			return d, err
		}
		p.skipSpace()
		if p.match(',') {
			continue
		}
		if p.match(')') {
			break
		}
		return d, p.errorf("expected ',' or ')' at %q", p.rest())
	}
	p.skipSpace()
	if !p.eof() {
		return d, p.errorf("extra characters after closing parenthesis: %q", p.rest())
	}
	return d, nil
}

// argument parses "key=value" or a positional value.
func (p *directiveParser) argument(d *Directive) error {
	save := p.pos
	if key := p.ident(); key != "" {
		p.skipSpace()
		if p.match('=') {
			value, err := p.value()
			if err != nil {
				return err
			}
			if _, dup := d.Kwargs[key]; dup {
				return p.errorf("keyword argument repeated: %s", key)
			}
			if d.Kwargs == nil {
				d.Kwargs = make(map[string]any)
			}
			d.Kwargs[key] = value
			return nil
		}
		p.pos = save
	}
	if d.Kwargs != nil {
		return p.errorf("positional argument follows keyword argument")
	}
	value, err := p.value()
	if err != nil {
		return err
	}
	d.Args = append(d.Args, value)
	return nil
}

func (p *directiveParser) value() (any, error) {
	p.skipSpace()
	ch := p.peek()
	switch {
	case ch == '\'' || ch == '"':
		return p.str()
	case ch == '(' || ch == '[':
		return p.sequence()
	case ch == '-' || ch == '+' || ch == '.' || unicode.IsDigit(ch):
		return p.number()
	case isIdentStart(ch):
		name := p.dotted()
		switch name {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		case "None":
			return nil, nil
		}
		return Ref(name), nil
	}
	return nil, p.errorf("value expected at %q", p.rest())
}

func (p *directiveParser) sequence() (any, error) {
	end := closing(p.next())
	values := []any{}
	for {
		p.skipSpace()
		if p.match(end) {
			return values, nil
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		p.skipSpace()
		if p.match(',') {
			continue
		}
		if p.match(end) {
			return values, nil
		}
		return nil, p.errorf("expected ',' or %q at %q", end, p.rest())
	}
}

func (p *directiveParser) str() (any, error) {
	quote := p.next()
	var b strings.Builder
	for !p.eof() {
		ch := p.next()
		switch ch {
		case quote:
			return b.String(), nil
		case '\\':
			if p.eof() {
				break
			}
			esc := p.next()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '\\', '\'', '"':
				b.WriteRune(esc)
			default:
				b.WriteRune('\\')
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(ch)
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *directiveParser) number() (any, error) {
	start := p.pos
	for !p.eof() {
		ch := p.peek()
		if !isIdentChar(ch) && ch != '.' && ch != '+' && ch != '-' {
			break
		}
		p.next()
	}
	lit := p.text[start:p.pos]
	if i, err := strconv.ParseInt(lit, 0, 64); err == nil {
		return int(i), nil
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(lit, "_", ""), 64); err == nil {
		return f, nil
	}
	return nil, p.errorf("invalid number %q", lit)
}

// dotted reads name('.'name)*.
func (p *directiveParser) dotted() string {
	start := p.pos
	for {
		if p.ident() == "" {
			p.pos = start
			return ""
		}
		save := p.pos
		if !p.match('.') {
			break
		}
		if !isIdentStart(p.peek()) {
			p.pos = save
			break
		}
	}
	return p.text[start:p.pos]
}

func (p *directiveParser) ident() string {
	start := p.pos
	if !isIdentStart(p.peek()) {
		return ""
	}
	for !p.eof() && isIdentChar(p.peek()) {
		p.next()
	}
	return p.text[start:p.pos]
}

func (p *directiveParser) eof() bool {
	return p.pos >= len(p.text)
}

func (p *directiveParser) peek() rune {
	if p.eof() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.text[p.pos:])
	return r
}

func (p *directiveParser) next() rune {
	r, w := utf8.DecodeRuneInString(p.text[p.pos:])
	p.pos += w
	return r
}

func (p *directiveParser) match(r rune) bool {
	if p.eof() || p.peek() != r {
		return false
	}
	p.next()
	return true
}

func (p *directiveParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.next()
	}
}

func (p *directiveParser) rest() string {
	return p.text[p.pos:]
}

func (p *directiveParser) errorf(format string, args ...any) error {
	return p.makeError(fmt.Sprintf("mark %q: ", p.text) + fmt.Sprintf(format, args...))
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
