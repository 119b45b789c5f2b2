package parse

// Stack is the bracket stack used while splitting lists at their top level.
type Stack []rune

// Tos returns the top of stack, or 0 for an empty stack.
func (s Stack) Tos() rune {
	if len(s) > 0 {
		return s[len(s)-1]
	}
	return 0
}

func (s *Stack) Pop() (tos rune) {
	if len(*s) > 0 {
		tos = s.Tos()
		*s = (*s)[:len(*s)-1]
	}
	return tos
}

func (s *Stack) Push(r rune) {
	*s = append(*s, r)
}

// closing returns the bracket closing open, or 0 if open is not an opening bracket.
func closing(open rune) rune {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return 0
}

func isClosingBracket(r rune) bool {
	return r == ')' || r == ']' || r == '}'
}
