package parse

import (
	"fmt"
	"strings"
)

// Scanner is a type for a fence-level scanner.
//
// Our fence-level scanner will operate by calling scanning steps in a chain, iteratively.
// Each step function reads at most one line and then branches out to a subsequent step
// function. The chain walks the document strictly forward; only the metadata lookup
// looks around, and it restores the cursor when it is done.
type Scanner struct {
	Cursor *Cursor     // all lines of the document
	Step   ScannerStep // the next scanner step to execute in a chain

	Tags []string // info-string tags selecting target fences
	Noqa bool     // a "# noqa" line ends the fragment content

	// Case wrapping function - set by the main package
	WrapCase func(label string, lines []string) []string

	fence Fence // fence currently open
}

// We're building up a scanner from chains of scanner step functions.
// Blocks may be modified by a step function.
// A scanner step will return the next step in the chain, or nil to stop/accept.
// A nil block signals the end of the document.
type ScannerStep func(*Block) (*Block, ScannerStep)

// NewScanner creates a scanner over a cursor, looking for fences tagged with one of tags.
func NewScanner(c *Cursor, tags ...string) *Scanner {
	return &Scanner{Cursor: c, Tags: tags}
}

// NextBlock returns the next named fragment block, or nil at the end of the document.
//
// NextBlock iterates over a chain of step functions until it reaches an accepting
// state. Blocks without metadata or without a "name" are dropped here.
func (sc *Scanner) NextBlock() *Block {
	for {
		block := &Block{}
		sc.Step = sc.ScanLine
		for sc.Step != nil {
			block, sc.Step = sc.Step(block)
		}
		if block == nil {
			return nil
		}
		if block.Args["name"] == "" {
			continue
		}
		if label := block.Args["case"]; label != "" && sc.WrapCase != nil && len(block.Lines) > 0 {
			label = fmt.Sprintf("%s line=%d", label, block.StartLine+1)
			block.Lines = sc.WrapCase(label, block.Lines)
			block.StartLine--
		}
		return block
	}
}

// All returns every named fragment block of the document, in document order.
func (sc *Scanner) All() []*Block {
	var blocks []*Block
	for block := sc.NextBlock(); block != nil; block = sc.NextBlock() {
		blocks = append(blocks, block)
	}
	return blocks
}

// ScanLine is the initial step: it looks for an opening fence.
func (sc *Scanner) ScanLine(block *Block) (*Block, ScannerStep) {
	line, err := sc.Cursor.Next()
	if err != nil {
		return nil, nil
	}
	fence, ok := ParseFence(line)
	if !ok {
		return block, sc.ScanLine
	}
	sc.fence = fence
	if sc.isTarget(fence) {
		return block, sc.ScanMeta
	}
	return block, sc.SkipFence
}

// SkipFence consumes a foreign fenced region up to its closing fence.
func (sc *Scanner) SkipFence(block *Block) (*Block, ScannerStep) {
	line, err := sc.Cursor.Next()
	if err != nil {
		return nil, nil
	}
	if f, ok := ParseFence(line); ok && f.Info == "" && f.Width == sc.fence.Width {
		return block, sc.ScanLine
	}
	return block, sc.SkipFence
}

// ScanMeta resolves the metadata of a target fence. The cursor is on the fence line.
func (sc *Scanner) ScanMeta(block *Block) (*Block, ScannerStep) {
	block.Fence = sc.fence
	block.StartLine = sc.fence.Line + 1
	block.Args = ReadMeta(sc.Cursor, sc.fence)
	return block, sc.ScanContent
}

// ScanContent collects content lines until the closing fence. A block left open
// runs to the end of the document.
func (sc *Scanner) ScanContent(block *Block) (*Block, ScannerStep) {
	line, err := sc.Cursor.Next()
	if err != nil {
		return block, nil
	}
	if f, ok := ParseFence(line); ok && f.Closes(sc.fence) {
		block.Closed = true
		return block, nil
	}
	text := deindent(line.Text, sc.fence.Indent)
	if sc.Noqa && strings.HasPrefix(strings.TrimSpace(text), "# noqa") {
		return block, sc.SkipContent
	}
	block.Lines = append(block.Lines, text)
	return block, sc.ScanContent
}

// SkipContent consumes the rest of a block whose content was cut short.
func (sc *Scanner) SkipContent(block *Block) (*Block, ScannerStep) {
	line, err := sc.Cursor.Next()
	if err != nil {
		return block, nil
	}
	if f, ok := ParseFence(line); ok && f.Closes(sc.fence) {
		block.Closed = true
		return block, nil
	}
	return block, sc.SkipContent
}

func (sc *Scanner) isTarget(f Fence) bool {
	lang := f.Lang()
	if lang == "" {
		return false
	}
	for _, tag := range sc.Tags {
		if strings.EqualFold(lang, tag) {
			return true
		}
	}
	return false
}
