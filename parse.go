package mdtest

import (
	"fmt"
	"io"
	"os"

	"github.com/danielledeleo/mdtest/internal/parse"
)

// DefaultPrefix is the name prefix a fragment group needs to be collected as a test.
const DefaultPrefix = "test"

// === Top-level API =========================================================

// Parse reads a Markdown document and returns its named fragments in document
// order. path identifies the document in fragments and diagnostics.
//
// Malformed metadata never fails Parse: a fence without usable metadata is not a
// fragment. If a non-nil error is returned, it will be of type Error.
func Parse(r io.Reader, path string, opts ...Option) ([]Fragment, error) {
	c, err := newCollector(opts)
	if err != nil {
		return nil, err
	}
	return c.parse(r, path)
}

// ParseFile is Parse for a document on disk.
func ParseFile(path string, opts ...Option) ([]Fragment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(ErrCodeIO, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()
	return Parse(f, path, opts...)
}

func (c *collector) parse(r io.Reader, path string) ([]Fragment, error) {
	if r == nil {
		return nil, MakeError(ErrCodeUsage, "no input present")
	}
	cursor, err := parse.NewCursor(r, wrapIOError)
	if err != nil {
		return nil, at(err, path, 0)
	}
	sc := parse.NewScanner(cursor, c.dialect.Tags...)
	sc.Noqa = c.noqa
	sc.WrapCase = c.dialect.WrapCase
	var frags []Fragment
	for block := sc.NextBlock(); block != nil; block = sc.NextBlock() {
		frags = append(frags, Fragment{
			Name:      block.Args["name"],
			Path:      path,
			StartLine: block.StartLine,
			Lines:     block.Lines,
			Args:      block.Args,
		})
	}
	return frags, nil
}

// --- Options ---------------------------------------------------------------

// Option configures parsing and collection.
// Multiple options may be passed to Parse, ParseFile, Collect, or CollectFile.
type Option func(*collector) error

type collector struct {
	dialect *Dialect
	prefix  string
	noqa    bool
}

func newCollector(opts []Option) (*collector, error) {
	c := &collector{
		dialect: Python,
		prefix:  DefaultPrefix,
		noqa:    false,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithDialect selects the dialect whose fences are collected. The default is Python.
func WithDialect(d *Dialect) Option {
	return func(c *collector) error {
		if d == nil {
			return MakeError(ErrCodeUsage, "dialect must not be nil")
		}
		c.dialect = d
		return nil
	}
}

// WithLang selects the dialect by name or fence tag, e.g. "go" or "py".
func WithLang(name string) Option {
	return func(c *collector) error {
		d, ok := LookupDialect(name)
		if !ok {
			return MakeError(ErrCodeUsage, fmt.Sprintf("unknown language %q", name))
		}
		c.dialect = d
		return nil
	}
}

// WithPrefix sets the prefix a group name needs to become a test. An empty prefix
// collects every group.
func WithPrefix(prefix string) Option {
	return func(c *collector) error {
		c.prefix = prefix
		return nil
	}
}

// WithNoqa switches the legacy "# noqa" cut on or off. With the cut enabled, a
// content line starting with "# noqa" ends the fragment's content. The cut is
// off by default: content runs to the closing fence.
func WithNoqa(enabled bool) Option {
	return func(c *collector) error {
		c.noqa = enabled
		return nil
	}
}

// --- Error helper functions for internal package ---------------------------

func makeMarkError(msg string) error {
	return MakeError(ErrCodeMark, msg)
}

func wrapIOError(msg string, err error) error {
	return wrapError(ErrCodeIO, msg, err)
}
