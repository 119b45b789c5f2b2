// Package mdtest extracts executable code fragments from Markdown documents and
// turns them into named tests.
//
// A fenced code block becomes part of a test when an HTML comment annotates it:
//
//	<!-- name: test_sum; mark: xfail(raises=ZeroDivisionError) -->
//	```python
//	1 / 0
//	```
//
// The comment may sit right above the fence or wrap it. Blocks sharing one name
// are combined, in document order, into a single program whose line numbers match
// the document exactly, so diagnostics point back at the right Markdown line.
//
// # Collecting tests
//
// Use [Collect] or [CollectFile] to get the tests of a document:
//
//	tests, err := mdtest.CollectFile("README.md", mdtest.WithLang("go"))
//
// Each [Test] carries its source, its marks and the fixtures it asks for. The
// runner package executes tests, the doctest package hooks them into go test.
//
// # Low-level API
//
// Use [Parse] to get the raw fragments of a document, [GroupFragments] to bucket
// them by name and [BuildSource] to reconstruct a line-aligned program. Marks are
// split with [SplitMarks] and parsed with [ParseMark].
package mdtest

import (
	"fmt"
)

// --- Error type ------------------------------------------------------------

// Error is the error type of package mdtest.
type Error struct {
	Code         int    // error code
	Path         string // document the error refers to, if any
	Line         int    // 1-based document line, 0 if unknown
	msg          string
	wrappedError error
}

// We use a custom error type which contains a numeric error code.
const (
	NoError        = 0
	ErrCodeUsage   = 1   // erroneous API call or configuration
	ErrCodeIO      = 10  // error will wrap an underlying I/O error
	ErrCodeFixture = 100 // a requested fixture cannot be provided
	ErrCodeMark    = 200 // malformed mark directive
)

// Error produces an error message from an mdtest error.
func (e Error) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.msg)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.msg)
	}
	return e.msg
}

// Unwrap returns an optionally present underlying error condition, e.g., an I/O-Error.
func (e Error) Unwrap() error {
	return e.wrappedError
}

// MakeError creates an Error with a given error code and message.
func MakeError(code int, errMsg string) Error {
	return Error{
		Code: code,
		msg:  errMsg,
	}
}

// wrapError wraps an error into an Error.
func wrapError(code int, errMsg string, err error) Error {
	e := MakeError(code, errMsg)
	e.wrappedError = err
	return e
}

// at attaches a document position to an error created by this package.
func at(err error, path string, line int) error {
	e, ok := err.(Error)
	if !ok {
		return err
	}
	if e.Path == "" {
		e.Path = path
	}
	if e.Line == 0 {
		e.Line = line
	}
	return e
}
