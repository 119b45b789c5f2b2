package mdtest

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Dialect describes how fragments of one language are recognized, wrapped and run.
type Dialect struct {
	Name      string   // canonical language name
	Tags      []string // fence info tags selecting the dialect's fences
	Ext       string   // file extension of subprocess sources
	Command   []string // subprocess command, see Argv
	InProcess bool     // the runner has an in-process evaluator for the dialect

	indent   string              // indentation of a case body
	comment  string              // line comment prefix
	pass     string              // statement closing the head of a case without code
	caseHead func(string) string // first line of a case wrapper, given the label
	caseTail func(string) string // last line of a case wrapper, given the label
	header   func(string) string // line prepended to subprocess sources, given the document path
	launch   func(file, path string) []string
}

// CaseMarker starts the line a case wrapper writes to standard error when its case
// fails: "mdtest: case [<label>] failed: <detail>".
const CaseMarker = "mdtest: case ["

// pythonBootstrap compiles the source file sys.argv[1] under the document path
// sys.argv[2], so tracebacks name the document and quote its lines.
const pythonBootstrap = `import sys, pathlib; _src, _doc = sys.argv[1:3]; sys.argv = [_doc]; ` +
	`exec(compile(pathlib.Path(_src).read_text(encoding="utf-8"), _doc, "exec"), {"__name__": "__main__", "__file__": _doc})`

// Python runs fragments with python3. There is no in-process evaluator, so every
// python test runs as a subprocess.
var Python = &Dialect{
	Name:    "python",
	Tags:    []string{"python", "py", "python3"},
	Ext:     ".py",
	Command: []string{"python3"},
	indent:  "    ",
	comment: "#",
	pass:    "pass",
	caseHead: func(string) string {
		return "try:"
	},
	caseTail: func(label string) string {
		return fmt.Sprintf(`except Exception as _mdtest_exc: __import__("sys").stderr.write("%s%%s] failed: %%s: %%s\n" %% (%s, type(_mdtest_exc).__name__, _mdtest_exc))`,
			CaseMarker, strconv.Quote(label))
	},
	launch: func(file, path string) []string {
		if path == "" {
			path = file
		}
		return []string{"-c", pythonBootstrap, file, path}
	},
}

// Go evaluates fragments in-process with a Go interpreter, or with "go run" when
// isolated. In-process programs may import the package "mdtest", which provides
// Case and Fixture.
//
// A case block becomes a package level "var _ = mdtest.Case(...)", so cases run
// during package initialization, in document order, before main. A case can use
// package level declarations but not state that main sets up.
var Go = &Dialect{
	Name:      "go",
	Tags:      []string{"go", "golang"},
	Ext:       ".go",
	Command:   []string{"go", "run"},
	InProcess: true,
	indent:    "\t",
	comment:   "//",
	caseHead: func(label string) string {
		return fmt.Sprintf("var _ = mdtest.Case(%s, func() {", strconv.Quote(label))
	},
	caseTail: func(string) string {
		return "})"
	},
	header: func(path string) string {
		return "//line " + path + ":1"
	},
}

var dialects = []*Dialect{Python, Go}

// LookupDialect finds a dialect by name or fence tag, ignoring case.
func LookupDialect(name string) (*Dialect, bool) {
	for _, d := range dialects {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
		for _, tag := range d.Tags {
			if strings.EqualFold(tag, name) {
				return d, true
			}
		}
	}
	return nil, false
}

// WithCommand returns a copy of the dialect running subprocesses with argv.
func (d *Dialect) WithCommand(argv ...string) *Dialect {
	c := *d
	c.Command = slices.Clone(argv)
	return &c
}

// WithTags returns a copy of the dialect which also selects fences tagged with tags.
func (d *Dialect) WithTags(tags ...string) *Dialect {
	c := *d
	c.Tags = slices.Clone(d.Tags)
	for _, tag := range tags {
		if !slices.Contains(c.Tags, tag) {
			c.Tags = append(c.Tags, tag)
		}
	}
	return &c
}

// Argv returns the command line running the subprocess source file for the
// document at path.
func (d *Dialect) Argv(file, path string) []string {
	argv := slices.Clone(d.Command)
	if d.launch == nil {
		return append(argv, file)
	}
	return append(argv, d.launch(file, path)...)
}

// WrapCase wraps the lines of a case fragment so they run as a sub-test labeled
// label. The result has two more lines than the input: the head takes the place of
// the opening fence, the tail that of the closing fence.
func (d *Dialect) WrapCase(label string, lines []string) []string {
	wrapped := make([]string, 0, len(lines)+2)
	head := d.caseHead(label)
	if d.pass != "" && !d.hasCode(lines) {
		head += " " + d.pass
	}
	wrapped = append(wrapped, head)
	for _, line := range lines {
		if line == "" {
			wrapped = append(wrapped, line)
			continue
		}
		wrapped = append(wrapped, d.indent+line)
	}
	return append(wrapped, d.caseTail(label))
}

// hasCode reports whether lines hold anything but blank lines and comments.
func (d *Dialect) hasCode(lines []string) bool {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && (d.comment == "" || !strings.HasPrefix(line, d.comment)) {
			return true
		}
	}
	return false
}

// SubprocessSource returns the text written to the subprocess source file.
func (d *Dialect) SubprocessSource(src *Source) string {
	if d.header == nil {
		return src.Text
	}
	return d.header(src.Path) + "\n" + src.Text
}

func (d *Dialect) String() string {
	return d.Name
}
