package mdtest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const splitDoc = `# Calculator

<!-- name: test_calc -->
` + "```python" + `
class Calc:
    def add(self, a, b):
        return a + b
` + "```" + `

Unrelated example:

<!-- name: test_other -->
` + "```python" + `
other = 1
` + "```" + `

<!-- name: test_calc; mark: skip -->
` + "```python" + `
assert Calc().add(1, 2) == 3
` + "```" + `

<!-- name: helper -->
` + "```python" + `
helper = True
` + "```" + `
`

func TestParseFragments(t *testing.T) {
	frags, err := Parse(strings.NewReader(splitDoc), "calc.md")
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range frags {
		t.Logf("fragment %s: %q", frag, frag.Lines)
	}
	want := []struct {
		name  string
		start int
		lines int
	}{
		{"test_calc", 4, 3},
		{"test_other", 13, 1},
		{"test_calc", 18, 1},
		{"helper", 23, 1},
	}
	if len(frags) != len(want) {
		t.Fatalf("expected %d fragments, got %d", len(want), len(frags))
	}
	for i, w := range want {
		if frags[i].Name != w.name || frags[i].StartLine != w.start || len(frags[i].Lines) != w.lines {
			t.Errorf("fragment %d: expected %s at %d with %d lines, got %s at %d with %d lines",
				i, w.name, w.start, w.lines, frags[i].Name, frags[i].StartLine, len(frags[i].Lines))
		}
		if frags[i].Path != "calc.md" {
			t.Errorf("fragment %d: path %q", i, frags[i].Path)
		}
	}
	if frags[2].Args["mark"] != "skip" {
		t.Errorf("expected mark metadata on third fragment, got %#v", frags[2].Args)
	}
}

func TestParseDialects(t *testing.T) {
	doc := "<!-- name: test_py -->\n```py\nx = 1\n```\n<!-- name: test_go -->\n```go\nx := 1\n```\n"
	frags, err := Parse(strings.NewReader(doc), "doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].Name != "test_py" {
		t.Errorf("python dialect: unexpected fragments %v", frags)
	}
	frags, err = Parse(strings.NewReader(doc), "doc.md", WithLang("golang"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].Name != "test_go" {
		t.Errorf("go dialect: unexpected fragments %v", frags)
	}
	frags, err = Parse(strings.NewReader(doc), "doc.md", WithDialect(Go.WithTags("py")))
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 2 {
		t.Errorf("extra tag: expected both fragments, got %v", frags)
	}
}

func TestParseOptionErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "doc.md", WithLang("cobol"))
	var mdErr Error
	if !errors.As(err, &mdErr) || mdErr.Code != ErrCodeUsage {
		t.Errorf("expected usage error for unknown language, got %v", err)
	}
	_, err = Parse(nil, "doc.md")
	if !errors.As(err, &mdErr) || mdErr.Code != ErrCodeUsage {
		t.Errorf("expected usage error for nil reader, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, []byte(splitDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	frags, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 4 || frags[0].Path != path {
		t.Errorf("unexpected fragments %v", frags)
	}

	_, err = ParseFile(filepath.Join(dir, "missing.md"))
	var mdErr Error
	if !errors.As(err, &mdErr) || mdErr.Code != ErrCodeIO {
		t.Fatalf("expected I/O error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("I/O error should wrap the cause, got %v", err)
	}
}

func TestParseNoqa(t *testing.T) {
	doc := "<!-- name: test_n -->\n```python\na = 1\n# noqa\nb = 2\n```\n"
	frags, _ := Parse(strings.NewReader(doc), "doc.md")
	if len(frags) != 1 || len(frags[0].Lines) != 3 {
		t.Errorf("content runs to the closing fence by default, got %v", frags)
	}
	frags, _ = Parse(strings.NewReader(doc), "doc.md", WithNoqa(true))
	if len(frags) != 1 || len(frags[0].Lines) != 1 {
		t.Errorf("noqa cut enabled, got %v", frags)
	}
}
