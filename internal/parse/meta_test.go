package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// metaAt resolves the metadata of the fence on line fenceLine of doc.
func metaAt(t *testing.T, doc []string, fenceLine int) map[string]string {
	t.Helper()
	c := NewCursorFromLines(doc)
	c.Skip(fenceLine + 1)
	line, err := c.Peek(0)
	if err != nil {
		t.Fatal(err)
	}
	fence, ok := ParseFence(line)
	if !ok {
		t.Fatalf("line %d is not a fence: %q", fenceLine, line.Text)
	}
	mark := c.Mark()
	args := ReadMeta(c, fence)
	if c.Mark() != mark {
		t.Errorf("cursor moved from %d to %d", mark, c.Mark())
	}
	return args
}

func TestReadMeta(t *testing.T) {
	tests := []struct {
		name  string
		doc   []string
		fence int
		want  map[string]string
	}{
		{
			name: "comment before fence",
			doc: []string{
				"<!-- name: test_a -->",
				"```python",
				"x = 1",
				"```",
			},
			fence: 1,
			want:  map[string]string{"name": "test_a"},
		},
		{
			name: "blank lines between comment and fence",
			doc: []string{
				"<!-- name: test_a; mark: skip -->",
				"",
				"",
				"```python",
				"```",
			},
			fence: 3,
			want:  map[string]string{"name": "test_a", "mark": "skip"},
		},
		{
			name: "prose between comment and fence",
			doc: []string{
				"<!-- name: test_a -->",
				"Some text.",
				"```python",
				"```",
			},
			fence: 2,
			want:  nil,
		},
		{
			name: "comment wrapping the fence",
			doc: []string{
				"<!--",
				"name: test_b",
				"```python",
				"x = 1",
				"```",
				"",
				"-->",
			},
			fence: 2,
			want:  map[string]string{"name": "test_b"},
		},
		{
			name: "comment opening after the fence",
			doc: []string{
				"```python",
				"x = 1",
				"```",
				"<!-- name: test_c -->",
			},
			fence: 0,
			want:  nil,
		},
		{
			name: "unclosed fence",
			doc: []string{
				"```python",
				"x = 1",
			},
			fence: 0,
			want:  nil,
		},
		{
			name: "comment following another test's closing fence",
			doc: []string{
				"<!-- name: test_a -->",
				"```python",
				"a = 1",
				"```",
				"<!-- name: test_b -->",
				"```python",
				"b = 2",
				"```",
			},
			fence: 5,
			want:  map[string]string{"name": "test_b"},
		},
		{
			name: "fence directly after another test's closing fence",
			doc: []string{
				"<!-- name: test_a -->",
				"```python",
				"a = 1",
				"```",
				"```python",
				"b = 2",
				"```",
			},
			fence: 4,
			want:  nil,
		},
		{
			name: "fenced example inside the comment",
			doc: []string{
				"<!--",
				"name: test_n;",
				"```text",
				"-->",
				"```",
				"-->",
				"```python",
				"n = 1",
				"```",
			},
			fence: 6,
			want:  map[string]string{"name": "test_n"},
		},
		{
			name: "indented comment and fence",
			doc: []string{
				"- item",
				"",
				"  <!-- name: test_i -->",
				"  ```python",
				"  x = 1",
				"  ```",
			},
			fence: 3,
			want:  map[string]string{"name": "test_i"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := metaAt(t, test.doc, test.fence)
			t.Logf("metadata: %#v", got)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("metadata mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		comment []string
		want    map[string]string
	}{
		{
			[]string{"<!--", "name: a;", "mark: skip", "-->"},
			map[string]string{"name": "a", "mark": "skip"},
		},
		{
			[]string{"<!-- name: a; mark: x; mark: y -->"},
			map[string]string{"name": "a", "mark": "x, y"},
		},
		{
			[]string{"<!-- name: a; junk -->"},
			map[string]string{"name": "a"},
		},
		{
			[]string{"<!--- name: a --->"},
			map[string]string{"name": "a"},
		},
		{
			[]string{"<!-- name: a; mark: xfail(reason='x; y') -->"},
			map[string]string{"name": "a", "mark": "xfail(reason='x; y')"},
		},
		{
			[]string{"<!-- name: a; case: it's fine; mark: skip -->"},
			map[string]string{"name": "a", "case": "it's fine", "mark": "skip"},
		},
		{
			[]string{"<!-- name: a; case: see http://example.com -->"},
			map[string]string{"name": "a", "case": "see http://example.com"},
		},
		{
			[]string{"<!-- : empty key; name: a -->"},
			map[string]string{"name": "a"},
		},
		{
			[]string{"<!-- just a remark -->"},
			nil,
		},
	}
	for _, test := range tests {
		got := ParseArgs(test.comment)
		t.Logf("%q -> %#v", test.comment, got)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("ParseArgs(%q) mismatch (-want +got):\n%s", test.comment, diff)
		}
	}
}
