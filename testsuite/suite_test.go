package testsuite_test

import (
	"os"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	"github.com/danielledeleo/mdtest"
)

// This test runner checks fragment extraction and test collection against the
// conformance cases in testdata/conformance.yaml.
//
// Fragments and tests are compared as plain summaries: names, 1-based lines,
// content lines, marks (by their source text), fixtures and case labels. A case
// may also pin down the program built for its first test, given as the map of
// its non-blank lines.

var suiteFile = "testdata/conformance.yaml"

// conformanceSuite represents the YAML structure of the suite file.
type conformanceSuite struct {
	Cases map[string]conformanceCase `yaml:"cases"`
}

type conformanceCase struct {
	Lang      string         `yaml:"lang"`
	Prefix    *string        `yaml:"prefix"`
	Noqa      *bool          `yaml:"noqa"`
	Input     string         `yaml:"input"`
	Fragments []fragmentWant `yaml:"fragments"`
	Tests     []testWant     `yaml:"tests"`
	Source    map[int]string `yaml:"source"`
	SourceLen int            `yaml:"source_len"`
}

type fragmentWant struct {
	Name  string   `yaml:"name"`
	Line  int      `yaml:"line"`
	Lines []string `yaml:"lines"`
}

type testWant struct {
	Name      string   `yaml:"name"`
	Line      int      `yaml:"line"`
	Marks     []string `yaml:"marks"`
	Fixtures  []string `yaml:"fixtures"`
	Cases     []string `yaml:"cases"`
	Isolated  bool     `yaml:"isolated"`
	Fragments int      `yaml:"fragments"` // 0 means 1
}

func (c *conformanceCase) options() []mdtest.Option {
	var opts []mdtest.Option
	if c.Lang != "" {
		opts = append(opts, mdtest.WithLang(c.Lang))
	}
	if c.Prefix != nil {
		opts = append(opts, mdtest.WithPrefix(*c.Prefix))
	}
	if c.Noqa != nil {
		opts = append(opts, mdtest.WithNoqa(*c.Noqa))
	}
	return opts
}

func loadSuite(t *testing.T) *conformanceSuite {
	t.Helper()
	data, err := os.ReadFile(suiteFile)
	if err != nil {
		t.Fatalf("Failed to load conformance suite: %v", err)
	}
	var suite conformanceSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		t.Fatalf("Failed to parse conformance suite YAML: %v", err)
	}
	if len(suite.Cases) == 0 {
		t.Fatal("conformance suite has no cases")
	}
	return &suite
}

func caseNames(suite *conformanceSuite) []string {
	names := make([]string, 0, len(suite.Cases))
	for name := range suite.Cases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestAll(t *testing.T) {
	suite := loadSuite(t)
	for _, name := range caseNames(suite) {
		c := suite.Cases[name]
		t.Run(name, func(t *testing.T) {
			checkFragments(t, &c)
			checkTests(t, &c)
		})
	}
}

func checkFragments(t *testing.T, c *conformanceCase) {
	frags, err := mdtest.Parse(strings.NewReader(c.Input), "doc.md", c.options()...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := make([]fragmentWant, 0, len(frags))
	for _, frag := range frags {
		if frag.Path != "doc.md" {
			t.Errorf("fragment %s: path %q", frag, frag.Path)
		}
		got = append(got, fragmentWant{Name: frag.Name, Line: frag.Line(), Lines: frag.Lines})
	}
	if diff := cmp.Diff(c.Fragments, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
}

func checkTests(t *testing.T, c *conformanceCase) {
	tests, err := mdtest.Collect(strings.NewReader(c.Input), "doc.md", c.options()...)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := make([]testWant, 0, len(tests))
	for i := range tests {
		test := &tests[i]
		if test.Err != nil {
			t.Errorf("test %s: unexpected error %v", test.Name, test.Err)
		}
		tw := testWant{
			Name:     test.Name,
			Line:     test.Line(),
			Fixtures: test.Fixtures,
			Cases:    test.Cases,
			Isolated: test.Isolated,
		}
		for _, m := range test.Marks {
			tw.Marks = append(tw.Marks, m.Raw)
		}
		if n := len(test.Fragments); n > 1 {
			tw.Fragments = n
		}
		got = append(got, tw)
	}
	if diff := cmp.Diff(c.Tests, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tests mismatch (-want +got):\n%s", diff)
	}

	if c.Source == nil || len(tests) == 0 {
		return
	}
	src := tests[0].Source
	if src.Lines != c.SourceLen {
		t.Errorf("source: expected %d lines, got %d", c.SourceLen, src.Lines)
	}
	lines := strings.Split(src.Text, "\n")
	for i, line := range lines {
		want := c.Source[i+1]
		if line != want {
			t.Errorf("source line %d: expected %q, got %q", i+1, want, line)
		}
	}
	if len(lines) != src.Lines {
		t.Errorf("source text has %d lines, Lines says %d", len(lines), src.Lines)
	}
}

// TestSourceAlignment checks for every case that each fragment line sits at its
// document line in the program built for its group.
func TestSourceAlignment(t *testing.T) {
	suite := loadSuite(t)
	for _, name := range caseNames(suite) {
		c := suite.Cases[name]
		frags, err := mdtest.Parse(strings.NewReader(c.Input), "doc.md", c.options()...)
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		for _, group := range mdtest.GroupFragments(frags) {
			src := mdtest.BuildSource(group.Fragments...)
			lines := strings.Split(src.Text, "\n")
			for _, frag := range group.Fragments {
				if !slices.Equal(lines[frag.StartLine:frag.EndLine()], frag.Lines) {
					t.Errorf("%s: fragment %s is not aligned in its source", name, frag)
				}
			}
		}
	}
}
