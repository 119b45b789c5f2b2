package mdtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectDoc = `<!-- name: test_split; fixtures: tmpdir -->
` + "```python" + `
x = 42
` + "```" + `

<!-- name: helper_code -->
` + "```python" + `
unused = 1
` + "```" + `

<!-- name: test_split; subprocess: true; fixtures: tmpdir, docpath; mark: slow -->
` + "```python" + `
assert x == 42
` + "```" + `

<!--
name: test_cases; case: adds
` + "```python" + `
assert 1 + 1 == 2
` + "```" + `
-->

<!-- name: test_broken; mark: xfail(reason= -->
` + "```python" + `
pass
` + "```" + `
`

func TestCollect(t *testing.T) {
	tests, err := Collect(strings.NewReader(collectDoc), "doc.md")
	require.NoError(t, err)
	var names []string
	for _, test := range tests {
		names = append(names, test.Name)
	}
	require.Equal(t, []string{"test_split", "test_cases", "test_broken"}, names)

	split := tests[0]
	assert.Equal(t, "doc.md::test_split", split.ID())
	assert.Equal(t, 3, split.Line())
	assert.True(t, split.Isolated)
	assert.Equal(t, []string{"tmpdir", "docpath"}, split.Fixtures)
	assert.True(t, split.HasMark("slow"))
	assert.False(t, split.HasMark("skip"))
	assert.Same(t, Python, split.Dialect)
	require.NotNil(t, split.Source)
	lines := strings.Split(split.Source.Text, "\n")
	assert.Equal(t, "x = 42", lines[2])
	assert.Equal(t, "assert x == 42", lines[12])
	assert.NoError(t, split.Err)

	cases := tests[1]
	assert.False(t, cases.Isolated)
	assert.Equal(t, []string{"adds line=19"}, cases.Cases)
	lines = strings.Split(cases.Source.Text, "\n")
	t.Logf("case source: %q", lines[17:])
	assert.Equal(t, "try:", lines[17])
	assert.Equal(t, "    assert 1 + 1 == 2", lines[18])
	assert.True(t, strings.HasPrefix(lines[19], "except Exception"))

	broken := tests[2]
	var mdErr Error
	require.ErrorAs(t, broken.Err, &mdErr)
	assert.Equal(t, ErrCodeMark, mdErr.Code)
}

func TestCollectPrefix(t *testing.T) {
	tests, err := Collect(strings.NewReader(collectDoc), "doc.md", WithPrefix("helper"))
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "helper_code", tests[0].Name)

	tests, err = Collect(strings.NewReader(collectDoc), "doc.md", WithPrefix(""))
	require.NoError(t, err)
	assert.Len(t, tests, 4)
}

func TestCollectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(collectDoc), 0o644))
	tests, err := CollectFile(path, WithLang("python"))
	require.NoError(t, err)
	require.Len(t, tests, 3)
	assert.Equal(t, path, tests[0].Path)
	assert.Equal(t, path, tests[0].Source.Path)
}
