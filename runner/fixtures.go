package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/multierr"

	"github.com/danielledeleo/mdtest"
)

// Provider creates the value of a fixture for one test. A non-nil cleanup runs
// after the test has finished.
type Provider func(ctx context.Context, t *mdtest.Test) (value string, cleanup func() error, err error)

// FixtureEnvPrefix prefixes the environment variables passing fixtures to
// subprocesses: fixture "tmpdir" is MDTEST_FIXTURE_TMPDIR.
const FixtureEnvPrefix = "MDTEST_FIXTURE_"

func builtinFixtures() map[string]Provider {
	return map[string]Provider{
		"tmpdir":   tmpdirFixture,
		"docpath":  docpathFixture,
		"testname": testnameFixture,
	}
}

// tmpdirFixture provides a fresh directory which is removed after the test.
func tmpdirFixture(_ context.Context, t *mdtest.Test) (string, func() error, error) {
	dir, err := os.MkdirTemp("", "mdtest-"+sanitize(t.Name)+"-*")
	if err != nil {
		return "", nil, err
	}
	return dir, func() error { return os.RemoveAll(dir) }, nil
}

// docpathFixture provides the absolute path of the document.
func docpathFixture(_ context.Context, t *mdtest.Test) (string, func() error, error) {
	path, err := filepath.Abs(t.Path)
	return path, nil, err
}

func testnameFixture(_ context.Context, t *mdtest.Test) (string, func() error, error) {
	return t.Name, nil, nil
}

// staticFixture provides a fixed value.
func staticFixture(value string) Provider {
	return func(context.Context, *mdtest.Test) (string, func() error, error) {
		return value, nil, nil
	}
}

// fixtureSet holds the fixture values of one test run.
type fixtureSet struct {
	values   map[string]string
	cleanups []func() error
}

// resolveFixtures creates every fixture the test asks for. On error, fixtures
// already created are cleaned up.
func (r *Runner) resolveFixtures(ctx context.Context, t *mdtest.Test) (*fixtureSet, error) {
	set := &fixtureSet{values: make(map[string]string, len(t.Fixtures))}
	for _, name := range t.Fixtures {
		provide, ok := r.fixtures[name]
		if !ok {
			err := mdtest.MakeError(mdtest.ErrCodeFixture, fmt.Sprintf("fixture %q not found", name))
			return nil, multierr.Append(err, set.cleanup())
		}
		value, cleanup, err := provide(ctx, t)
		if err != nil {
			err = fmt.Errorf("fixture %q: %w", name, err)
			return nil, multierr.Append(err, set.cleanup())
		}
		set.values[name] = value
		if cleanup != nil {
			set.cleanups = append(set.cleanups, cleanup)
		}
	}
	return set, nil
}

// cleanup runs the cleanups in reverse order of creation.
func (s *fixtureSet) cleanup() error {
	var err error
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.cleanups[i]())
	}
	s.cleanups = nil
	return err
}

// env returns the fixture values as environment variable assignments.
func (s *fixtureSet) env() []string {
	env := make([]string, 0, len(s.values))
	for name, value := range s.values {
		env = append(env, FixtureEnvPrefix+strings.ToUpper(sanitize(name))+"="+value)
	}
	return env
}

// sanitize replaces every character which is not a letter or digit with '_'.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, name)
}
