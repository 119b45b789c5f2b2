// Package config loads the mdtest configuration.
//
// Configuration comes, lowest precedence first, from defaults, the project file
// found by Discover, an explicit file and command line flags. Project files are
// JSON with comments and trailing commas (.mdtest.json) or YAML (.mdtest.yaml).
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/danielledeleo/mdtest"
	"github.com/danielledeleo/mdtest/runner"
)

// FileNames are the project configuration files, in lookup order.
var FileNames = []string{".mdtest.json", ".mdtest.yaml", ".mdtest.yml"}

var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
)

// Config holds all configuration options.
type Config struct {
	Lang         string              `json:"lang,omitempty" yaml:"lang,omitempty"`
	Prefix       *string             `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Interpreters map[string][]string `json:"interpreters,omitempty" yaml:"interpreters,omitempty"` // language -> command argv
	Timeout      Duration            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Jobs         int                 `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	Fixtures     map[string]string   `json:"fixtures,omitempty" yaml:"fixtures,omitempty"` // static fixture values
	Noqa         *bool               `json:"noqa,omitempty" yaml:"noqa,omitempty"`
	StrictXfail  *bool               `json:"strict_xfail,omitempty" yaml:"strict_xfail,omitempty"`
}

// Duration is a time.Duration written as a string like "30s" or "2m".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Sources tracks which config files were loaded.
type Sources struct {
	Project  string // project file found by Discover, empty if none
	Explicit string // file given explicitly, empty if none
}

// Defaults returns the default configuration.
func Defaults() Config {
	prefix := mdtest.DefaultPrefix
	noqa := false
	return Config{
		Lang:   mdtest.Python.Name,
		Prefix: &prefix,
		Jobs:   1,
		Noqa:   &noqa,
	}
}

// Load loads the configuration for documents under workDir: the defaults,
// overlaid by the project file found from workDir, overlaid by the file at
// explicitPath if it is not empty. An explicit file must exist.
func Load(workDir, explicitPath string) (Config, Sources, error) {
	cfg := Defaults()
	var sources Sources

	project, err := Discover(workDir)
	if err != nil {
		return Config{}, Sources{}, err
	}
	if project != "" {
		projectCfg, err := LoadFile(project)
		if err != nil {
			return Config{}, Sources{}, err
		}
		sources.Project = project
		cfg = Merge(cfg, projectCfg)
	}

	if explicitPath != "" {
		if !filepath.IsAbs(explicitPath) {
			explicitPath = filepath.Join(workDir, explicitPath)
		}
		if _, statErr := os.Stat(explicitPath); statErr != nil {
			return Config{}, Sources{}, fmt.Errorf("%w: %s", errConfigFileNotFound, explicitPath)
		}
		explicitCfg, err := LoadFile(explicitPath)
		if err != nil {
			return Config{}, Sources{}, err
		}
		sources.Explicit = explicitPath
		cfg = Merge(cfg, explicitCfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, Sources{}, err
	}
	return cfg, sources, nil
}

// Discover walks up the directory tree from startDir looking for a project
// config file. It stops at the repository root, a directory containing .git, or
// at the filesystem root. Returns "" if no file was found.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return "", nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadFile reads one config file. Files ending in .yaml or .yml are YAML, all
// others JSON with comments. Unknown keys are an error.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = parseYAML(data, &cfg)
	default:
		err = parseJSONC(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, nil
}

func parseJSONC(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func parseYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return nil
}

// Merge overlays the options set in overlay onto base. Map entries are merged
// key by key.
func Merge(base, overlay Config) Config {
	if overlay.Lang != "" {
		base.Lang = overlay.Lang
	}
	if overlay.Prefix != nil {
		base.Prefix = overlay.Prefix
	}
	if overlay.Timeout != 0 {
		base.Timeout = overlay.Timeout
	}
	if overlay.Jobs != 0 {
		base.Jobs = overlay.Jobs
	}
	if overlay.Noqa != nil {
		base.Noqa = overlay.Noqa
	}
	if overlay.StrictXfail != nil {
		base.StrictXfail = overlay.StrictXfail
	}
	if len(overlay.Interpreters) > 0 {
		merged := maps.Clone(base.Interpreters)
		if merged == nil {
			merged = make(map[string][]string)
		}
		maps.Copy(merged, overlay.Interpreters)
		base.Interpreters = merged
	}
	if len(overlay.Fixtures) > 0 {
		merged := maps.Clone(base.Fixtures)
		if merged == nil {
			merged = make(map[string]string)
		}
		maps.Copy(merged, overlay.Fixtures)
		base.Fixtures = merged
	}
	return base
}

// Validate checks the configuration for values no run could use.
func (c Config) Validate() error {
	if _, ok := mdtest.LookupDialect(c.Lang); !ok {
		return fmt.Errorf("%w: unknown language %q", errConfigInvalid, c.Lang)
	}
	for _, lang := range slices.Sorted(maps.Keys(c.Interpreters)) {
		if _, ok := mdtest.LookupDialect(lang); !ok {
			return fmt.Errorf("%w: interpreter for unknown language %q", errConfigInvalid, lang)
		}
		if len(c.Interpreters[lang]) == 0 {
			return fmt.Errorf("%w: empty interpreter command for %q", errConfigInvalid, lang)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", errConfigInvalid, time.Duration(c.Timeout))
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: negative jobs %d", errConfigInvalid, c.Jobs)
	}
	return nil
}

// CollectOptions returns the options for collecting tests.
func (c Config) CollectOptions() []mdtest.Option {
	opts := []mdtest.Option{mdtest.WithLang(c.Lang)}
	if c.Prefix != nil {
		opts = append(opts, mdtest.WithPrefix(*c.Prefix))
	}
	if c.Noqa != nil {
		opts = append(opts, mdtest.WithNoqa(*c.Noqa))
	}
	return opts
}

// RunnerOptions returns the options for the runner.
func (c Config) RunnerOptions() []runner.Option {
	var opts []runner.Option
	for _, lang := range slices.Sorted(maps.Keys(c.Interpreters)) {
		opts = append(opts, runner.WithCommand(lang, c.Interpreters[lang]...))
	}
	for _, name := range slices.Sorted(maps.Keys(c.Fixtures)) {
		opts = append(opts, runner.WithStaticFixture(name, c.Fixtures[name]))
	}
	if c.Timeout > 0 {
		opts = append(opts, runner.WithTimeout(time.Duration(c.Timeout)))
	}
	if c.StrictXfail != nil {
		opts = append(opts, runner.WithStrictXfail(*c.StrictXfail))
	}
	return opts
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
