package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is the optional config file read from the working directory
const DefaultFile = "calltrace.toml"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the tracer and the CLI
type Config struct {
	// Type names whose instances (and subtypes) are traced
	Scope []string `koanf:"scope"`
	// Declaring files whose types are traced
	ScopeFiles []string `koanf:"scope-files"`
	// Suppression rules as "selector=effect", effect is single or all
	Ignore []string `koanf:"ignore"`
	// Absolute file paths allowed as recorded call sites
	CallerPaths []string `koanf:"caller-paths"`
	// Prefix stripped from recorded call-site paths
	TrimPrefix  string `koanf:"trim-prefix"`
	ModulesFile string `koanf:"modules-file"`

	Group  string `koanf:"group"`
	Title  string `koanf:"title"`
	Format string `koanf:"format"`
	Output string `koanf:"output"`

	Verbosity   string `koanf:"verbosity"`
	VerboseCnt  int    `koanf:"verbose"`
	JSONLogs    bool   `koanf:"json-logs"`
	Concurrency int    `koanf:"concurrency"`
	// Prometheus textfile the CLI writes its metrics to
	MetricsFile string `koanf:"metrics-file"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(DefaultFile, f)
}

// LoadFile is Load with an explicit config file path. A missing file is not an error.
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"scope":        []string{},
		"scope-files":  []string{},
		"ignore":       []string{},
		"caller-paths": []string{},
		"trim-prefix":  "",
		"modules-file": "",
		"group":        "",
		"title":        "",
		"format":       "json",
		"output":       "",
		"verbosity":    "",
		"verbose":      0,
		"json-logs":    false,
		"concurrency":  4,
		"metrics-file": "",
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional, a missing file is skipped)
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	// Prefix: CALLTRACE_ (e.g., CALLTRACE_TRIM_PREFIX=/src/)
	// Keys are flat and hyphenated like the flags
	if err := k.Load(env.Provider("CALLTRACE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "CALLTRACE_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// IgnoreRules splits the "selector=effect" entries into a map.
// An entry without "=" suppresses the selector with the "all" effect.
func (c *Config) IgnoreRules() (map[string]string, error) {
	rules := make(map[string]string, len(c.Ignore))
	for _, entry := range c.Ignore {
		selector, effect, found := strings.Cut(entry, "=")
		selector = strings.TrimSpace(selector)
		effect = strings.TrimSpace(effect)
		if !found {
			effect = "all"
		}
		if selector == "" {
			return nil, fmt.Errorf("%w: empty ignore selector in %q", ErrInvalidConfig, entry)
		}
		if _, dup := rules[selector]; dup {
			return nil, fmt.Errorf("%w: duplicate ignore selector %q", ErrInvalidConfig, selector)
		}
		rules[selector] = effect
	}
	return rules, nil
}

// Validate checks values that koanf cannot type-check
func (c *Config) Validate() error {
	var errs []error

	switch c.Format {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("%w: format must be json or yaml, got %q", ErrInvalidConfig, c.Format))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency))
	}

	rules, err := c.IgnoreRules()
	if err != nil {
		errs = append(errs, err)
	}
	for selector, effect := range rules {
		if effect != "single" && effect != "all" {
			errs = append(errs, fmt.Errorf("%w: unknown effect %q for %q", ErrInvalidConfig, effect, selector))
		}
	}

	for _, p := range c.CallerPaths {
		if !filepath.IsAbs(p) {
			errs = append(errs, fmt.Errorf("%w: caller path %q is not absolute", ErrInvalidConfig, p))
		}
	}

	return errors.Join(errs...)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
