package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Load reads and strictly parses a rowbound.yaml configuration file.
// Unknown fields and schema violations are errors. Defaults are not
// applied; most callers want LoadAndValidate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data)
}

// LoadAndValidate reads a config file, applies defaults, validates, and
// returns warnings. A missing file is not an error: the defaults serve.
func LoadAndValidate(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, nil, err
	}

	applyDefaults(cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return nil, warnings, err
	}

	return cfg, warnings, nil
}

// Default returns the configuration used when no rowbound.yaml exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// parse checks data against the embedded schema, then decodes it strictly.
func parse(data []byte) (*Config, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: every field defaults
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// WriteBackEnabled reports the write-back toggle, true when unset.
func (c *Config) WriteBackEnabled() bool {
	return c.WriteBack == nil || *c.WriteBack
}

// Level maps the configured log level onto slog.
// Unknown levels fall back to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DelimiterRune returns the delimited-source separator as a rune.
// An unset delimiter falls back to the comma.
func (c *Config) DelimiterRune() rune {
	if c.Source.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Source.Delimiter)
	return r
}

// ResolveSource locates a source file by trying each configured root in
// order. Absolute paths pass through untouched. A file found under no root
// resolves against the first root, so the adapter's open error names a
// concrete path.
func (c *Config) ResolveSource(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	for _, root := range c.Source.Roots {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if len(c.Source.Roots) > 0 {
		return filepath.Join(c.Source.Roots[0], name)
	}
	return name
}
