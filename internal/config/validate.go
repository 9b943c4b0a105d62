package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed rowbound.schema.json
var schemaJSON []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// compileSchema compiles the embedded schema once.
func compileSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal embedded schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("rowbound.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		compiledSchema, err = compiler.Compile("rowbound.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile schema: %w", err)
		}
	})

	return compileErr
}

// validateAgainstSchema checks a raw YAML document against the embedded
// JSON schema. The document is round-tripped through JSON so the schema
// library sees the numeric types it expects.
func validateAgainstSchema(data []byte) error {
	if err := compileSchema(); err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if doc == nil {
		// Empty document, nothing to check
		return nil
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}

	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for
// non-fatal issues. It covers configs built in code as well as loaded
// ones, so it repeats the core schema constraints.
func Validate(cfg *Config) (warnings []string, err error) {
	if err := validateKind(cfg); err != nil {
		return nil, err
	}
	if err := validateDelimiter(cfg); err != nil {
		return nil, err
	}
	if err := validateParallelism(cfg); err != nil {
		return nil, err
	}
	if err := validateLogLevel(cfg); err != nil {
		return nil, err
	}

	switch cfg.Source.Kind {
	case KindCustom:
		warnings = append(warnings, "source.kind: custom sources must be registered by the embedding program")
	case KindMarkdownTable:
		warnings = append(warnings, "source.kind: markdown-table is declared but ships no adapter yet")
	}

	return warnings, nil
}

func validateKind(cfg *Config) error {
	switch cfg.Source.Kind {
	case "", KindDelimited, KindWorkbook, KindMarkdownTable, KindCustom:
		return nil
	}
	return &ValidationError{
		Field:   "source.kind",
		Message: fmt.Sprintf("unknown kind %q", cfg.Source.Kind),
	}
}

func validateDelimiter(cfg *Config) error {
	if cfg.Source.Delimiter == "" {
		return nil
	}
	if utf8.RuneCountInString(cfg.Source.Delimiter) != 1 {
		return &ValidationError{
			Field:   "source.delimiter",
			Message: "delimiter must be a single character",
		}
	}
	return nil
}

func validateParallelism(cfg *Config) error {
	// Zero means unset; defaults raise it to 1
	if cfg.Parallelism < 0 {
		return &ValidationError{
			Field:   "parallelism",
			Message: "parallelism cannot be negative",
		}
	}
	return nil
}

func validateLogLevel(cfg *Config) error {
	switch cfg.LogLevel {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
		return nil
	}
	return &ValidationError{
		Field:   "log_level",
		Message: fmt.Sprintf("unknown level %q", cfg.LogLevel),
	}
}
