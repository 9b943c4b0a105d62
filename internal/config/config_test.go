package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig drops a rowbound.yaml with the given content into a temp dir.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rowbound.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidMinimal(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "source:\n  kind: workbook\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Kind != "workbook" {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, "workbook")
	}
}

func TestLoad_ValidFull(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `source:
  kind: delimited
  roots: [testdata, fixtures]
  delimiter: ";"
write_back: false
ledger: .rowbound/runs.db
parallelism: 4
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Kind != "delimited" {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, "delimited")
	}
	if len(cfg.Source.Roots) != 2 || cfg.Source.Roots[0] != "testdata" {
		t.Errorf("Source.Roots = %v, want [testdata fixtures]", cfg.Source.Roots)
	}
	if cfg.Source.Delimiter != ";" {
		t.Errorf("Source.Delimiter = %q, want %q", cfg.Source.Delimiter, ";")
	}
	if cfg.WriteBack == nil || *cfg.WriteBack {
		t.Error("WriteBack should be explicitly false")
	}
	if cfg.Ledger != ".rowbound/runs.db" {
		t.Errorf("Ledger = %q, want %q", cfg.Ledger, ".rowbound/runs.db")
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4", cfg.Parallelism)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Kind != "" {
		t.Errorf("empty file should decode to the zero config, got kind %q", cfg.Source.Kind)
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "sources:\n  kind: delimited\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject unknown top-level fields")
	}
}

func TestLoad_SchemaRejectsBadKind(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "source:\n  kind: spreadsheet\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should reject an unknown source kind")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("error = %v, want schema validation failure", err)
	}
}

func TestLoad_SchemaRejectsZeroParallelism(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "parallelism: 0\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject parallelism below 1")
	}
}

func TestLoad_SchemaRejectsLongDelimiter(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "source:\n  delimiter: \"--\"\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject a multi-character delimiter")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail on a missing file")
	}
}

func TestLoadAndValidate_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, warnings, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if cfg.Source.Kind != DefaultSourceKind {
		t.Errorf("Source.Kind = %q, want default %q", cfg.Source.Kind, DefaultSourceKind)
	}
}

func TestLoadAndValidate_AppliesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "ledger: runs.db\n")

	cfg, warnings, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	if cfg.Source.Kind != "delimited" {
		t.Errorf("Source.Kind = %q, want delimited", cfg.Source.Kind)
	}
	if len(cfg.Source.Roots) != 1 || cfg.Source.Roots[0] != "." {
		t.Errorf("Source.Roots = %v, want [.]", cfg.Source.Roots)
	}
	if cfg.Source.Delimiter != "," {
		t.Errorf("Source.Delimiter = %q, want ,", cfg.Source.Delimiter)
	}
	if !cfg.WriteBackEnabled() {
		t.Error("write-back should default to enabled")
	}
	if cfg.Parallelism != 1 {
		t.Errorf("Parallelism = %d, want 1", cfg.Parallelism)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Ledger != "runs.db" {
		t.Errorf("Ledger = %q, want runs.db", cfg.Ledger)
	}
}

func TestLoadAndValidate_ExplicitFalseWriteBackSurvives(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "write_back: false\n")

	cfg, _, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.WriteBackEnabled() {
		t.Error("explicit write_back: false must survive defaulting")
	}
}

func TestLoadAndValidate_WarnsOnCustomKind(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "source:\n  kind: custom\n")

	_, warnings, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "custom") {
		t.Errorf("warnings = %v, want one custom-kind warning", warnings)
	}
}

func TestConfig_Level(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"loud", "INFO"},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.Level().String(); got != tt.want {
			t.Errorf("Level(%q) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestConfig_DelimiterRune(t *testing.T) {
	t.Parallel()
	tests := []struct {
		delimiter string
		want      rune
	}{
		{"", ','},
		{",", ','},
		{";", ';'},
		{"\t", '\t'},
	}
	for _, tt := range tests {
		cfg := &Config{Source: SourceConfig{Delimiter: tt.delimiter}}
		if got := cfg.DelimiterRune(); got != tt.want {
			t.Errorf("DelimiterRune(%q) = %q, want %q", tt.delimiter, got, tt.want)
		}
	}
}

func TestConfig_ResolveSource(t *testing.T) {
	t.Parallel()
	primary := t.TempDir()
	secondary := t.TempDir()

	// Only the secondary root holds the file
	present := filepath.Join(secondary, "items.csv")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Source: SourceConfig{Roots: []string{primary, secondary}}}

	if got := cfg.ResolveSource("items.csv"); got != present {
		t.Errorf("ResolveSource(items.csv) = %q, want %q", got, present)
	}

	// A file under no root resolves against the first root
	want := filepath.Join(primary, "ghost.csv")
	if got := cfg.ResolveSource("ghost.csv"); got != want {
		t.Errorf("ResolveSource(ghost.csv) = %q, want %q", got, want)
	}

	// Absolute paths pass through
	abs := filepath.Join(primary, "direct.csv")
	if got := cfg.ResolveSource(abs); got != abs {
		t.Errorf("ResolveSource(%q) = %q, want passthrough", abs, got)
	}
}
