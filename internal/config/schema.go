// Package config provides configuration loading and validation for rowbound.yaml.
package config

// Config represents the complete rowbound.yaml configuration.
type Config struct {
	Source      SourceConfig `yaml:"source"`
	WriteBack   *bool        `yaml:"write_back"` // pointer so an explicit false survives defaulting
	Ledger      string       `yaml:"ledger"`
	Parallelism int          `yaml:"parallelism"`
	LogLevel    string       `yaml:"log_level"`
}

// SourceConfig sets the default data-source binding for suites that do not
// bind their own.
type SourceConfig struct {
	Kind      string   `yaml:"kind"`
	Roots     []string `yaml:"roots"`
	Delimiter string   `yaml:"delimiter"`
}

// Source kinds accepted in configuration.
const (
	KindDelimited     = "delimited"
	KindWorkbook      = "workbook"
	KindMarkdownTable = "markdown-table"
	KindCustom        = "custom"
)

// Log levels accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)
