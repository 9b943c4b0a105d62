package config

// Default configuration values.
const (
	DefaultSourceKind  = KindDelimited
	DefaultDelimiter   = ","
	DefaultParallelism = 1
	DefaultLogLevel    = LevelInfo
)

// defaultRoots is the source search path when none is configured.
var defaultRoots = []string{"."}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = DefaultSourceKind
	}
	if len(cfg.Source.Roots) == 0 {
		cfg.Source.Roots = append([]string(nil), defaultRoots...)
	}
	if cfg.Source.Delimiter == "" {
		cfg.Source.Delimiter = DefaultDelimiter
	}
	if cfg.WriteBack == nil {
		enabled := true
		cfg.WriteBack = &enabled
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}
