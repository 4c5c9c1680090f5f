// Package configtypes defines the YAML-serializable configuration
// shapes loaded by internal/common/config.
package configtypes

// Config is the top-level configuration for a scan group process: the
// group construction options plus logging and metrics.
type Config struct {
	Group   GroupConfig   `yaml:"group"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GroupConfig holds the options recognized at group construction.
// AllowPartialTextFallback defaults to true; it is a pointer so the
// loader can distinguish "unset" from an explicit false.
//
// DocumentTimeout is an optional bound a deployment can set so one slow
// document cannot occupy a worker indefinitely. Unset means no bound is
// enforced.
type GroupConfig struct {
	ExcerptWindowBytes       int       `yaml:"excerpt_window_bytes"`
	WorkerCount              int       `yaml:"worker_count"`
	InputQueueCapacity       int       `yaml:"input_queue_capacity"`
	OutputQueueCapacity      int       `yaml:"output_queue_capacity"`
	AllowPartialTextFallback *bool     `yaml:"allow_partial_text_fallback,omitempty"`
	DocumentTimeout          *Duration `yaml:"document_timeout,omitempty"`
}

// LogConfig selects the sinks and threshold for process logging. Level
// is any name zap recognizes ("debug", "info", "warn", ...) and applies
// to every enabled sink.
type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

// ConsoleLogConfig configures the stderr sink. Format is "console" or
// "json".
type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
}

// FileLogConfig configures the rotating file sink.
type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
