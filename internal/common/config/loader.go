// Package config loads the YAML configuration for a scan group process.
package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ieql/engine/internal/common/configtypes"
)

// Load reads and strictly parses the configuration file at path, then
// applies defaults. Unknown keys are rejected so typos surface at
// startup instead of silently falling back to defaults.
func Load(path string) (*configtypes.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg configtypes.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in defaults for absent group options and the
// logging and metrics settings.
func applyDefaults(cfg *configtypes.Config) {
	if cfg.Group.ExcerptWindowBytes == 0 {
		cfg.Group.ExcerptWindowBytes = 64
	}
	if cfg.Group.WorkerCount == 0 {
		cfg.Group.WorkerCount = runtime.NumCPU()
	}
	if cfg.Group.InputQueueCapacity == 0 {
		cfg.Group.InputQueueCapacity = 256
	}
	if cfg.Group.OutputQueueCapacity == 0 {
		cfg.Group.OutputQueueCapacity = 256
	}
	if cfg.Group.AllowPartialTextFallback == nil {
		allow := true
		cfg.Group.AllowPartialTextFallback = &allow
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "console"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "ieql"
	}
}
