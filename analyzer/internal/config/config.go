package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultWorkers       = 1
	DefaultProgressEvery = 100000
)

// Environment variables that override file values.
const (
	EnvLogLevel        = "ECNPATH_LOG_LEVEL"
	EnvWorkers         = "ECNPATH_WORKERS"
	EnvMetricsTextfile = "ECNPATH_METRICS_TEXTFILE"
)

// Config is the top-level configuration shared by every stage command.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig controls the process logger. Logs always go to stderr.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | console.
	Format string `yaml:"format"`
}

// AnalysisConfig holds the knobs of a stage run.
type AnalysisConfig struct {
	// Workers is the number of aggregation shards. 1 aggregates inline.
	Workers int `yaml:"workers"`

	// ProgressEvery logs a progress line after this many observations.
	// 0 disables progress logging.
	ProgressEvery int `yaml:"progress_every"`

	// AnalyzerURL is recorded as _analyzer in the output set metadata.
	AnalyzerURL string `yaml:"analyzer_url"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	// Textfile is the output path. Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// Load reads and parses the YAML config file at path, then applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Analysis: AnalysisConfig{
			Workers:       DefaultWorkers,
			ProgressEvery: DefaultProgressEvery,
		},
	}
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		cfg.Analysis.Workers = n
	}
	if v, ok := os.LookupEnv(EnvMetricsTextfile); ok {
		cfg.Metrics.Textfile = v
	}
	return nil
}

// validate checks structural constraints and enums.
func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	if cfg.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be positive")
	}
	if cfg.Analysis.ProgressEvery < 0 {
		return fmt.Errorf("analysis.progress_every must not be negative")
	}
	return nil
}
