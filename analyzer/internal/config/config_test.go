package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLoad_Valid(t *testing.T) {
	clearEnv(t)
	yaml := `
log:
  level: debug
  format: console
analysis:
  workers: 4
  progress_every: 500
  analyzer_url: "https://example.org/ecnpath"
metrics:
  textfile: /var/lib/node_exporter/ecnpath.prom
`
	cfg := loadFromString(t, yaml)

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level: got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("log.format: got %q", cfg.Log.Format)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("workers: got %d", cfg.Analysis.Workers)
	}
	if cfg.Analysis.ProgressEvery != 500 {
		t.Errorf("progress_every: got %d", cfg.Analysis.ProgressEvery)
	}
	if cfg.Analysis.AnalyzerURL != "https://example.org/ecnpath" {
		t.Errorf("analyzer_url: got %q", cfg.Analysis.AnalyzerURL)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/ecnpath.prom" {
		t.Errorf("metrics.textfile: got %q", cfg.Metrics.Textfile)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := loadFromString(t, "analysis:\n  analyzer_url: x\n")

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("default log.level: got %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("default log.format: got %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.Analysis.Workers != DefaultWorkers {
		t.Errorf("default workers: got %d, want %d", cfg.Analysis.Workers, DefaultWorkers)
	}
	if cfg.Analysis.ProgressEvery != DefaultProgressEvery {
		t.Errorf("default progress_every: got %d, want %d", cfg.Analysis.ProgressEvery, DefaultProgressEvery)
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") unexpected error: %v", err)
	}
	if cfg.Analysis.Workers != DefaultWorkers {
		t.Errorf("workers: got %d, want %d", cfg.Analysis.Workers, DefaultWorkers)
	}
	if cfg.Metrics.Textfile != "" {
		t.Errorf("metrics.textfile: got %q, want empty", cfg.Metrics.Textfile)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvWorkers, "8")
	t.Setenv(EnvMetricsTextfile, "/tmp/override.prom")

	cfg := loadFromString(t, `
log:
  level: debug
analysis:
  workers: 2
metrics:
  textfile: /tmp/file.prom
`)
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level: got %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("workers: got %d, want 8", cfg.Analysis.Workers)
	}
	if cfg.Metrics.Textfile != "/tmp/override.prom" {
		t.Errorf("metrics.textfile: got %q", cfg.Metrics.Textfile)
	}
}

func TestLoad_InvalidWorkersEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "many")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric workers override, got nil")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown level", "log:\n  level: loud\n"},
		{"unknown format", "log:\n  format: xml\n"},
		{"zero workers", "analysis:\n  workers: 0\n"},
		{"negative progress", "analysis:\n  progress_every: -1\n"},
		{"bad yaml", "log: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatalf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		verbose bool
		debug   bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false, true},
		{"verbose wins", LogConfig{Level: "error", Format: "json"}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := tc.cfg.NewLogger(tc.verbose)
			if err != nil {
				t.Fatalf("NewLogger() unexpected error: %v", err)
			}
			defer logger.Sync() //nolint:errcheck
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debug {
				t.Errorf("debug enabled = %v, want %v", got, tc.debug)
			}
		})
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := (LogConfig{Level: "loud", Format: "json"}).NewLogger(false); err == nil {
		t.Fatal("expected error for unknown level, got nil")
	}
}

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvLogLevel, EnvWorkers, EnvMetricsTextfile} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecnpath.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
