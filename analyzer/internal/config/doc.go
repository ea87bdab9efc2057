// Package config loads the ecnpath configuration file (ecnpath.yaml).
//
// Top-level types:
//   - Config{Log, Analysis, Metrics}: full config tree parsed from YAML
//   - LogConfig: level (debug|info|warn|error), format (json|console);
//     NewLogger builds the stderr zap logger
//   - AnalysisConfig: workers, progress_every, analyzer_url
//   - MetricsConfig: textfile path for the Prometheus textfile collector
//
// Load(path) applies defaults (info/json logging, 1 worker, progress every
// 100000 observations), overlays the YAML file when path is non-empty, reads
// an optional .env, applies the ECNPATH_LOG_LEVEL, ECNPATH_WORKERS and
// ECNPATH_METRICS_TEXTFILE overrides, then validates.
package config
