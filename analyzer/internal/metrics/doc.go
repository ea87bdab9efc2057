// Package metrics exposes the run counters of an analysis stage.
//
// Stages are short-lived batch processes, so nothing is served over HTTP.
// Instead WriteTextfile gathers the registry and writes it in the Prometheus
// text format for node_exporter's textfile collector. The file is replaced
// atomically so the collector never reads a half-written run.
//
// Each run starts with a fresh registry, so ReadTextfile and Restore seed
// the counters from the file the previous run left behind.
package metrics
