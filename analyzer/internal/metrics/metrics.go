package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics bundles the collectors updated by one stage run.
type Metrics struct {
	ObservationsRead *prometheus.CounterVec
	Targets          *prometheus.CounterVec
	Verdicts         *prometheus.CounterVec
	RunDuration      *prometheus.GaugeVec
	RunFailures      *prometheus.CounterVec
	LastSuccess      *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the stage collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ObservationsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecnpath_observations_read_total",
			Help: "Observations decoded from the input stream.",
		}, []string{"stage"}),
		Targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecnpath_targets_total",
			Help: "Distinct targets aggregated.",
		}, []string{"stage"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecnpath_verdicts_total",
			Help: "Verdict observations emitted, by condition.",
		}, []string{"stage", "condition"}),
		RunDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ecnpath_run_duration_seconds",
			Help: "Wall time of the last run.",
		}, []string{"stage"}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecnpath_run_failures_total",
			Help: "Runs that aborted with an error.",
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ecnpath_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"stage"}),
		gatherer: registry,
	}

	registry.MustRegister(
		m.ObservationsRead,
		m.Targets,
		m.Verdicts,
		m.RunDuration,
		m.RunFailures,
		m.LastSuccess,
	)
	return m
}

// Run describes one finished stage run.
type Run struct {
	Stage    string
	Read     int
	Targets  int
	Verdicts map[string]int
	Duration time.Duration
	Err      error
	Finished time.Time
}

// Record updates the collectors from a finished run.
func (m *Metrics) Record(r Run) {
	m.RunDuration.WithLabelValues(r.Stage).Set(r.Duration.Seconds())
	m.ObservationsRead.WithLabelValues(r.Stage).Add(float64(r.Read))
	if r.Err != nil {
		m.RunFailures.WithLabelValues(r.Stage).Inc()
		return
	}
	m.Targets.WithLabelValues(r.Stage).Add(float64(r.Targets))
	for cond, n := range r.Verdicts {
		m.Verdicts.WithLabelValues(r.Stage, cond).Add(float64(n))
	}
	m.LastSuccess.WithLabelValues(r.Stage).Set(float64(r.Finished.Unix()))
}

// WriteTextfile gathers every registered collector and writes the Prometheus
// text exposition to path via a temporary file in the same directory.
func (m *Metrics) WriteTextfile(path string) error {
	mfs, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	sortFamilies(mfs)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("metrics: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("metrics: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: rename: %w", err)
	}
	return nil
}

// sortFamilies orders families by name.
func sortFamilies(mfs []*dto.MetricFamily) {
	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })
}
