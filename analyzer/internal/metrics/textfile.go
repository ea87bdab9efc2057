package metrics

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// ReadTextfile parses the families an earlier run left at path. A missing
// file yields an empty result.
func ReadTextfile(path string) (map[string]*dto.MetricFamily, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*dto.MetricFamily{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: open textfile: %w", err)
	}
	defer f.Close()
	return parseFamilies(f)
}

func parseFamilies(r io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("metrics: parse textfile: %w", err)
	}
	// a partial parse still carries usable totals
	return mfs, nil
}

// Restore seeds the counters and the last-success gauge from a previous
// run's families, so totals keep growing across batch runs. Samples whose
// labels do not fit a collector are skipped.
func (m *Metrics) Restore(mfs map[string]*dto.MetricFamily) {
	counters := map[string]*prometheus.CounterVec{
		"ecnpath_observations_read_total": m.ObservationsRead,
		"ecnpath_targets_total":           m.Targets,
		"ecnpath_verdicts_total":          m.Verdicts,
		"ecnpath_run_failures_total":      m.RunFailures,
	}
	for name, vec := range counters {
		mf := mfs[name]
		if mf == nil {
			continue
		}
		for _, s := range mf.GetMetric() {
			if s.Counter == nil || s.Counter.GetValue() < 0 {
				continue
			}
			c, err := vec.GetMetricWith(labelsOf(s))
			if err != nil {
				continue
			}
			c.Add(s.Counter.GetValue())
		}
	}

	if mf := mfs["ecnpath_last_success_timestamp_seconds"]; mf != nil {
		for _, s := range mf.GetMetric() {
			if s.Gauge == nil {
				continue
			}
			if g, err := m.LastSuccess.GetMetricWith(labelsOf(s)); err == nil {
				g.Set(s.Gauge.GetValue())
			}
		}
	}
}

func labelsOf(s *dto.Metric) prometheus.Labels {
	labels := make(prometheus.Labels, len(s.GetLabel()))
	for _, lp := range s.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}
