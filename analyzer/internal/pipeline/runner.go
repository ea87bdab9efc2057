package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ecnpath/ecnpath/analyzer/internal/aggregate"
	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// Summary describes one finished run.
type Summary struct {
	Stage string
	SetID int

	// Read is the number of observations decoded from the source.
	Read int
	// Counted is the number of observations relevant to the stage.
	Counted int
	// Targets is the number of distinct targets aggregated.
	Targets int
	// Verdicts counts emitted observations by condition.
	Verdicts map[string]int

	// Metadata is the committed output set metadata.
	Metadata obs.Metadata
}

// Emitted returns the total number of verdict observations written.
func (s Summary) Emitted() int {
	var n int
	for _, c := range s.Verdicts {
		n += c
	}
	return n
}

// Runner drives one stage over one observation stream and writes a single
// output set.
type Runner struct {
	Stage Stage

	// Logger receives progress and completion lines. Nil disables logging.
	Logger *zap.Logger

	// Workers > 1 shards aggregation across goroutines.
	Workers int

	// ProgressEvery is forwarded to the aggregator; 0 disables progress.
	ProgressEvery int

	// AnalyzerURL is recorded as _analyzer when non-empty.
	AnalyzerURL string

	// RunID is recorded as _run_id when non-empty.
	RunID string

	// Inherit is copied into the output set metadata before the stage marker.
	Inherit obs.Metadata
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run reads src to the end, classifies every target in sorted order and
// writes the verdicts as one set on w. Any read, classification or write
// error is fatal and leaves the set uncommitted; a classification error
// leaves w's output untouched.
func (r *Runner) Run(ctx context.Context, src aggregate.Source, w *obs.Writer) (Summary, error) {
	log := r.logger().With(zap.String("stage", r.Stage.Name))
	sum := Summary{Stage: r.Stage.Name, Verdicts: make(map[string]int)}

	setID, err := w.Begin()
	if err != nil {
		return sum, fmt.Errorf("pipeline: %s: begin set: %w", r.Stage.Name, err)
	}
	sum.SetID = setID

	if err := r.writeMetadata(w); err != nil {
		return sum, fmt.Errorf("pipeline: %s: %w", r.Stage.Name, err)
	}

	table, stats, err := aggregate.Sharded(ctx, src, r.Stage.Relevant, r.Workers,
		aggregate.WithLogger(log),
		aggregate.WithProgressEvery(r.ProgressEvery),
		aggregate.WithKey(r.Stage.Key),
		aggregate.WithWeight(r.Stage.Weight),
	)
	sum.Read, sum.Counted = stats.Read, stats.Counted
	if err != nil {
		return sum, fmt.Errorf("pipeline: %s: aggregate: %w", r.Stage.Name, err)
	}
	sum.Targets = len(table)
	log.Debug("pipeline: aggregated",
		zap.Int("observations", stats.Read),
		zap.Int("counted", stats.Counted),
		zap.Int("targets", len(table)),
	)

	// nothing reaches w until every target is classified
	out, err := r.classify(table)
	if err != nil {
		return sum, err
	}
	for _, v := range out {
		if err := w.Observe(v); err != nil {
			return sum, fmt.Errorf("pipeline: %s: %w", r.Stage.Name, err)
		}
		sum.Verdicts[v.Condition]++
	}

	md, err := w.Commit()
	if err != nil {
		return sum, fmt.Errorf("pipeline: %s: %w", r.Stage.Name, err)
	}
	sum.Metadata = md

	if !w.HasMetadataSink() {
		log.Warn("pipeline: set metadata discarded, no sink",
			zap.Int("set_id", setID),
			zap.Strings("conditions", md.Conditions()),
		)
	}

	log.Info("pipeline: set committed",
		zap.Int("set_id", setID),
		zap.Int("observations", sum.Read),
		zap.Int("targets", sum.Targets),
		zap.Int("verdicts", sum.Emitted()),
	)
	return sum, nil
}

// classify turns every aggregate into verdict observations, in key order.
func (r *Runner) classify(table aggregate.Table) ([]obs.Observation, error) {
	path := r.Stage.Path
	if path == nil {
		path = anyVantage
	}
	var out []obs.Observation
	for _, key := range table.Targets() {
		a := table[key]
		vs, err := r.Stage.Classify(a)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s: classify %s: %w", r.Stage.Name, key, err)
		}
		for _, v := range vs {
			out = append(out, obs.Observation{
				Start:     a.Start,
				End:       a.End,
				Path:      path(key),
				Condition: v.Condition,
				Value:     v.Value,
			})
		}
	}
	return out, nil
}

func (r *Runner) writeMetadata(w *obs.Writer) error {
	keys := make([]string, 0, len(r.Inherit))
	for k := range r.Inherit {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.Set(k, r.Inherit[k]); err != nil {
			return err
		}
	}

	if err := w.Set(r.Stage.Marker, "yes"); err != nil {
		return err
	}
	if r.AnalyzerURL != "" {
		if err := w.Set(obs.KeyAnalyzer, r.AnalyzerURL); err != nil {
			return err
		}
	}
	if r.RunID != "" {
		if err := w.Set(obs.KeyRunID, r.RunID); err != nil {
			return err
		}
	}
	return nil
}
