package aggregate

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// DefaultProgressEvery is how often (in observations read) progress is logged.
const DefaultProgressEvery = 100000

// Source yields observations one at a time. *obs.Reader satisfies it.
type Source interface {
	Next() bool
	Observation() obs.Observation
	Err() error
}

// KeyFunc returns the aggregation key of an observation. ok is false when
// the observation has none and must be skipped.
type KeyFunc func(o obs.Observation) (key string, ok bool)

// WeightFunc returns how much an observation adds to its condition's count.
type WeightFunc func(o obs.Observation) int

// ByTarget keys observations by their target.
func ByTarget(o obs.Observation) (string, bool) {
	return o.Target()
}

// Unweighted counts every observation once.
func Unweighted(obs.Observation) int {
	return 1
}

// TargetAggregate holds the counts and covered interval for one target, or
// for whatever key the pass aggregated on.
type TargetAggregate struct {
	Target string
	Counts map[string]int
	Start  time.Time
	End    time.Time

	// Observations is the number of records folded in, regardless of weight.
	Observations int
}

func newTargetAggregate(target string) *TargetAggregate {
	return &TargetAggregate{Target: target, Counts: make(map[string]int)}
}

// Total returns the summed counts for the target. It equals Observations
// for unweighted passes.
func (a *TargetAggregate) Total() int {
	var n int
	for _, c := range a.Counts {
		n += c
	}
	return n
}

// Count returns the count for cond; missing conditions count as zero.
func (a *TargetAggregate) Count(cond string) int {
	return a.Counts[cond]
}

// Observe counts o once and widens the interval to cover it.
func (a *TargetAggregate) Observe(o obs.Observation) {
	a.ObserveWeighted(o, 1)
}

// ObserveWeighted adds weight to o's condition and widens the interval to
// cover it. A zero weight still widens the interval.
func (a *TargetAggregate) ObserveWeighted(o obs.Observation, weight int) {
	a.widen(o.Start, o.End, a.Observations == 0)
	a.Counts[o.Condition] += weight
	a.Observations++
}

// Merge folds other into a. Both must describe the same target.
func (a *TargetAggregate) Merge(other *TargetAggregate) {
	if other == nil || other.Observations == 0 {
		return
	}
	a.widen(other.Start, other.End, a.Observations == 0)
	for cond, n := range other.Counts {
		a.Counts[cond] += n
	}
	a.Observations += other.Observations
}

func (a *TargetAggregate) widen(start, end time.Time, first bool) {
	if first {
		a.Start, a.End = start, end
		return
	}
	if start.Before(a.Start) {
		a.Start = start
	}
	if end.After(a.End) {
		a.End = end
	}
}

// Table maps target to its aggregate.
type Table map[string]*TargetAggregate

// Targets returns the table keys in sorted order.
func (t Table) Targets() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t Table) aggregateFor(target string) *TargetAggregate {
	if a, ok := t[target]; ok {
		return a
	}
	a := newTargetAggregate(target)
	t[target] = a
	return a
}

// Stats describes one aggregation pass.
type Stats struct {
	// Read is the number of observations decoded from the source.
	Read int
	// Counted is the number of observations that contributed to a target.
	Counted int
}

// Option configures Aggregate and Sharded.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	progressEvery int
	key           KeyFunc
	weight        WeightFunc
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgressEvery logs progress every n observations read; n <= 0 disables it.
func WithProgressEvery(n int) Option {
	return func(o *options) { o.progressEvery = n }
}

// WithKey aggregates on key instead of the observation target.
func WithKey(key KeyFunc) Option {
	return func(o *options) {
		if key != nil {
			o.key = key
		}
	}
}

// WithWeight counts each observation by weight instead of once.
func WithWeight(weight WeightFunc) Option {
	return func(o *options) {
		if weight != nil {
			o.weight = weight
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:        zap.NewNop(),
		progressEvery: DefaultProgressEvery,
		key:           ByTarget,
		weight:        Unweighted,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) progress(read int, field zap.Field) {
	if o.progressEvery > 0 && read%o.progressEvery == 0 {
		o.logger.Debug("aggregate: progress", zap.Int("observations", read), field)
	}
}

func conditionSet(relevant []string) map[string]struct{} {
	set := make(map[string]struct{}, len(relevant))
	for _, c := range relevant {
		set[c] = struct{}{}
	}
	return set
}

// Aggregate reads src to the end and counts every observation whose
// condition is in relevant, keyed by target unless WithKey says otherwise.
// Observations with other conditions, or without a key, are skipped. A read
// error aborts the pass and no partial table is returned.
func Aggregate(src Source, relevant []string, opts ...Option) (Table, Stats, error) {
	cfg := newOptions(opts)
	want := conditionSet(relevant)
	table := make(Table)

	var stats Stats
	for src.Next() {
		o := src.Observation()
		stats.Read++
		cfg.progress(stats.Read, zap.Int("targets", len(table)))

		if _, ok := want[o.Condition]; !ok {
			continue
		}
		key, ok := cfg.key(o)
		if !ok {
			continue
		}
		table.aggregateFor(key).ObserveWeighted(o, cfg.weight(o))
		stats.Counted++
	}
	if err := src.Err(); err != nil {
		return nil, stats, err
	}
	return table, stats, nil
}
