package aggregate

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// shardBuffer is the per-worker channel capacity.
const shardBuffer = 1024

// shardFor returns the worker that owns key.
func shardFor(key string, workers int) int {
	return int(xxhash.Sum64String(key) % uint64(workers))
}

type keyed struct {
	key string
	o   obs.Observation
}

// Sharded is Aggregate spread over workers goroutines. The calling
// goroutine's src is drained by a single reader; every key is routed to
// the one worker that owns it, so per-key counts are never shared.
// workers <= 1 runs Aggregate inline. Cancelling ctx stops the reader and
// returns ctx's error.
func Sharded(ctx context.Context, src Source, relevant []string, workers int, opts ...Option) (Table, Stats, error) {
	if workers <= 1 {
		return Aggregate(src, relevant, opts...)
	}

	cfg := newOptions(opts)
	want := conditionSet(relevant)

	g, gctx := errgroup.WithContext(ctx)

	lanes := make([]chan keyed, workers)
	tables := make([]Table, workers)
	for i := range lanes {
		lanes[i] = make(chan keyed, shardBuffer)
	}

	for i := range lanes {
		g.Go(func() error {
			t := make(Table)
			for k := range lanes[i] {
				t.aggregateFor(k.key).ObserveWeighted(k.o, cfg.weight(k.o))
			}
			tables[i] = t
			return nil
		})
	}

	var stats Stats
	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		for src.Next() {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := src.Observation()
			stats.Read++
			cfg.progress(stats.Read, zap.Int("routed", stats.Counted))

			if _, ok := want[o.Condition]; !ok {
				continue
			}
			key, ok := cfg.key(o)
			if !ok {
				continue
			}
			select {
			case lanes[shardFor(key, workers)] <- keyed{key: key, o: o}:
				stats.Counted++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return src.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	merged := make(Table)
	for _, t := range tables {
		for key, a := range t {
			// keys are disjoint across workers
			merged.aggregateFor(key).Merge(a)
		}
	}
	return merged, stats, nil
}
