// Package aggregate folds an observation stream into per-target condition
// counts.
//
// aggregate.go provides Aggregate, a single forward pass that keeps one
// TargetAggregate per destination: a count per relevant condition and the
// merged [start, end] interval of every contributing observation. Targets
// that never appear are absent from the Table. The result does not depend
// on input order. WithKey swaps the target for another key, such as the
// whole path, and WithWeight lets an observation count for more than one.
//
// shard.go provides Sharded, which spreads the same fold over several
// goroutines. Each target hashes to exactly one worker, so no counter map
// is shared; the per-worker tables have disjoint keys and are merged after
// the stream is exhausted.
package aggregate
