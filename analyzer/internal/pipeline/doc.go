// Package pipeline wires decoding, aggregation, classification and encoding
// into the ECN analysis stages.
//
// A Stage names the input conditions it counts, the metadata key its input
// sets must carry, the marker it stamps on its output, how it keys and
// weights observations, and the classifier it applies per key. Stable,
// Super and PathDep are the registered stages; Lookup finds one by CLI name.
//
// Runner.Run consumes one observation stream and writes exactly one output
// set. Stage.Interested answers the orchestrator's "should this stage run
// on that set" question from metadata alone.
package pipeline
