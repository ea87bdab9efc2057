package pipeline

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ecnpath/ecnpath/analyzer/internal/aggregate"
	"github.com/ecnpath/ecnpath/analyzer/internal/classify"
	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// Metadata keys that mark which analysis produced a set.
const (
	MarkerECN        = "pathspider.ecn"
	MarkerStable     = "pathspider.ecn.stable"
	MarkerSuper      = "pathspider.ecn.super"
	MarkerDependency = "pathspider.ecn.dependency"
)

// Verdict is one output observation's condition and optional value.
type Verdict struct {
	Condition string
	Value     json.RawMessage
}

// Classifier returns the verdicts for one aggregate, possibly none.
type Classifier func(a *aggregate.TargetAggregate) ([]Verdict, error)

// single adapts a one-verdict classifier.
func single(fn func(*aggregate.TargetAggregate) (string, bool, error)) Classifier {
	return func(a *aggregate.TargetAggregate) ([]Verdict, error) {
		cond, ok, err := fn(a)
		if err != nil || !ok {
			return nil, err
		}
		return []Verdict{{Condition: cond}}, nil
	}
}

func stableVerdicts(a *aggregate.TargetAggregate) ([]Verdict, error) {
	outs, err := classify.StableVerdicts(a)
	if err != nil {
		return nil, err
	}
	vs := make([]Verdict, len(outs))
	for i, out := range outs {
		vs[i] = Verdict{Condition: out.Condition, Value: json.RawMessage(strconv.Itoa(out.Count))}
	}
	return vs, nil
}

// pathKey keys an observation by its whole path.
func pathKey(o obs.Observation) (string, bool) {
	if len(o.Path) == 0 {
		return "", false
	}
	return strings.Join(o.Path, " "), true
}

func pathOf(key string) []string {
	return strings.Split(key, " ")
}

// anyVantage places a verdict on the target seen from anywhere.
func anyVantage(target string) []string {
	return []string{obs.Wildcard, target}
}

// Stage describes one analysis layer.
type Stage struct {
	// Name is the CLI subcommand name.
	Name string

	// Relevant lists the input conditions the layer counts.
	Relevant []string

	// Outputs lists every condition the layer may emit.
	Outputs []string

	// Requires is the metadata key an input set must carry.
	Requires string

	// Marker is set to "yes" on every output set.
	Marker string

	// Key groups observations for aggregation. Nil groups by target.
	Key aggregate.KeyFunc

	// Weight is how much an observation counts. Nil counts each once.
	Weight aggregate.WeightFunc

	// Path turns an aggregation key back into the path of its verdicts.
	Path func(key string) []string

	// ByVantage rewrites input paths to start at the vantage point named
	// in their set's metadata.
	ByVantage bool

	Classify Classifier
}

// Stable summarizes the raw ECN observations of each vantage point and
// target into a stable connectivity and a stable negotiation condition.
var Stable = Stage{
	Name:      "stable",
	Relevant:  classify.StableInputConditions,
	Outputs:   classify.StableConditions,
	Requires:  MarkerECN,
	Marker:    MarkerStable,
	Key:       pathKey,
	Path:      pathOf,
	ByVantage: true,
	Classify:  stableVerdicts,
}

// Super turns ECN connectivity observations, raw or stable, into one super
// condition per target.
var Super = Stage{
	Name:     "super",
	Relevant: classify.SuperInputConditions,
	Outputs:  classify.SuperConditions,
	Requires: MarkerECN,
	Marker:   MarkerSuper,
	Weight:   classify.CountWeight,
	Path:     anyVantage,
	Classify: single(classify.SuperVerdict),
}

// PathDep turns super conditions from several vantage points into a
// path-dependency verdict per target.
var PathDep = Stage{
	Name:     "pathdep",
	Relevant: classify.SuperConditions,
	Outputs:  classify.PathDepConditions,
	Requires: MarkerSuper,
	Marker:   MarkerDependency,
	Path:     anyVantage,
	Classify: single(classify.PathDepVerdict),
}

// Stages lists the registered stages in pipeline order. Stable is
// optional: Super reads both its output and raw sets.
var Stages = []Stage{Stable, Super, PathDep}

// Lookup returns the stage called name.
func Lookup(name string) (Stage, error) {
	for _, s := range Stages {
		if s.Name == name {
			return s, nil
		}
	}
	return Stage{}, fmt.Errorf("pipeline: unknown stage %q", name)
}

// Interested reports whether an input set declaring conditions and carrying
// md is worth running the stage on: at least one declared condition must be
// relevant and md must carry the required key. It never reads the set's
// records.
func (s Stage) Interested(conditions []string, md obs.Metadata) bool {
	if !md.Has(s.Requires) {
		return false
	}
	for _, c := range conditions {
		if slices.Contains(s.Relevant, c) {
			return true
		}
	}
	return false
}
