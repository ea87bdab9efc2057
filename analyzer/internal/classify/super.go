package classify

import (
	"errors"
	"fmt"

	"github.com/ecnpath/ecnpath/analyzer/internal/aggregate"
)

// Raw connectivity conditions consumed by the super layer.
const (
	ConnWorks     = "ecn.connectivity.works"
	ConnBroken    = "ecn.connectivity.broken"
	ConnTransient = "ecn.connectivity.transient"
	ConnOffline   = "ecn.connectivity.offline"
)

// Super conditions emitted by the super layer.
const (
	SuperWorks     = "ecn.connectivity.super.works"
	SuperBroken    = "ecn.connectivity.super.broken"
	SuperTransient = "ecn.connectivity.super.transient"
	SuperOffline   = "ecn.connectivity.super.offline"
	SuperWeird     = "ecn.connectivity.super.weird"
)

// RawConditions lists the raw connectivity conditions.
var RawConditions = []string{ConnWorks, ConnBroken, ConnTransient, ConnOffline}

// SuperInputConditions is the closed input set of the super layer: raw
// connectivity conditions, and their stable summaries weighted by count.
var SuperInputConditions = []string{
	ConnWorks, ConnBroken, ConnTransient, ConnOffline,
	StableWorks, StableBroken, StableTransient, StableOffline,
}

// SuperConditions is the closed output set of the super layer, in
// precedence order.
var SuperConditions = []string{SuperWorks, SuperBroken, SuperTransient, SuperOffline, SuperWeird}

// ErrInvariant reports a classification that matched no rule or several.
// It indicates a bug, never bad input data.
var ErrInvariant = errors.New("classify: invariant violated")

// SuperInput holds the raw connectivity counts for one target.
type SuperInput struct {
	Works     int
	Broken    int
	Transient int
	Offline   int
}

// SuperInputFrom reads the connectivity counts out of an aggregate. A
// stable condition adds to the count of the raw condition it summarizes.
func SuperInputFrom(a *aggregate.TargetAggregate) SuperInput {
	return SuperInput{
		Works:     a.Count(ConnWorks) + a.Count(StableWorks),
		Broken:    a.Count(ConnBroken) + a.Count(StableBroken),
		Transient: a.Count(ConnTransient) + a.Count(StableTransient),
		Offline:   a.Count(ConnOffline) + a.Count(StableOffline),
	}
}

// SuperOutput is the result of the super classification.
type SuperOutput struct {
	// Condition is one of SuperConditions.
	Condition string

	// E0Seen: some connection without ECN succeeded (works or broken).
	E0Seen bool
	// E1Seen: some connection with ECN succeeded (works or transient).
	E1Seen bool
}

// Super classifies one target's raw counts.
//
//	works     = e0 && e1, seen together on at least one connection
//	broken    = broken > 0 && works == 0 && transient == 0
//	transient = transient > 0 && works == 0 && broken == 0
//	offline   = !e0 && !e1
//	weird     = none of the above
//
// A target whose only e0 evidence is broken connections and whose only e1
// evidence is transient ones never completed both attempts on the same
// connection: it is weird, not works.
//
// Exactly one rule holds for any non-negative input; anything else is
// reported as ErrInvariant.
func Super(in SuperInput) (SuperOutput, error) {
	if in.Works < 0 || in.Broken < 0 || in.Transient < 0 || in.Offline < 0 {
		return SuperOutput{}, fmt.Errorf("%w: negative count in %+v", ErrInvariant, in)
	}

	e1 := in.Works+in.Transient > 0
	e0 := in.Works+in.Broken > 0

	rules := [...]struct {
		condition string
		holds     bool
	}{
		{SuperWorks, e0 && e1 && in.Works > 0},
		{SuperBroken, in.Broken > 0 && in.Works == 0 && in.Transient == 0},
		{SuperTransient, in.Transient > 0 && in.Works == 0 && in.Broken == 0},
		{SuperOffline, !e0 && !e1},
	}

	out := SuperOutput{Condition: SuperWeird, E0Seen: e0, E1Seen: e1}
	matched := 0
	for _, r := range rules {
		if !r.holds {
			continue
		}
		if matched == 0 {
			out.Condition = r.condition
		}
		matched++
	}
	if matched > 1 {
		return SuperOutput{}, fmt.Errorf("%w: %d super rules hold for %+v", ErrInvariant, matched, in)
	}
	return out, nil
}

// SuperVerdict classifies an aggregate for the super layer. Every target
// with at least one counted observation gets a verdict.
func SuperVerdict(a *aggregate.TargetAggregate) (string, bool, error) {
	if a.Total() == 0 {
		return "", false, nil
	}
	out, err := Super(SuperInputFrom(a))
	if err != nil {
		return "", false, fmt.Errorf("target %s: %w", a.Target, err)
	}
	return out.Condition, true, nil
}
