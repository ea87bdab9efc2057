package classify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecnpath/ecnpath/analyzer/internal/aggregate"
	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// Raw negotiation conditions. Negotiated and NotNegotiated are older
// spellings of NegoSucceeded and NegoFailed and count the same.
const (
	NegoSucceeded = "ecn.negotiation.succeeded"
	NegoFailed    = "ecn.negotiation.failed"
	NegoReflected = "ecn.negotiation.reflected"
	Negotiated    = "ecn.negotiated"
	NotNegotiated = "ecn.not_negotiated"
)

// Stable conditions emitted by the stability layer. Each carries the
// number of raw observations behind it as its value.
const (
	StablePrefix = "ecn.stable."

	StableWorks     = "ecn.stable.connectivity.works"
	StableBroken    = "ecn.stable.connectivity.broken"
	StableOffline   = "ecn.stable.connectivity.offline"
	StableTransient = "ecn.stable.connectivity.transient"
	StableUnstable  = "ecn.stable.connectivity.unstable"

	StableNegoSucceeded = "ecn.stable.negotiation.succeeded"
	StableNegoFailed    = "ecn.stable.negotiation.failed"
	StableNegoReflected = "ecn.stable.negotiation.reflected"
	StableNegoUnstable  = "ecn.stable.negotiation.unstable"
)

// NegotiationConditions lists every raw negotiation condition, aliases
// included.
var NegotiationConditions = []string{NegoSucceeded, NegoFailed, NegoReflected, Negotiated, NotNegotiated}

// StableInputConditions is the closed input set of the stability layer.
var StableInputConditions = append(append([]string{}, RawConditions...), NegotiationConditions...)

// StableConditions is the closed output set of the stability layer.
var StableConditions = []string{
	StableWorks, StableBroken, StableOffline, StableTransient, StableUnstable,
	StableNegoSucceeded, StableNegoFailed, StableNegoReflected, StableNegoUnstable,
}

// StableInput holds the raw connectivity and negotiation counts of one
// target as seen from one vantage point.
type StableInput struct {
	Works     int
	Broken    int
	Transient int
	Offline   int

	Succeeded int
	Failed    int
	Reflected int
}

// StableInputFrom reads the counts out of an aggregate, folding the
// negotiation aliases into their current names.
func StableInputFrom(a *aggregate.TargetAggregate) StableInput {
	return StableInput{
		Works:     a.Count(ConnWorks),
		Broken:    a.Count(ConnBroken),
		Transient: a.Count(ConnTransient),
		Offline:   a.Count(ConnOffline),
		Succeeded: a.Count(NegoSucceeded) + a.Count(Negotiated),
		Failed:    a.Count(NegoFailed) + a.Count(NotNegotiated),
		Reflected: a.Count(NegoReflected),
	}
}

// StableOutput is one stability verdict and the count it summarizes.
type StableOutput struct {
	Condition string
	Count     int
}

// StableConnectivity summarizes the connectivity counts. ok is false when
// there are none.
//
//	works     = works > 0 && broken == 0
//	broken    = broken > 0 && works == 0 && transient == 0
//	offline   = works + broken + transient == 0
//	transient = works + broken == 0
//	unstable  = anything else, count 0
//
// Rules are tried in that order and the first match wins.
func StableConnectivity(in StableInput) (StableOutput, bool) {
	if in.Works+in.Broken+in.Transient+in.Offline == 0 {
		return StableOutput{}, false
	}
	switch {
	case in.Works > 0 && in.Broken == 0:
		return StableOutput{StableWorks, in.Works}, true
	case in.Broken > 0 && in.Works == 0 && in.Transient == 0:
		return StableOutput{StableBroken, in.Broken}, true
	case in.Works+in.Broken+in.Transient == 0:
		return StableOutput{StableOffline, in.Offline}, true
	case in.Works+in.Broken == 0:
		return StableOutput{StableTransient, in.Transient}, true
	default:
		return StableOutput{StableUnstable, 0}, true
	}
}

// StableNegotiation summarizes the negotiation counts. ok is false when
// there are none. Exactly one outcome seen yields that outcome; a mix is
// unstable with count 0.
func StableNegotiation(in StableInput) (StableOutput, bool) {
	switch {
	case in.Succeeded+in.Failed+in.Reflected == 0:
		return StableOutput{}, false
	case in.Failed == 0 && in.Reflected == 0:
		return StableOutput{StableNegoSucceeded, in.Succeeded}, true
	case in.Succeeded == 0 && in.Reflected == 0:
		return StableOutput{StableNegoFailed, in.Failed}, true
	case in.Succeeded == 0 && in.Failed == 0:
		return StableOutput{StableNegoReflected, in.Reflected}, true
	default:
		return StableOutput{StableNegoUnstable, 0}, true
	}
}

// StableVerdicts classifies an aggregate for the stability layer: up to one
// connectivity and one negotiation verdict, in that order.
func StableVerdicts(a *aggregate.TargetAggregate) ([]StableOutput, error) {
	in := StableInputFrom(a)
	if in.Works < 0 || in.Broken < 0 || in.Transient < 0 || in.Offline < 0 ||
		in.Succeeded < 0 || in.Failed < 0 || in.Reflected < 0 {
		return nil, fmt.Errorf("target %s: %w: negative count in %+v", a.Target, ErrInvariant, in)
	}

	var out []StableOutput
	if v, ok := StableConnectivity(in); ok {
		out = append(out, v)
	}
	if v, ok := StableNegotiation(in); ok {
		out = append(out, v)
	}
	return out, nil
}

// CountWeight is the aggregation weight of an observation: stable
// conditions count by the integer in their value, everything else once.
// A stable observation whose value is missing or not an integer counts 0.
func CountWeight(o obs.Observation) int {
	if !strings.HasPrefix(o.Condition, StablePrefix) {
		return 1
	}
	return countValue(o.Value)
}

// countValue accepts both 12 and "12".
func countValue(v json.RawMessage) int {
	if len(v) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil || n < 0 {
		return 0
	}
	return n
}
