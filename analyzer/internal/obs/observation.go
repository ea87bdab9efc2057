package obs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Wildcard is the path element meaning "any hop" or "any vantage point".
const Wildcard = "*"

// TimeLayout is the timestamp layout written on the wire.
const TimeLayout = "2006-01-02T15:04:05"

// Observation is one timestamped, path-scoped measurement fact.
// Observations are values; nothing in this module mutates one after decode.
type Observation struct {
	SetID     int
	Start     time.Time
	End       time.Time
	Path      []string
	Condition string

	// Value is the raw JSON payload, nil when the record carries none.
	Value json.RawMessage
}

// HasValue reports whether the observation carries a value payload.
func (o Observation) HasValue() bool {
	return len(o.Value) > 0
}

// Target returns the destination the observation is about: the last path
// element that is neither a wildcard nor empty. ["*", "*"] has no target
// and ok is false.
func (o Observation) Target() (target string, ok bool) {
	for i := len(o.Path) - 1; i >= 0; i-- {
		if o.Path[i] != Wildcard && o.Path[i] != "" {
			return o.Path[i], true
		}
	}
	return "", false
}

// FromVantage returns a copy of o whose path runs from vantage point vp to
// o's target over any hops. o is returned unchanged when it has no target
// or vp is empty.
func (o Observation) FromVantage(vp string) Observation {
	target, ok := o.Target()
	if !ok || vp == "" {
		return o
	}
	o.Path = []string{vp, Wildcard, target}
	return o
}

// Equal reports whether o and other are field-for-field identical.
func (o Observation) Equal(other Observation) bool {
	return o.SetID == other.SetID &&
		o.Start.Equal(other.Start) &&
		o.End.Equal(other.End) &&
		slices.Equal(o.Path, other.Path) &&
		o.Condition == other.Condition &&
		bytes.Equal(o.Value, other.Value)
}

// String renders the path the way the PTO tooling prints it: space separated.
func (o Observation) String() string {
	return strings.Join(o.Path, " ") + " " + o.Condition
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// parseTime reads a TimeLayout timestamp, optionally suffixed with Z.
// Fractional seconds are rejected: the wire carries whole seconds only.
func parseTime(s string) (time.Time, error) {
	if strings.Contains(s, ".") {
		return time.Time{}, fmt.Errorf("timestamp %q has fractional seconds", s)
	}
	return time.ParseInLocation(TimeLayout, strings.TrimSuffix(s, "Z"), time.UTC)
}
