package classify

import (
	"github.com/ecnpath/ecnpath/analyzer/internal/aggregate"
)

// Verdicts emitted by the path-dependency layer.
const (
	PathDependent = "ecn.connectivity.path_dependent"
	SiteDependent = "ecn.connectivity.site_dependent"
)

// PathDepConditions is the closed output set of the path-dependency layer.
var PathDepConditions = []string{PathDependent, SiteDependent}

// PathDepInput holds the super-condition counts for one target, summed
// over every vantage point and run that observed it.
type PathDepInput struct {
	Works     int
	Broken    int
	Transient int
	Offline   int
	Weird     int
}

// PathDepInputFrom reads the super-condition counts out of an aggregate.
func PathDepInputFrom(a *aggregate.TargetAggregate) PathDepInput {
	return PathDepInput{
		Works:     a.Count(SuperWorks),
		Broken:    a.Count(SuperBroken),
		Transient: a.Count(SuperTransient),
		Offline:   a.Count(SuperOffline),
		Weird:     a.Count(SuperWeird),
	}
}

// stable reports that no vantage point saw the target unreachable,
// unstable or inconsistent.
func (in PathDepInput) stable() bool {
	return in.Offline == 0 && in.Transient == 0 && in.Weird == 0
}

// PathDependency decides whether breakage of a target depends on the path
// or on the site. ok is false when neither holds, which is the common case
// and not an error.
//
//	path_dependent: broken somewhere, works somewhere else
//	site_dependent: broken everywhere it was reached
func PathDependency(in PathDepInput) (condition string, ok bool) {
	switch {
	case in.Broken >= 1 && in.Works >= 1 && in.stable():
		return PathDependent, true
	case in.Broken >= 1 && in.Works == 0 && in.stable():
		return SiteDependent, true
	default:
		return "", false
	}
}

// PathDepVerdict classifies an aggregate for the path-dependency layer.
func PathDepVerdict(a *aggregate.TargetAggregate) (string, bool, error) {
	cond, ok := PathDependency(PathDepInputFrom(a))
	return cond, ok, nil
}
