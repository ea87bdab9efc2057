// Package classify turns per-target condition counts into verdicts.
//
// super.go maps the raw connectivity counts of one target (works, broken,
// transient, offline) to exactly one super condition. The intermediate
// predicates follow the ECN probe's two connection attempts: e0 is "a
// connection without ECN succeeded", e1 is "a connection with ECN
// succeeded". Precedence: works, broken, transient, offline, weird.
//
// stable.go summarizes what one vantage point saw of one target over a
// campaign: one stable connectivity and one stable negotiation condition,
// each valued with the number of raw observations behind it. The super
// layer accepts those summaries in place of the raw conditions.
//
// pathdep.go maps super-condition counts gathered from several vantage
// points to path_dependent, site_dependent, or no verdict at all.
//
// The classifiers are pure functions over fixed-field count records.
package classify
