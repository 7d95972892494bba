package recurrence

import (
	"sort"
	"time"
)

// UTCFormat is the fixed-width layout used for EXDATE values written back to rule text
const UTCFormat = "20060102T150405Z"

// Next yields the next occurrence instant, ok is false once the sequence is exhausted
type Next func() (value time.Time, ok bool)

// Occurrence is one generated instant of a rule set as seen by the reconciler
type Occurrence struct {
	Index    int       // Zero-based position in the expansion
	Instant  time.Time // Generated instant, in the rule set's time zone
	Excluded bool      // True if a stored exclusion matched this instant exactly
}

// Horizon bounds how far an expansion proceeds
type Horizon struct {
	CountLimit int       // Expansion stops once the occurrence index exceeds this
	DateLimit  time.Time // Expansion stops once an occurrence falls after this
}

// Result is the outcome of reconciling stored exclusions against an expansion
type Result struct {
	Occurrences []Occurrence
	// Matched exclusions coincide exactly with an occurrence.
	Matched []time.Time
	// Unmatched exclusions are in range but no occurrence exists at their instant.
	Unmatched []time.Time
	// OutOfRange exclusions lie after the horizon date limit and are dropped.
	OutOfRange []time.Time
	Horizon    Horizon
	// Exhausted is true when the rule set produced no further occurrences,
	// i.e. the expansion was not cut short by the horizon.
	Exhausted bool
}

// ExcludedInstants returns the instants of all occurrences flagged as excluded
func (r *Result) ExcludedInstants() []time.Time {
	var out []time.Time
	for _, o := range r.Occurrences {
		if o.Excluded {
			out = append(out, o.Instant)
		}
	}
	return out
}

// Find returns the occurrence at the given instant, if it was generated
func (r *Result) Find(instant time.Time) (Occurrence, bool) {
	i := sort.Search(len(r.Occurrences), func(i int) bool {
		return !r.Occurrences[i].Instant.Before(instant)
	})
	if i < len(r.Occurrences) && r.Occurrences[i].Instant.Equal(instant) {
		return r.Occurrences[i], true
	}
	return Occurrence{}, false
}
