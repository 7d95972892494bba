package recurrence

import (
	"fmt"
	"slices"
	"time"
)

// Reconcile expands next within h and classifies every exclusion as matched,
// unmatched or out of range in a single forward sweep.
func Reconcile(next Next, exclusions []time.Time, h Horizon) *Result {
	// A fresh sweep cannot reject its first horizon.
	result, _ := NewSweep(next, exclusions).Advance(h)
	return result
}

// Sweep is a resumable reconciliation of one occurrence sequence against a
// sorted exclusion list. Advancing with a larger horizon continues where the
// previous advance stopped instead of expanding again from the start.
type Sweep struct {
	next       Next
	exclusions []time.Time // sorted ascending, never modified
	cursor     int         // exclusions[:cursor] are classified

	occurrences []Occurrence
	matched     []time.Time
	unmatched   []time.Time

	// held is the occurrence that stopped the last advance, not yet emitted.
	held      time.Time
	hasHeld   bool
	exhausted bool

	horizon  Horizon
	advanced bool
}

// NewSweep prepares a sweep over next. The exclusions are copied and sorted;
// duplicates are kept.
func NewSweep(next Next, exclusions []time.Time) *Sweep {
	sorted := slices.Clone(exclusions)
	slices.SortStableFunc(sorted, func(a, b time.Time) int {
		return a.Compare(b)
	})
	if next == nil {
		next = func() (time.Time, bool) { return time.Time{}, false }
	}
	return &Sweep{next: next, exclusions: sorted}
}

// Advance extends the sweep up to h and returns a snapshot of the result.
// h must cover every horizon previously passed to Advance.
func (s *Sweep) Advance(h Horizon) (*Result, error) {
	if s.advanced && !h.Covers(s.horizon) {
		return nil, newHorizonError(fmt.Sprintf(
			"horizon cannot shrink from %d/%s to %d/%s",
			s.horizon.CountLimit, s.horizon.DateLimit.Format(time.RFC3339),
			h.CountLimit, h.DateLimit.Format(time.RFC3339)))
	}
	s.horizon = h
	s.advanced = true

	for !s.exhausted {
		instant, ok := s.pull()
		if !ok {
			s.exhausted = true
			break
		}

		index := len(s.occurrences)
		if index > h.CountLimit || instant.After(h.DateLimit) {
			s.held, s.hasHeld = instant, true
			break
		}

		s.occurrences = append(s.occurrences, Occurrence{
			Index:    index,
			Instant:  instant,
			Excluded: s.classify(instant),
		})
	}

	return s.snapshot(), nil
}

// pull returns the held occurrence if there is one, otherwise the next generated one
func (s *Sweep) pull() (time.Time, bool) {
	if s.hasHeld {
		s.hasHeld = false
		return s.held, true
	}
	return s.next()
}

// classify consumes every exclusion up to the occurrence at instant and reports
// whether one of them matched it exactly. At most one exclusion matches an
// occurrence; an identical duplicate is left for the next occurrence.
func (s *Sweep) classify(instant time.Time) bool {
	for s.cursor < len(s.exclusions) {
		exclusion := s.exclusions[s.cursor]
		switch {
		case exclusion.Before(instant):
			// Fell between the previous occurrence and this one: the rule no
			// longer produces it.
			s.unmatched = append(s.unmatched, exclusion)
			s.cursor++
		case exclusion.Equal(instant):
			s.matched = append(s.matched, exclusion)
			s.cursor++
			return true
		default:
			return false
		}
	}
	return false
}

// snapshot builds a result from the sweep state. Exclusions not reached by the
// sweep are classified against the date limit without being consumed, so a
// later advance can still match them.
func (s *Sweep) snapshot() *Result {
	result := &Result{
		Occurrences: slices.Clone(s.occurrences),
		Matched:     slices.Clone(s.matched),
		Unmatched:   slices.Clone(s.unmatched),
		Horizon:     s.horizon,
		Exhausted:   s.exhausted,
	}
	for _, exclusion := range s.exclusions[s.cursor:] {
		if exclusion.After(s.horizon.DateLimit) {
			result.OutOfRange = append(result.OutOfRange, exclusion)
		} else {
			result.Unmatched = append(result.Unmatched, exclusion)
		}
	}
	return result
}
