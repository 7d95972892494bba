package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Rule is a single recurrence rule anchored on its set's start instant
type Rule struct {
	options rrule.ROption
	rrule   *rrule.RRule
}

// Options returns the rule's options, anchored on the set start
func (r Rule) Options() rrule.ROption {
	return r.options
}

// String returns the canonical rule body without any DTSTART part
func (r Rule) String() string {
	opt := r.options
	opt.Dtstart = time.Time{}
	return opt.RRuleString()
}

// RuleSet is an ordered, immutable collection of rules sharing one start instant.
// It carries no exclusions: those are reconciled separately.
type RuleSet struct {
	start time.Time
	rules []Rule
}

// NewRuleSet builds a rule set from parsed rule options, anchoring every rule on start.
// Rules need a non-zero start; an empty set may have none.
func NewRuleSet(start time.Time, options ...rrule.ROption) (*RuleSet, error) {
	if start.IsZero() && len(options) > 0 {
		return nil, newParseError("rule has no start instant: pass one or add a DTSTART line", nil)
	}

	set := &RuleSet{start: start}
	for _, opt := range options {
		opt.Dtstart = start
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, newParseError(fmt.Sprintf("invalid rule %q", opt.RRuleString()), err)
		}
		set.rules = append(set.rules, Rule{options: opt, rrule: r})
	}
	return set, nil
}

// Start returns the anchor instant of the set
func (s *RuleSet) Start() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.start
}

// Rules returns a copy of the rules in their original order
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules in the set
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Empty reports whether the set has no rules
func (s *RuleSet) Empty() bool {
	return s.Len() == 0
}

// Iterator returns a fresh lazy sequence of occurrences in strictly increasing
// order. Occurrences of all rules are merged; an instant produced by more than
// one rule is yielded once. Each call starts over from the first occurrence.
func (s *RuleSet) Iterator() Next {
	if s.Empty() {
		return func() (time.Time, bool) { return time.Time{}, false }
	}

	type head struct {
		next  rrule.Next
		value time.Time
		ok    bool
	}

	heads := make([]*head, 0, len(s.rules))
	for _, r := range s.rules {
		h := &head{next: r.rrule.Iterator()}
		h.value, h.ok = h.next()
		heads = append(heads, h)
	}

	return func() (time.Time, bool) {
		var earliest *head
		for _, h := range heads {
			if h.ok && (earliest == nil || h.value.Before(earliest.value)) {
				earliest = h
			}
		}
		if earliest == nil {
			return time.Time{}, false
		}

		value := earliest.value
		for _, h := range heads {
			// Skip past the emitted instant on every rule that produced it.
			for h.ok && !h.value.After(value) {
				h.value, h.ok = h.next()
			}
		}
		return value, true
	}
}

// All drains up to limit occurrences. A limit below 1 is treated as no occurrences.
func (s *RuleSet) All(limit int) []time.Time {
	var out []time.Time
	next := s.Iterator()
	for len(out) < limit {
		value, ok := next()
		if !ok {
			break
		}
		out = append(out, value)
	}
	return out
}
