package recurrence

import (
	"slices"
	"strings"
	"time"
)

// FormatUTC formats t as a fixed-width UTC timestamp, e.g. 20150414T010000Z
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCFormat)
}

// Serialize renders rules and the chosen excluded instants as rule text.
//
// Every rule becomes one RRULE line without its start anchor. When excluded is
// non-empty a single EXDATE line follows, listing the distinct instants in
// ascending order as UTC timestamps.
func Serialize(rules *RuleSet, excluded []time.Time) string {
	var lines []string
	for _, r := range rules.Rules() {
		lines = append(lines, lineRRule+":"+r.String())
	}

	if exdates := formatExclusions(excluded); len(exdates) > 0 {
		lines = append(lines, lineExDate+":"+strings.Join(exdates, ","))
	}

	return strings.Join(lines, "\n")
}

// formatExclusions sorts and de-duplicates instants by UTC value
func formatExclusions(excluded []time.Time) []string {
	if len(excluded) == 0 {
		return nil
	}

	sorted := slices.Clone(excluded)
	slices.SortFunc(sorted, func(a, b time.Time) int {
		return a.Compare(b)
	})

	out := make([]string, 0, len(sorted))
	for i, t := range sorted {
		if i > 0 && t.Equal(sorted[i-1]) {
			continue
		}
		out = append(out, FormatUTC(t))
	}
	return out
}
