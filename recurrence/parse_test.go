package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	start := day(2015, 4, 14)

	singapore, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	tests := []struct {
		name       string
		text       string
		rules      int
		exclusions []time.Time
	}{
		{
			name:  "Single rule",
			text:  "RRULE:FREQ=DAILY;COUNT=3",
			rules: 1,
		},
		{
			name:  "Bare rule body",
			text:  "FREQ=WEEKLY;BYDAY=MO",
			rules: 1,
		},
		{
			name:       "Rule with UTC exclusions kept in input order",
			text:       "RRULE:FREQ=DAILY\nEXDATE:20150416T000000Z,20150415T000000Z",
			rules:      1,
			exclusions: []time.Time{day(2015, 4, 16), day(2015, 4, 15)},
		},
		{
			name:       "Multiple EXDATE lines",
			text:       "RRULE:FREQ=DAILY\nEXDATE:20150415T000000Z\nEXDATE:20150415T000000Z",
			rules:      1,
			exclusions: []time.Time{day(2015, 4, 15), day(2015, 4, 15)},
		},
		{
			name:       "EXDATE with TZID",
			text:       "RRULE:FREQ=DAILY\nEXDATE;TZID=Asia/Singapore:20150415T090000",
			rules:      1,
			exclusions: []time.Time{time.Date(2015, 4, 15, 9, 0, 0, 0, singapore)},
		},
		{
			name:  "CRLF and blank lines",
			text:  "RRULE:FREQ=DAILY\r\n\r\nRRULE:FREQ=WEEKLY\r\n",
			rules: 2,
		},
		{
			name:  "Empty text",
			text:  "",
			rules: 0,
		},
		{
			name:       "Only exclusions",
			text:       "EXDATE:20150415T000000Z",
			rules:      0,
			exclusions: []time.Time{day(2015, 4, 15)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.text, start)
			require.NoError(t, err)
			assert.Equal(t, tt.rules, parsed.Rules.Len())
			assertInstants(t, tt.exclusions, parsed.Exclusions)
			assert.True(t, start.Equal(parsed.Rules.Start()))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "Unknown frequency", text: "RRULE:FREQ=SOMETIMES"},
		{name: "Garbage line", text: "not a rule"},
		{name: "Unsupported property", text: "RDATE:20150415T000000Z"},
		{name: "Bad exclusion", text: "RRULE:FREQ=DAILY\nEXDATE:yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, day(2015, 4, 14))
			require.Error(t, err)
			assert.True(t, IsType(err, ErrRuleParse), "got %v", err)
		})
	}
}

func TestParse_MissingStart(t *testing.T) {
	_, err := Parse("RRULE:FREQ=DAILY;COUNT=2", time.Time{})
	require.Error(t, err)
	assert.True(t, IsType(err, ErrRuleParse), "got %v", err)

	// Without rules there is nothing to anchor
	parsed, err := Parse("EXDATE:20150415T000000Z", time.Time{})
	require.NoError(t, err)
	assert.True(t, parsed.Rules.Empty())
	assert.Len(t, parsed.Exclusions, 1)
}

func TestParse_StartFromText(t *testing.T) {
	parsed, err := Parse("DTSTART:20150414T010000Z\nRRULE:FREQ=DAILY;COUNT=2", time.Time{})
	require.NoError(t, err)

	start := time.Date(2015, 4, 14, 1, 0, 0, 0, time.UTC)
	assert.True(t, start.Equal(parsed.Rules.Start()))
	assertInstants(t, []time.Time{start, start.AddDate(0, 0, 1)}, parsed.Rules.All(5))
}

func TestParse_SuppliedStartWins(t *testing.T) {
	start := day(2020, 1, 1)
	parsed, err := Parse("DTSTART:20150414T010000Z\nRRULE:FREQ=DAILY;COUNT=1", start)
	require.NoError(t, err)
	assertInstants(t, []time.Time{start}, parsed.Rules.All(5))
}

func TestParseInLocation_FloatingTimes(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	start := time.Date(2015, 4, 14, 9, 0, 0, 0, paris)
	parsed, err := ParseInLocation("RRULE:FREQ=DAILY;COUNT=2\nEXDATE:20150415T090000", start, paris)
	require.NoError(t, err)

	result := Reconcile(parsed.Rules.Iterator(), parsed.Exclusions, firstPage)
	assert.Equal(t, []bool{false, true}, excludedFlags(result.Occurrences))
}
