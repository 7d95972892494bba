package recurrence

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(t *testing.T) *ical.Component {
	t.Helper()
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, "event-1")
	comp.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2015, 4, 14, 1, 0, 0, 0, time.UTC))
	return comp
}

func TestRuleTextFromComponent(t *testing.T) {
	comp := newEvent(t)

	rrule := ical.NewProp(ical.PropRecurrenceRule)
	rrule.Value = "FREQ=DAILY;COUNT=3"
	comp.Props.Add(rrule)

	exdate := ical.NewProp(ical.PropExceptionDates)
	exdate.Params.Set("TZID", "Asia/Singapore")
	exdate.Value = "20150415T090000"
	comp.Props.Add(exdate)

	text, start, err := RuleTextFromComponent(comp)
	require.NoError(t, err)
	assert.True(t, time.Date(2015, 4, 14, 1, 0, 0, 0, time.UTC).Equal(start))
	assert.Equal(t, "RRULE:FREQ=DAILY;COUNT=3\nEXDATE;TZID=Asia/Singapore:20150415T090000", text)

	parsed, err := Parse(text, start)
	require.NoError(t, err)
	result := Reconcile(parsed.Rules.Iterator(), parsed.Exclusions, firstPage)
	assert.Equal(t, []bool{false, true, false}, excludedFlags(result.Occurrences))
}

func TestRuleTextFromComponent_NoRecurrence(t *testing.T) {
	comp := ical.NewComponent(ical.CompEvent)

	text, start, err := RuleTextFromComponent(comp)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.True(t, start.IsZero())

	_, _, err = RuleTextFromComponent(nil)
	assert.True(t, IsType(err, ErrRuleParse))
}

func TestApplyRuleText(t *testing.T) {
	comp := newEvent(t)
	old := ical.NewProp(ical.PropExceptionDates)
	old.Value = "20100101T000000Z"
	comp.Props.Add(old)

	text := "RRULE:FREQ=DAILY;COUNT=3\nEXDATE:20150415T010000Z,20150416T010000Z"
	require.NoError(t, ApplyRuleText(comp, text))

	rrules := comp.Props.Values(ical.PropRecurrenceRule)
	require.Len(t, rrules, 1)
	assert.Equal(t, "FREQ=DAILY;COUNT=3", rrules[0].Value)

	exdates := comp.Props.Values(ical.PropExceptionDates)
	require.Len(t, exdates, 1)
	assert.Equal(t, "20150415T010000Z,20150416T010000Z", exdates[0].Value)

	back, _, err := RuleTextFromComponent(comp)
	require.NoError(t, err)
	assert.Equal(t, text, back)
}

func TestApplyRuleText_KeepsParameters(t *testing.T) {
	comp := newEvent(t)
	require.NoError(t, ApplyRuleText(comp, "EXDATE;TZID=Europe/Paris:20150415T090000"))

	exdates := comp.Props.Values(ical.PropExceptionDates)
	require.Len(t, exdates, 1)
	assert.Equal(t, "Europe/Paris", exdates[0].Params.Get("TZID"))
	assert.Equal(t, "20150415T090000", exdates[0].Value)
}

func TestApplyRuleText_ClearsWhenEmpty(t *testing.T) {
	comp := newEvent(t)
	require.NoError(t, ApplyRuleText(comp, "RRULE:FREQ=DAILY\nEXDATE:20150415T010000Z"))
	require.NoError(t, ApplyRuleText(comp, "RRULE:FREQ=DAILY"))

	assert.Empty(t, comp.Props.Values(ical.PropExceptionDates))
	assert.Len(t, comp.Props.Values(ical.PropRecurrenceRule), 1)
}

func TestApplyRuleText_Invalid(t *testing.T) {
	comp := newEvent(t)
	err := ApplyRuleText(comp, "SUMMARY:nope")
	require.Error(t, err)
	assert.True(t, IsType(err, ErrRuleParse))
	assert.True(t, strings.Contains(err.Error(), "SUMMARY"))
}
