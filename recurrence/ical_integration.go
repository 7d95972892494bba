package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// RuleTextFromComponent extracts rule text and the start instant from an iCal component.
// Every RRULE and EXDATE property is kept, including EXDATE parameters.
func RuleTextFromComponent(comp *ical.Component) (text string, start time.Time, err error) {
	if comp == nil {
		return "", time.Time{}, newParseError("component is nil", nil)
	}

	if comp.Props.Get(ical.PropDateTimeStart) != nil {
		start, err = comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
		if err != nil {
			return "", time.Time{}, newParseError("invalid DTSTART", err)
		}
	}

	var lines []string
	for _, prop := range comp.Props.Values(ical.PropRecurrenceRule) {
		if prop.Value == "" {
			continue
		}
		lines = append(lines, lineRRule+":"+prop.Value)
	}

	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		if prop.Value == "" {
			continue
		}
		lines = append(lines, lineExDate+formatParams(prop.Params)+":"+prop.Value)
	}

	return strings.Join(lines, "\n"), start, nil
}

// ApplyRuleText replaces the component's RRULE and EXDATE properties with the lines of text
func ApplyRuleText(comp *ical.Component, text string) error {
	if comp == nil {
		return newParseError("component is nil", nil)
	}

	var rrules, exdates []*ical.Prop
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, err := splitLine(line)
		if err != nil {
			return err
		}

		switch name {
		case lineRRule:
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = value
			rrules = append(rrules, prop)
		case lineExDate:
			prop, err := exdateProp(value)
			if err != nil {
				return err
			}
			exdates = append(exdates, prop)
		default:
			return newParseError(fmt.Sprintf("unsupported property %q", name), nil)
		}
	}

	comp.Props.Del(ical.PropRecurrenceRule)
	comp.Props.Del(ical.PropExceptionDates)
	for _, prop := range rrules {
		comp.Props.Add(prop)
	}
	for _, prop := range exdates {
		comp.Props.Add(prop)
	}
	return nil
}

// exdateProp builds an EXDATE property from the remainder of a content line,
// which may still carry parameters ("TZID=Europe/Paris:20150414T090000").
func exdateProp(value string) (*ical.Prop, error) {
	prop := ical.NewProp(ical.PropExceptionDates)

	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		prop.Value = value
		return prop, nil
	}

	for _, param := range strings.Split(value[:idx], ";") {
		k, v, ok := strings.Cut(param, "=")
		if !ok || k == "" {
			return nil, newParseError(fmt.Sprintf("malformed EXDATE parameter %q", param), nil)
		}
		prop.Params.Set(strings.ToUpper(k), v)
	}
	prop.Value = value[idx+1:]
	return prop, nil
}

// formatParams renders parameters as ";KEY=VALUE" pairs in a stable order
func formatParams(params ical.Params) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(";")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}
