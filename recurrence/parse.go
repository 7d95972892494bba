package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	lineRRule   = "RRULE"
	lineExDate  = "EXDATE"
	lineDTStart = "DTSTART"
)

// ParsedRule is raw rule text split into its rules and its stored exclusions
type ParsedRule struct {
	Rules *RuleSet
	// Exclusions keep the order they had in the text; they are neither sorted nor deduplicated.
	Exclusions []time.Time
}

// Parse parses rule text anchored on start. Floating times resolve to start's location.
func Parse(text string, start time.Time) (*ParsedRule, error) {
	loc := start.Location()
	if start.IsZero() {
		loc = time.UTC
	}
	return ParseInLocation(text, start, loc)
}

// ParseInLocation parses rule text, resolving floating times in loc.
//
// The text holds one property per line: RRULE lines become rules, EXDATE lines
// become exclusions and a DTSTART line is only used when start is zero.
// Embedded DTSTART parts inside an RRULE are overridden by the set start.
func ParseInLocation(text string, start time.Time, loc *time.Location) (*ParsedRule, error) {
	if loc == nil {
		loc = time.UTC
	}

	var (
		options    []rrule.ROption
		exclusions []time.Time
		dtstart    time.Time
	)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, value, err := splitLine(line)
		if err != nil {
			return nil, err
		}

		switch name {
		case lineRRule:
			opt, err := rrule.StrToROptionInLocation(value, loc)
			if err != nil {
				return nil, newParseError(fmt.Sprintf("invalid RRULE %q", value), err)
			}
			options = append(options, *opt)
		case lineExDate:
			dates, err := rrule.StrToDatesInLoc(value, loc)
			if err != nil {
				return nil, newParseError(fmt.Sprintf("invalid EXDATE %q", value), err)
			}
			exclusions = append(exclusions, dates...)
		case lineDTStart:
			dates, err := rrule.StrToDatesInLoc(value, loc)
			if err != nil || len(dates) != 1 {
				return nil, newParseError(fmt.Sprintf("invalid DTSTART %q", value), err)
			}
			dtstart = dates[0]
		default:
			return nil, newParseError(fmt.Sprintf("unsupported property %q", name), nil)
		}
	}

	if start.IsZero() {
		start = dtstart
	}

	rules, err := NewRuleSet(start, options...)
	if err != nil {
		return nil, err
	}

	return &ParsedRule{Rules: rules, Exclusions: exclusions}, nil
}

// splitLine separates the property name from the remainder of a content line.
// For "EXDATE;TZID=Asia/Singapore:20150414T090000" the remainder keeps the
// parameters, which is what rrule.StrToDatesInLoc expects.
func splitLine(line string) (name, value string, err error) {
	idx := strings.IndexAny(line, ":;")
	if idx <= 0 {
		// A bare rule body such as "FREQ=DAILY;COUNT=3" is accepted as an RRULE.
		if strings.HasPrefix(strings.ToUpper(line), "FREQ=") {
			return lineRRule, line, nil
		}
		return "", "", newParseError(fmt.Sprintf("malformed line %q", line), nil)
	}

	name = strings.ToUpper(line[:idx])
	value = line[idx+1:]
	if strings.HasPrefix(name, "FREQ=") {
		return lineRRule, line, nil
	}
	if name == lineRRule && line[idx] == ';' {
		return "", "", newParseError(fmt.Sprintf("unexpected RRULE parameters in %q", line), nil)
	}
	return name, value, nil
}
