package pgtype

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Interval is a PostgreSQL interval split into its components. Hours,
// minutes and seconds carry the clock sign; Microseconds is always
// non-negative and shares the sign of the clock.
type Interval struct {
	Years, Months, Days     int64
	Hours, Minutes, Seconds int64
	Microseconds            int64
	NegativeClock           bool
}

const (
	number = `([+-]?\d+)`
	years  = number + `\s+years?`
	months = number + `\s+mons?`
	days   = number + `\s+days?`
	clock  = `([+-])?(\d*):(\d\d):(\d\d).?(\d{1,6})?`
)

// intervalPattern matches the postgres output style:
// [Y years] [M mons] [D days] [[-]H:MM:SS[.ffffff]]
var intervalPattern = regexp.MustCompile(
	"(" + years + ")?\\s*(" + months + ")?\\s*(" + days + ")?\\s*(" + clock + ")?",
)

// Submatch positions within intervalPattern.
const (
	groupYears    = 2
	groupMonths   = 4
	groupDays     = 6
	groupSign     = 8
	groupHours    = 9
	groupMinutes  = 10
	groupSeconds  = 11
	groupFraction = 12
)

// ParseInterval splits raw into its components. Empty input, or input with
// no recognizable component, yields the zero Interval.
func ParseInterval(raw string) (Interval, error) {
	var iv Interval
	if raw == "" {
		return iv, nil
	}

	m := intervalPattern.FindStringSubmatch(raw)
	if m == nil {
		return iv, nil
	}

	fields := []struct {
		group int
		dst   *int64
	}{
		{groupYears, &iv.Years},
		{groupMonths, &iv.Months},
		{groupDays, &iv.Days},
		{groupHours, &iv.Hours},
		{groupMinutes, &iv.Minutes},
		{groupSeconds, &iv.Seconds},
	}
	for _, f := range fields {
		if m[f.group] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[f.group], 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("parse interval %q: %w", raw, err)
		}
		*f.dst = n
	}

	if frac := m[groupFraction]; frac != "" {
		// Right-pad to microsecond resolution.
		n, err := strconv.ParseInt(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("parse interval %q: %w", raw, err)
		}
		iv.Microseconds = n
	}

	if m[groupSign] == "-" {
		iv.NegativeClock = true
		iv.Hours, iv.Minutes, iv.Seconds = -iv.Hours, -iv.Minutes, -iv.Seconds
	}
	return iv, nil
}

// ISO8601 renders the interval as P{Y}Y{M}M{D}DT{H}H{M}M{S}[.frac]S.
// Every component is always present.
func (iv Interval) ISO8601() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "P%dY%dM%dDT%dH%dM", iv.Years, iv.Months, iv.Days, iv.Hours, iv.Minutes)

	if iv.Microseconds == 0 {
		fmt.Fprintf(&sb, "%dS", iv.Seconds)
		return sb.String()
	}

	secs := iv.Seconds
	sign := ""
	if iv.NegativeClock {
		sign = "-"
		secs = -secs
	}
	frac := strings.TrimRight(fmt.Sprintf("%06d", iv.Microseconds), "0")
	fmt.Fprintf(&sb, "%s%d.%sS", sign, secs, frac)
	return sb.String()
}

// IntervalToISO converts postgres interval text to an ISO-8601 duration.
// Empty input yields "P0Y0M0DT0H0M0S".
func IntervalToISO(raw string) (string, error) {
	iv, err := ParseInterval(raw)
	if err != nil {
		return "", err
	}
	return iv.ISO8601(), nil
}
