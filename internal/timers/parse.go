package timers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"signupboard/internal/domain"
)

var (
	absoluteLayouts = []string{"2006-01-02 15:04", "2006-01-02"}
	relativeToken   = regexp.MustCompile(`^(\d+)\s*([A-Za-z]+)[\s,]*`)
)

// maxHorizonYears bounds how far ahead an expiry may be set.
const maxHorizonYears = 10

var horizon = time.Duration(maxHorizonYears) * 366 * 24 * time.Hour

type unit struct {
	name   string
	dur    time.Duration
	months int
}

var (
	unitSecond = unit{name: "second", dur: time.Second}
	unitMinute = unit{name: "minute", dur: time.Minute}
	unitHour   = unit{name: "hour", dur: time.Hour}
	unitDay    = unit{name: "day", dur: 24 * time.Hour}
	unitWeek   = unit{name: "week", dur: 7 * 24 * time.Hour}
	unitMonth  = unit{name: "month", months: 1}
	unitYear   = unit{name: "year", months: 12}
)

// Parser converts operator time text into an absolute UTC instant.
//
// Accepted forms: "YYYY-MM-DD hh:mm" and "YYYY-MM-DD" in UTC, or a relative
// offset such as "in 5 days", "1 week", "2M" or "1h 30m". "M" is months and
// "m" is minutes; other units are case-insensitive.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(text string, now time.Time) (time.Time, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, "", domain.NewInputError("expiry", "no time given")
	}
	now = now.UTC()
	limit := now.AddDate(maxHorizonYears, 0, 0)
	tooFar := domain.NewInputError("expiry", fmt.Sprintf("time must be within %d years", maxHorizonYears))

	for _, layout := range absoluteLayouts {
		t, err := time.ParseInLocation(layout, text, time.UTC)
		if err != nil {
			continue
		}
		if !t.After(now) {
			return time.Time{}, "", domain.NewInputError("expiry", "time is in the past")
		}
		if t.After(limit) {
			return time.Time{}, "", tooFar
		}
		return t, t.Format(layout) + " UTC", nil
	}

	rest := text
	if len(rest) > 3 && strings.EqualFold(rest[:3], "in ") {
		rest = strings.TrimSpace(rest[3:])
	}

	at := now
	var parts []string
	for rest != "" {
		m := relativeToken.FindStringSubmatch(rest)
		if m == nil {
			return time.Time{}, "", domain.NewInputError("expiry", fmt.Sprintf("cannot read %q as a date or duration", text))
		}
		n, err := strconv.Atoi(m[1])
		if errors.Is(err, strconv.ErrRange) {
			return time.Time{}, "", tooFar
		}
		if err != nil || n <= 0 {
			return time.Time{}, "", domain.NewInputError("expiry", fmt.Sprintf("%q is not a positive amount", m[1]))
		}
		u, ok := lookupUnit(m[2])
		if !ok {
			return time.Time{}, "", domain.NewInputError("expiry", fmt.Sprintf("unknown unit %q", m[2]))
		}
		if u.months > 0 {
			if n > maxHorizonYears*12/u.months {
				return time.Time{}, "", tooFar
			}
			at = at.AddDate(0, n*u.months, 0)
		} else {
			if time.Duration(n) > horizon/u.dur {
				return time.Time{}, "", tooFar
			}
			at = at.Add(time.Duration(n) * u.dur)
		}
		parts = append(parts, plural(n, u.name))
		rest = rest[len(m[0]):]
	}
	if !at.After(now) {
		return time.Time{}, "", domain.NewInputError("expiry", "time must be in the future")
	}
	if at.After(limit) {
		return time.Time{}, "", tooFar
	}
	return at, strings.Join(parts, " "), nil
}

func lookupUnit(s string) (unit, bool) {
	switch s {
	case "M":
		return unitMonth, true
	case "m":
		return unitMinute, true
	}
	switch strings.ToLower(s) {
	case "s", "sec", "secs", "second", "seconds":
		return unitSecond, true
	case "min", "mins", "minute", "minutes":
		return unitMinute, true
	case "h", "hr", "hrs", "hour", "hours":
		return unitHour, true
	case "d", "day", "days":
		return unitDay, true
	case "w", "week", "weeks":
		return unitWeek, true
	case "month", "months":
		return unitMonth, true
	case "y", "yr", "yrs", "year", "years":
		return unitYear, true
	}
	return unit{}, false
}

func plural(n int, name string) string {
	if n == 1 {
		return "1 " + name
	}
	return strconv.Itoa(n) + " " + name + "s"
}
