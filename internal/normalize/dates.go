package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	minPlausibleYear = 1800
	maxPlausibleYear = 2100
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Jan. 2, 2006",
	"January 2006",
	"Jan 2006",
	"2006-01",
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// Date coerces ISO strings, free-text dates, bare years (numeric or string),
// and time values to a UTC calendar date. Unparseable text falls back to the
// first plausible four-digit year, mapped to January 1.
func Date(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return calendarDate(d.Year(), d.Month(), d.Day()), true
	case string:
		return parseDateString(d)
	case []byte:
		return parseDateString(string(d))
	default:
		f, ok := numeric(v)
		if !ok {
			return time.Time{}, false
		}
		return yearDate(f)
	}
}

func parseDateString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDate(t.Year(), t.Month(), t.Day()), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return yearDate(f)
	}
	for _, candidate := range yearPattern.FindAllString(s, -1) {
		year, err := strconv.Atoi(candidate)
		if err == nil && year >= minPlausibleYear && year <= maxPlausibleYear {
			return calendarDate(year, time.January, 1), true
		}
	}
	return time.Time{}, false
}

func yearDate(f float64) (time.Time, bool) {
	if f < minPlausibleYear || f > maxPlausibleYear || f != f {
		return time.Time{}, false
	}
	return calendarDate(int(f), time.January, 1), true
}

func calendarDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateKey is the deterministic date-dimension key: year*10000 + month*100 + day.
func DateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// Quarter returns 1–4 for the date's month.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
