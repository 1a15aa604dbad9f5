package core

// dates.go turns form text into calendar values and computes ages.
//
// Dates of birth arrive as free text typed by registrants. Only the
// day/month/year order is accepted. The separator may be a space, a period
// or a hyphen, and each one is rewritten to "/" before a strict parse.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Layouts used by the signup export and by storage.
const (
	DateLayout      = "02/01/2006"
	TimestampLayout = "02/01/2006 15:04:05"
	ISODateLayout   = "2006-01-02"
)

var dateSeparators = regexp.MustCompile(`[ .-]`)

// ParseDate parses a date of birth in day/month/year order.
// Fails with ErrInvalidDateFormat for anything that does not fully match.
func ParseDate(s string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	if strings.Contains(trimmed, "/") {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	norm := dateSeparators.ReplaceAllString(trimmed, "/")

	t, err := time.Parse(DateLayout, norm)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return DateOf(t), nil
}

// ParseTimestamp parses a signup timestamp (DD/MM/YYYY HH:MM:SS) in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestampFormat, s)
	}
	return t, nil
}

// ParseISODate parses YYYY-MM-DD, the format used for race dates and storage.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDateFormat, s)
	}
	return DateOf(t), nil
}

// YearsBetween returns the number of whole years between two dates,
// whichever order they are given in.
//
// A February 29 anniversary in a year without one falls on March 1.
func YearsBetween(a, b Date) int {
	if b.Before(a) {
		a, b = b, a
	}

	anniversary := Date{Year: b.Year, Month: a.Month, Day: a.Day}
	if !isCalendarDate(anniversary) {
		anniversary = Date{Year: b.Year, Month: time.March, Day: 1}
	}

	years := b.Year - a.Year
	if b.Before(anniversary) {
		years--
	}
	return years
}

// isCalendarDate reports whether d names a real day.
func isCalendarDate(d Date) bool {
	return DateOf(d.Time()) == d
}
