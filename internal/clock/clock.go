package clock

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock supplies "now" and "today" in the configured reporting zone.
// NowFunc is injectable for tests, mirroring how the engine receives it.
type Clock struct {
	Loc     *time.Location
	NowFunc func() time.Time
}

// New builds a Clock for the named IANA zone, defaulting to UTC.
func New(zone string) (Clock, error) {
	if zone == "" {
		return Clock{Loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("load time zone %s: %w", zone, err)
	}
	return Clock{Loc: loc}, nil
}

func (c Clock) location() *time.Location {
	if c.Loc != nil {
		return c.Loc
	}
	return time.UTC
}

func (c Clock) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc().In(c.location())
	}
	return time.Now().In(c.location())
}

// Today is the current calendar date in the configured zone.
func (c Clock) Today() string {
	return c.Now().Format(DateLayout)
}

// ParseDate validates a YYYY-MM-DD string.
func (c Clock) ParseDate(s string) (string, error) {
	t, err := time.ParseInLocation(DateLayout, s, c.location())
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Format(DateLayout), nil
}

// DayStart is midnight of the given date in the configured zone.
func (c Clock) DayStart(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, c.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// DayEnd is the exclusive upper bound of the date: midnight of the next
// day. Using an exclusive bound keeps day-splitting exact to the second.
func (c Clock) DayEnd(date string) (time.Time, error) {
	start, err := c.DayStart(date)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, 1), nil
}

// NextDay advances a date by one calendar day.
func (c Clock) NextDay(date string) (string, error) {
	start, err := c.DayStart(date)
	if err != nil {
		return "", err
	}
	return start.AddDate(0, 0, 1).Format(DateLayout), nil
}

// DateOf converts an instant to its calendar date in the configured zone.
func (c Clock) DateOf(t time.Time) string {
	return t.In(c.location()).Format(DateLayout)
}

// DaysBetween enumerates every date in [from, to] inclusive.
func (c Clock) DaysBetween(from, to string) ([]string, error) {
	start, err := c.DayStart(from)
	if err != nil {
		return nil, err
	}
	end, err := c.DayStart(to)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}
