// Package report aggregates transactions into summaries and net-flow series.
// All calendar arithmetic happens in a fixed civil offset from UTC so that day,
// week, month and year boundaries match the wall clock of the user rather than
// the server.
package report

import (
	"fmt"
	"time"
)

// DateLayout formats civil date keys.
const DateLayout = "2006-01-02"

// Calendar converts absolute instants to civil dates in a fixed offset and back.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for the given offset east of UTC.
func NewCalendar(offset time.Duration) Calendar {
	return Calendar{loc: time.FixedZone(zoneName(offset), int(offset/time.Second))}
}

func zoneName(offset time.Duration) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, h, m)
}

// Location is the fixed zone backing the calendar.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Civil returns t as seen on the civil clock.
func (c Calendar) Civil(t time.Time) time.Time {
	return t.In(c.Location())
}

// Midnight is the instant civil day year-month-day starts. Out-of-range
// fields are normalized the way time.Date does.
func (c Calendar) Midnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.Location())
}

// DateKey is the civil date of t formatted as YYYY-MM-DD.
func (c Calendar) DateKey(t time.Time) string {
	return c.Civil(t).Format(DateLayout)
}

// StartOfDay is civil midnight of the day containing now.
func (c Calendar) StartOfDay(now time.Time) time.Time {
	y, m, d := c.Civil(now).Date()
	return c.Midnight(y, m, d)
}

// StartOfWeek is civil midnight of the Monday on or before the day containing now.
func (c Calendar) StartOfWeek(now time.Time) time.Time {
	civil := c.Civil(now)
	back := int(civil.Weekday()) - 1
	if civil.Weekday() == time.Sunday {
		back = 6
	}
	y, m, d := civil.Date()
	return c.Midnight(y, m, d-back)
}

// StartOfMonth is civil midnight of the first day of the month containing now.
func (c Calendar) StartOfMonth(now time.Time) time.Time {
	y, m, _ := c.Civil(now).Date()
	return c.Midnight(y, m, 1)
}

// StartOfYear is civil midnight of January 1 of the year containing now.
func (c Calendar) StartOfYear(now time.Time) time.Time {
	return c.Midnight(c.Civil(now).Year(), time.January, 1)
}

// DaysIn reports the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ISOWeekday numbers days Monday=1 through Sunday=7.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
