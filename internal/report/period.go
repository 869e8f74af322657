package report

import "time"

// Period selects the lower bound of a summary.
type Period int

const (
	// AllTime has no lower bound. Unrecognized period names map to it.
	AllTime Period = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var periodNames = map[string]Period{
	"daily":   Daily,
	"weekly":  Weekly,
	"monthly": Monthly,
	"yearly":  Yearly,
}

// ParsePeriod maps a period name to a Period. Unknown names yield AllTime.
func ParsePeriod(name string) Period {
	if p, ok := periodNames[name]; ok {
		return p
	}
	return AllTime
}

func (p Period) String() string {
	switch p {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	case AllTime:
		return "all"
	}
	return "all"
}

// Boundary is the earliest instant included in period p at now. ok is false
// when the period has no lower bound.
func (c Calendar) Boundary(p Period, now time.Time) (start time.Time, ok bool) {
	switch p {
	case Daily:
		return c.StartOfDay(now), true
	case Weekly:
		return c.StartOfWeek(now), true
	case Monthly:
		return c.StartOfMonth(now), true
	case Yearly:
		return c.StartOfYear(now), true
	case AllTime:
		return time.Time{}, false
	}
	return time.Time{}, false
}
