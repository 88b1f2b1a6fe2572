package stats

import "time"

// Period identifies one of the rolling time buckets.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var allPeriods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}

// PeriodStart truncates t to the bucket key: the day itself, the Monday of
// its week, or the first of its month.
func PeriodStart(p Period, t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch p {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// PrevPeriodStart returns the key of the bucket immediately before start.
func PrevPeriodStart(p Period, start time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, -7)
	case PeriodMonthly:
		return start.AddDate(0, -1, 0)
	default:
		return start.AddDate(0, 0, -1)
	}
}
