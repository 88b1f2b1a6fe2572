package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodStartDaily(t *testing.T) {
	at := time.Date(2024, 3, 14, 17, 45, 3, 0, time.UTC)

	start := PeriodStart(PeriodDaily, at)

	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), start)
}

func TestPeriodStartWeeklyIsMonday(t *testing.T) {
	// 2024-03-14 is a Thursday; its week starts Monday 2024-03-11.
	at := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	start := PeriodStart(PeriodWeekly, at)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestPeriodStartWeeklySundayBelongsToPriorMonday(t *testing.T) {
	at := time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC) // Sunday

	start := PeriodStart(PeriodWeekly, at)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), start)
}

func TestPeriodStartMonthly(t *testing.T) {
	at := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	start := PeriodStart(PeriodMonthly, at)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestPrevPeriodStart(t *testing.T) {
	daily := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), PrevPeriodStart(PeriodDaily, daily))

	weekly := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), PrevPeriodStart(PeriodWeekly, weekly))

	monthly := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), PrevPeriodStart(PeriodMonthly, monthly))
}
