package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNextRunAfterDaily(t *testing.T) {
	job := &Job{Frequency: FrequencyDaily}
	p := ScheduleParams{TimeOfDay: "10:00"}

	// 2026-08-31 is a Monday.
	got := NextRunAfter(job, p, at(2026, 8, 31, 9, 0))
	assert.Equal(t, at(2026, 8, 31, 10, 0), got, "time of day still ahead today")

	got = NextRunAfter(job, p, at(2026, 8, 31, 11, 0))
	assert.Equal(t, at(2026, 9, 1, 10, 0), got, "time of day already passed")

	got = NextRunAfter(job, p, at(2026, 8, 31, 10, 0))
	assert.Equal(t, at(2026, 9, 1, 10, 0), got, "exactly at time of day rolls to tomorrow")
}

func TestNextRunAfterWeekly(t *testing.T) {
	job := &Job{Frequency: FrequencyWeekly}
	monday := ScheduleParams{TimeOfDay: "09:00", Weekdays: []time.Weekday{time.Monday}}

	// Wednesday 2026-09-02.
	got := NextRunAfter(job, monday, at(2026, 9, 2, 12, 0))
	assert.Equal(t, at(2026, 9, 7, 9, 0), got, "midweek jumps to next Monday")

	// Monday morning before the slot stays on today.
	got = NextRunAfter(job, monday, at(2026, 8, 31, 8, 0))
	assert.Equal(t, at(2026, 8, 31, 9, 0), got)

	// Monday after the slot rolls a full week.
	got = NextRunAfter(job, monday, at(2026, 8, 31, 9, 30))
	assert.Equal(t, at(2026, 9, 7, 9, 0), got)

	// Several weekdays: the nearest wins.
	mixed := ScheduleParams{TimeOfDay: "09:00", Weekdays: []time.Weekday{time.Friday, time.Tuesday}}
	got = NextRunAfter(job, mixed, at(2026, 9, 2, 12, 0))
	assert.Equal(t, at(2026, 9, 4, 9, 0), got, "Friday comes before next Tuesday")

	// No configured weekday falls back to the default.
	none := ScheduleParams{TimeOfDay: "09:00"}
	got = NextRunAfter(job, none, at(2026, 9, 2, 12, 0))
	assert.Equal(t, time.Monday, got.Weekday())
}

func TestNextRunAfterBiweekly(t *testing.T) {
	p := ScheduleParams{TimeOfDay: "10:00"}

	last := at(2026, 8, 1, 10, 0)
	job := &Job{Frequency: FrequencyBiweekly, LastRunAt: &last}

	got := NextRunAfter(job, p, at(2026, 8, 5, 12, 0))
	assert.Equal(t, at(2026, 8, 15, 10, 0), got, "14 days after the last run")

	// Overdue: catch up tomorrow instead of snapping to the 14-day grid.
	got = NextRunAfter(job, p, at(2026, 8, 20, 9, 0))
	assert.Equal(t, at(2026, 8, 21, 10, 0), got)

	// Never run: due promptly (tomorrow at the configured time).
	fresh := &Job{Frequency: FrequencyBiweekly}
	got = NextRunAfter(fresh, p, at(2026, 8, 31, 9, 0))
	assert.Equal(t, at(2026, 9, 1, 10, 0), got)
}

func TestNextRunAfterMonthly(t *testing.T) {
	job := &Job{Frequency: FrequencyMonthly}
	p := ScheduleParams{TimeOfDay: "08:00", MonthDays: []int{5, 20}}

	got := NextRunAfter(job, p, at(2026, 8, 10, 12, 0))
	assert.Equal(t, at(2026, 8, 20, 8, 0), got, "later day this month")

	got = NextRunAfter(job, p, at(2026, 8, 25, 12, 0))
	assert.Equal(t, at(2026, 9, 5, 8, 0), got, "rolls to next month")

	got = NextRunAfter(job, p, at(2026, 8, 5, 7, 0))
	assert.Equal(t, at(2026, 8, 5, 8, 0), got, "today's slot still ahead")

	// Day 31 skips short months.
	eom := ScheduleParams{TimeOfDay: "08:00", MonthDays: []int{31}}
	got = NextRunAfter(job, eom, at(2026, 9, 15, 12, 0))
	assert.Equal(t, at(2026, 10, 31, 8, 0), got)

	// No configured days default to the 1st.
	first := ScheduleParams{TimeOfDay: "08:00"}
	got = NextRunAfter(job, first, at(2026, 8, 10, 12, 0))
	assert.Equal(t, at(2026, 9, 1, 8, 0), got)
}

func TestNextRunAfterDeterministic(t *testing.T) {
	last := at(2026, 8, 1, 10, 0)
	jobs := []*Job{
		{Frequency: FrequencyDaily},
		{Frequency: FrequencyWeekly},
		{Frequency: FrequencyBiweekly, LastRunAt: &last},
		{Frequency: FrequencyMonthly},
	}
	p := ScheduleParams{TimeOfDay: "10:00", Weekdays: []time.Weekday{time.Thursday}, MonthDays: []int{15}}
	now := at(2026, 8, 31, 11, 0)

	for _, job := range jobs {
		a := NextRunAfter(job, p, now)
		b := NextRunAfter(job, p, now)
		require.Equal(t, a, b, "frequency %s", job.Frequency)
		require.True(t, a.After(now), "frequency %s: next run must be after now", job.Frequency)
	}
}
