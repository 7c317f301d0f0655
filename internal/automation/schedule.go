package automation

import (
	"sort"
	"time"
)

// DefaultWeeklyWeekday applies when a weekly job configures no weekdays.
const DefaultWeeklyWeekday = time.Monday

const biweeklyIntervalDays = 14

// NextRunAfter computes the next eligible run instant strictly after now.
// It is deterministic for a given (job, params, now) and never reads the
// wall clock; callers pass now in.
func NextRunAfter(job *Job, p ScheduleParams, now time.Time) time.Time {
	tod, err := parseClock(p.TimeOfDay)
	if err != nil {
		// Params are validated before they reach here; keep a defined
		// result anyway.
		tod = 0
	}

	switch job.Frequency {
	case FrequencyWeekly:
		return nextWeekly(now, tod, p.Weekdays)
	case FrequencyBiweekly:
		return nextBiweekly(job.LastRunAt, now, tod)
	case FrequencyMonthly:
		return nextMonthly(now, tod, p.MonthDays)
	default:
		return nextDaily(now, tod)
	}
}

func nextDaily(now time.Time, tod int) time.Time {
	c := clockAt(now, tod)
	if c.After(now) {
		return c
	}
	return clockAt(now.AddDate(0, 0, 1), tod)
}

func nextWeekly(now time.Time, tod int, weekdays []time.Weekday) time.Time {
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{DefaultWeeklyWeekday}
	}

	// Today counts when its time-of-day has not passed yet; offset 7 covers
	// a single configured weekday whose time already passed today.
	for off := 0; off <= 7; off++ {
		day := now.AddDate(0, 0, off)
		if !containsWeekday(weekdays, day.Weekday()) {
			continue
		}
		c := clockAt(day, tod)
		if c.After(now) {
			return c
		}
	}
	return clockAt(now.AddDate(0, 0, 7), tod)
}

// nextBiweekly measures from the last run. An overdue job catches up tomorrow
// rather than snapping back to a fixed 14-day grid; a never-run job is seeded
// one day short of the interval so it becomes due promptly.
func nextBiweekly(lastRunAt *time.Time, now time.Time, tod int) time.Time {
	last := now.AddDate(0, 0, -(biweeklyIntervalDays - 1))
	if lastRunAt != nil {
		last = *lastRunAt
	}
	next := clockAt(last.AddDate(0, 0, biweeklyIntervalDays), tod)
	if next.After(now) {
		return next
	}
	return clockAt(now.AddDate(0, 0, 1), tod)
}

func nextMonthly(now time.Time, tod int, monthDays []int) time.Time {
	if len(monthDays) == 0 {
		monthDays = []int{1}
	}
	days := make([]int, len(monthDays))
	copy(days, monthDays)
	sort.Ints(days)

	// Scan the current month first, then roll forward. Thirteen months covers
	// a day-29 schedule across a non-leap February.
	for m := 0; m <= 13; m++ {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, m, 0)
		dim := daysInMonth(first)
		for _, d := range days {
			if d > dim {
				continue
			}
			c := time.Date(first.Year(), first.Month(), d, tod/60, tod%60, 0, 0, now.Location())
			if c.After(now) {
				return c
			}
		}
	}
	return clockAt(now.AddDate(0, 1, 0), tod)
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, w := range days {
		if w == d {
			return true
		}
	}
	return false
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
