package automation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrBadSchedule = errors.New("invalid schedule parameters")

// Window is an allowed time-of-day range, inclusive on both ends.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether now's time-of-day falls inside the window.
func (w Window) Contains(now time.Time) bool {
	start, errS := parseClock(w.Start)
	end, errE := parseClock(w.End)
	if errS != nil || errE != nil {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	return m >= start && m <= end
}

// ScheduleParams carries the per-frequency schedule configuration. Weekly jobs
// use Weekdays, monthly jobs use MonthDays; the rest applies to all
// frequencies.
type ScheduleParams struct {
	// "HH:MM", 24-hour clock.
	TimeOfDay string `json:"time_of_day"`
	// Weekly only. 0 = Sunday. Empty means the default weekday.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	// Monthly only, 1-31. Empty means the 1st.
	MonthDays []int `json:"month_days,omitempty"`
	// When set, executions may only start inside one of these windows.
	Windows []Window `json:"windows,omitempty"`
	// 0 means unlimited.
	MaxExecutionsPerDay int `json:"max_executions_per_day,omitempty"`
}

// ParseScheduleParams decodes raw jsonb params and validates them against the
// frequency. Malformed params are a configuration error: the caller skips the
// job for the cycle instead of retrying it.
func ParseScheduleParams(freq Frequency, raw json.RawMessage) (ScheduleParams, error) {
	var p ScheduleParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return ScheduleParams{}, errors.Wrap(ErrBadSchedule, err.Error())
		}
	}
	if err := p.validate(freq); err != nil {
		return ScheduleParams{}, err
	}
	return p, nil
}

func (p ScheduleParams) validate(freq Frequency) error {
	switch freq {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
	default:
		return errors.Wrapf(ErrBadSchedule, "unknown frequency %q", freq)
	}

	if _, err := parseClock(p.TimeOfDay); err != nil {
		return errors.Wrapf(ErrBadSchedule, "time_of_day %q", p.TimeOfDay)
	}

	if freq == FrequencyWeekly {
		for _, d := range p.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return errors.Wrapf(ErrBadSchedule, "weekday %d out of range", d)
			}
		}
	}
	if freq == FrequencyMonthly {
		for _, d := range p.MonthDays {
			if d < 1 || d > 31 {
				return errors.Wrapf(ErrBadSchedule, "month day %d out of range", d)
			}
		}
	}

	for _, w := range p.Windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return errors.Wrapf(ErrBadSchedule, "window start %q", w.Start)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return errors.Wrapf(ErrBadSchedule, "window end %q", w.End)
		}
		if end < start {
			return errors.Wrapf(ErrBadSchedule, "window %s-%s ends before it starts", w.Start, w.End)
		}
	}

	if p.MaxExecutionsPerDay < 0 {
		return errors.Wrapf(ErrBadSchedule, "max_executions_per_day %d", p.MaxExecutionsPerDay)
	}
	return nil
}

// InAllowedWindow reports whether now may start an execution. No windows means
// always allowed.
func (p ScheduleParams) InAllowedWindow(now time.Time) bool {
	if len(p.Windows) == 0 {
		return true
	}
	for _, w := range p.Windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

// clockAt returns day's date at the given minutes-since-midnight, in day's
// location.
func clockAt(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
