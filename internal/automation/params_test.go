package automation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleParams(t *testing.T) {
	raw := json.RawMessage(`{"time_of_day":"10:30","weekdays":[1,5],"max_executions_per_day":2}`)
	p, err := ParseScheduleParams(FrequencyWeekly, raw)
	require.NoError(t, err)
	assert.Equal(t, "10:30", p.TimeOfDay)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, p.Weekdays)
	assert.Equal(t, 2, p.MaxExecutionsPerDay)
}

func TestParseScheduleParamsRejects(t *testing.T) {
	cases := []struct {
		name string
		freq Frequency
		raw  string
	}{
		{"unknown frequency", Frequency("hourly"), `{"time_of_day":"10:00"}`},
		{"missing time of day", FrequencyDaily, `{}`},
		{"malformed time of day", FrequencyDaily, `{"time_of_day":"25:00"}`},
		{"not json", FrequencyDaily, `{`},
		{"weekday out of range", FrequencyWeekly, `{"time_of_day":"10:00","weekdays":[7]}`},
		{"month day out of range", FrequencyMonthly, `{"time_of_day":"10:00","month_days":[0]}`},
		{"window ends before start", FrequencyDaily, `{"time_of_day":"10:00","windows":[{"start":"12:00","end":"09:00"}]}`},
		{"negative daily cap", FrequencyDaily, `{"time_of_day":"10:00","max_executions_per_day":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScheduleParams(tc.freq, json.RawMessage(tc.raw))
			assert.ErrorIs(t, err, ErrBadSchedule)
		})
	}
}

func TestInAllowedWindow(t *testing.T) {
	p := ScheduleParams{
		TimeOfDay: "10:00",
		Windows: []Window{
			{Start: "09:00", End: "11:30"},
			{Start: "14:00", End: "16:00"},
		},
	}

	assert.True(t, p.InAllowedWindow(at(2026, 8, 31, 10, 15)))
	assert.True(t, p.InAllowedWindow(at(2026, 8, 31, 14, 0)), "window start is inclusive")
	assert.True(t, p.InAllowedWindow(at(2026, 8, 31, 16, 0)), "window end is inclusive")
	assert.False(t, p.InAllowedWindow(at(2026, 8, 31, 12, 0)))
	assert.False(t, p.InAllowedWindow(at(2026, 8, 31, 20, 0)))

	open := ScheduleParams{TimeOfDay: "10:00"}
	assert.True(t, open.InAllowedWindow(at(2026, 8, 31, 3, 0)), "no windows means always allowed")
}
