package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGoLayout(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"YYYY-MM-dd HH:mm:ss", "2006-01-02 15:04:05"},
		{"yyyy/MM/DD", "2006/01/02"},
		{"YY-MM-dd", "06-01-02"},
		{"HH:mm:ss.SSS", "15:04:05.{ms}"},
		{"dddd", "Monday"},
		{"ddd", "Mon"},
		{"dddd HH:mm", "Monday 15:04"},
		// Untranslatable letter runs stay verbatim.
		{"Week dddd", "Week Monday"},
		{"time: HH:mm", "time: 15:04"},
		{"foobar", "foobar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toGoLayout(tt.format), "format: %q", tt.format)
	}
}

func runTimeTool(t *testing.T, name, args string) map[string]any {
	t.Helper()
	reg := NewRegistry(BuildTimeTools()...)
	raw := reg.Execute(context.Background(), name, args)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out), "raw: %s", raw)
	return out
}

func TestGetCurrentTimeDefaults(t *testing.T) {
	out := runTimeTool(t, "get_current_time", "{}")

	assert.Equal(t, "YYYY-MM-dd HH:mm:ss", out["format"])
	assert.Equal(t, "Asia/Shanghai", out["timezone"])
	assert.NotContains(t, out, "error")

	formatted, _ := out["formatted_time"].(string)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, formatted)

	weekdayIndex, ok := out["weekday_index"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, weekdayIndex, float64(1))
	assert.LessOrEqual(t, weekdayIndex, float64(7))
	assert.NotEmpty(t, out["weekday_cn"])
	assert.NotEmpty(t, out["weekday_en"])
}

func TestGetCurrentTimeMillisecondFormat(t *testing.T) {
	out := runTimeTool(t, "get_current_time", `{"format": "HH:mm:ss.SSS", "timezone": "UTC"}`)

	formatted, _ := out["formatted_time"].(string)
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{3}$`, formatted)
	assert.Equal(t, "UTC", out["timezone"])
}

func TestGetCurrentTimeInvalidTimezone(t *testing.T) {
	out := runTimeTool(t, "get_current_time", `{"timezone": "Mars/Olympus"}`)

	assert.Equal(t, "invalid timezone: Mars/Olympus", out["error"])
	assert.Equal(t, "Mars/Olympus", out["timezone"])
	assert.NotContains(t, out, "formatted_time")
}

func TestGetCurrentTimestamp(t *testing.T) {
	out := runTimeTool(t, "get_current_timestamp", "{}")

	seconds, ok := out["timestamp_seconds"].(float64)
	require.True(t, ok)
	millis, ok := out["timestamp_milliseconds"].(float64)
	require.True(t, ok)
	assert.InDelta(t, seconds*1000, millis, 1001)
	assert.Equal(t, "Asia/Shanghai", out["timezone"])
}

func TestGetCurrentTimestampInvalidTimezone(t *testing.T) {
	out := runTimeTool(t, "get_current_timestamp", `{"timezone": "Nowhere"}`)
	assert.Equal(t, "invalid timezone: Nowhere", out["error"])
}
