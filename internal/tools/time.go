package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/fastflow/nexus/pkg/logger"
)

// ===================================
// Time tools
// ===================================

const (
	defaultTimezone   = "Asia/Shanghai"
	defaultTimeFormat = "YYYY-MM-dd HH:mm:ss"
	msPlaceholder     = "{ms}"
)

var weekdayCN = [7]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// Format tokens ordered longest-first so greedy matching picks dddd over dd.
var timeFormatTokens = []struct {
	token  string
	layout string
}{
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"SSS", msPlaceholder},
	{"sss", msPlaceholder},
	{"YYYY", "2006"},
	{"yyyy", "2006"},
	{"YY", "06"},
	{"yy", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"dd", "02"},
	{"HH", "15"},
	{"hh", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

var alphaSegmentRE = regexp.MustCompile(`[A-Za-z]+`)

// translateAlphaSegment converts one run of letters to a Go layout fragment.
// The run is converted only when it can be tokenized completely; otherwise it
// is kept verbatim so ordinary words are not mangled into date fields.
func translateAlphaSegment(segment string) string {
	var out strings.Builder
	index := 0
	for index < len(segment) {
		matched := ""
		layout := ""
		for _, t := range timeFormatTokens {
			if strings.HasPrefix(segment[index:], t.token) {
				matched = t.token
				layout = t.layout
				break
			}
		}
		if matched == "" {
			return segment
		}
		out.WriteString(layout)
		index += len(matched)
	}
	return out.String()
}

func toGoLayout(format string) string {
	return alphaSegmentRE.ReplaceAllStringFunc(format, translateAlphaSegment)
}

type currentTimeInput struct {
	Format   string `json:"format,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type currentTimestampInput struct {
	Timezone string `json:"timezone,omitempty"`
}

func weekdayFields(now time.Time) (int, string, string) {
	// ISO weekday: Monday=1 .. Sunday=7.
	isoWeekday := int(now.Weekday())
	if isoWeekday == 0 {
		isoWeekday = 7
	}
	return isoWeekday, weekdayCN[isoWeekday-1], now.Format("Monday")
}

func invalidTimezoneResult(tz string) map[string]any {
	return map[string]any{
		"error":    "invalid timezone: " + tz,
		"timezone": tz,
	}
}

// BuildTimeTools constructs the two time tools.
func BuildTimeTools() []Entry {
	currentTimeInfo := &schema.ToolInfo{
		Name: "get_current_time",
		Desc: "Get the current system time in a given format. timezone defaults to Asia/Shanghai and accepts IANA names (UTC, America/New_York). format supports tokens like YYYY-MM-dd, YYYY-MM-dd HH:mm:ss, YYYY/MM/dd HH:mm:ss.SSS, dddd (Monday), ddd (Mon); MM=month, dd=day, HH=hour (24h), mm=minute, ss=second, SSS/sss=milliseconds. Returns formatted_time, format, timezone, iso_time and weekday fields.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"format": {
				Type: "string",
				Desc: "Output format using the supported tokens. Defaults to YYYY-MM-dd HH:mm:ss.",
			},
			"timezone": {
				Type: "string",
				Desc: "IANA timezone name. Defaults to Asia/Shanghai.",
			},
		}),
	}
	currentTimeTool := utils.NewTool(currentTimeInfo, func(ctx context.Context, in *currentTimeInput) (map[string]any, error) {
		tz := strings.TrimSpace(in.Timezone)
		if tz == "" {
			tz = defaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			logx.Info().Str("timezone", tz).Msg("Tool get_current_time rejected timezone")
			return invalidTimezoneResult(tz), nil
		}
		now := time.Now().In(loc)

		format := strings.TrimSpace(in.Format)
		if format == "" {
			format = defaultTimeFormat
		}
		formatted := now.Format(toGoLayout(format))
		formatted = strings.ReplaceAll(formatted, msPlaceholder, fmt.Sprintf("%03d", now.Nanosecond()/1e6))

		weekdayIndex, cn, en := weekdayFields(now)
		return map[string]any{
			"formatted_time": formatted,
			"format":         format,
			"timezone":       tz,
			"iso_time":       now.Format(time.RFC3339Nano),
			"weekday_index":  weekdayIndex,
			"weekday_cn":     cn,
			"weekday_en":     en,
		}, nil
	})

	currentTimestampInfo := &schema.ToolInfo{
		Name: "get_current_timestamp",
		Desc: "Get the current Unix timestamp. timezone defaults to Asia/Shanghai and accepts IANA names (UTC, America/New_York). Returns timestamp_seconds, timestamp_milliseconds and timezone information.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"timezone": {
				Type: "string",
				Desc: "IANA timezone name. Defaults to Asia/Shanghai.",
			},
		}),
	}
	currentTimestampTool := utils.NewTool(currentTimestampInfo, func(ctx context.Context, in *currentTimestampInput) (map[string]any, error) {
		tz := strings.TrimSpace(in.Timezone)
		if tz == "" {
			tz = defaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			logx.Info().Str("timezone", tz).Msg("Tool get_current_timestamp rejected timezone")
			return invalidTimezoneResult(tz), nil
		}
		now := time.Now().In(loc)

		weekdayIndex, cn, en := weekdayFields(now)
		return map[string]any{
			"timestamp_seconds":      now.Unix(),
			"timestamp_milliseconds": now.UnixMilli(),
			"timezone":               tz,
			"iso_time":               now.Format(time.RFC3339Nano),
			"weekday_index":          weekdayIndex,
			"weekday_cn":             cn,
			"weekday_en":             en,
		}, nil
	})

	return []Entry{
		{Info: currentTimeInfo, Tool: currentTimeTool},
		{Info: currentTimestampInfo, Tool: currentTimestampTool},
	}
}
