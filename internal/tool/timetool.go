package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeTool answers time questions: the current time (optionally in a
// timezone), unix timestamps, timestamp conversion, and date differences.
type TimeTool struct {
	now func() time.Time // swappable for tests
}

func NewTimeTool() *TimeTool {
	return &TimeTool{now: time.Now}
}

func (t *TimeTool) Name() string { return "current_time" }
func (t *TimeTool) Description() string {
	return "Get the current date and time. Optionally convert to a timezone (e.g. Asia/Tokyo), show the unix timestamp, convert a timestamp to a date, or compute the difference to a target date (YYYY-MM-DD)."
}
func (t *TimeTool) Parameters() map[string]any {
	return Parameters(
		map[string]Param{
			"timezone":  {Type: "string", Description: "IANA timezone name, e.g. Asia/Tokyo or Europe/London"},
			"unix":      {Type: "boolean", Description: "Return the current unix timestamp"},
			"timestamp": {Type: "string", Description: "Unix timestamp (seconds or milliseconds) to convert to a date"},
			"diff":      {Type: "string", Description: "Target date (YYYY-MM-DD or RFC3339) to compute the difference to"},
		},
		nil,
	)
}

const timeLayout = "2006-01-02 15:04:05"

func (t *TimeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	now := t.now()

	if v, ok := args["unix"].(bool); ok && v {
		return fmt.Sprintf("Current unix timestamp: %d", now.Unix()), nil
	}

	if ts := ArgString(args, "timestamp"); ts != "" {
		return convertTimestamp(ts)
	}

	if target := ArgString(args, "diff"); target != "" {
		return dateDiff(now, target)
	}

	if tz := ArgString(args, "timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("invalid timezone %q (try Asia/Tokyo, America/New_York, Europe/London)", tz)
		}
		return fmt.Sprintf("%s: %s", tz, now.In(loc).Format(timeLayout)), nil
	}

	return fmt.Sprintf("Local time: %s (%s)\nUTC time:   %s",
		now.Format(timeLayout), now.Format("Monday"),
		now.UTC().Format(timeLayout)), nil
}

func convertTimestamp(raw string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q", raw)
	}
	// Values above ~1e12 are milliseconds.
	if n > 1_000_000_000_000 {
		n /= 1000
	}
	return time.Unix(n, 0).Format(timeLayout), nil
}

func dateDiff(now time.Time, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	target, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		target, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", raw)
		}
	}

	diff := target.Sub(now)
	past := diff < 0
	if past {
		diff = -diff
	}

	days := int(diff.Hours()) / 24
	hours := int(diff.Hours()) % 24
	minutes := int(diff.Minutes()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	}
	if days == 0 && minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minutes", minutes))
	}
	if len(parts) == 0 {
		parts = append(parts, "less than a minute")
	}

	if past {
		return fmt.Sprintf("%s was %s ago", target.Format(timeLayout), strings.Join(parts, " ")), nil
	}
	return fmt.Sprintf("%s is in %s", target.Format(timeLayout), strings.Join(parts, " ")), nil
}
