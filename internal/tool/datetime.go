package tool

import (
	"context"
	"fmt"
	"time"
)

// DateTimeTool reports the current date and time, optionally in a named
// IANA time zone.
type DateTimeTool struct {
	now func() time.Time
}

func NewDateTimeTool() *DateTimeTool {
	return &DateTimeTool{now: time.Now}
}

func (t *DateTimeTool) Name() string { return "datetime" }
func (t *DateTimeTool) Description() string {
	return "Get the current date and time. Optionally pass an IANA timezone name like 'Europe/Berlin' or 'America/New_York'."
}
func (t *DateTimeTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"timezone": {Type: "string", Description: "IANA timezone name (defaults to local time)"},
		},
		nil,
	)
}

func (t *DateTimeTool) Execute(_ context.Context, args map[string]any) (string, error) {
	now := t.now()
	if tz := ArgsString(args, "timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", tz)
		}
		now = now.In(loc)
	}
	return now.Format("Monday, 2 January 2006 15:04:05 MST"), nil
}
