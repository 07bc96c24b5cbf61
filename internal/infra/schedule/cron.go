// Package schedule computes cron fire times and publishes schedule events
// for due automations.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Validate reports whether expr is a parsable cron expression.
func Validate(expr string) error {
	_, err := parse(expr)
	return err
}

// Next returns the first fire time of expr strictly after from, evaluated in
// loc. The result is in UTC.
func Next(expr string, from time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	next := parsed.Next(from.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron %q never fires after %s", expr, from.Format(time.RFC3339))
	}
	return next.UTC(), nil
}

func parse(expr string) (*cronexpr.Expression, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	parsed, err := cronexpr.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", trimmed, err)
	}
	return parsed, nil
}
