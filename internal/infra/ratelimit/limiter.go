// Package ratelimit decides whether automations may run and throttles
// inbound automation events.
package ratelimit

import (
	"fmt"
	"time"

	"hive/internal/domain"
)

// ReasonDisabled is reported for disabled automations.
const ReasonDisabled = "disabled"

// Decision is the outcome of a run-budget check. A refusal is not an error.
type Decision struct {
	CanRun bool   `json:"canRun"`
	Reason string `json:"reason,omitempty"`
}

// CanRunAutomation checks the automation against its effective limits.
// runsInCurrentPeriod must be counted from PeriodStart on the same clock as now.
func CanRunAutomation(automation domain.ToolAutomation, defaults domain.AutomationLimits, runsInCurrentPeriod int, now time.Time) Decision {
	if !automation.Enabled {
		return Decision{CanRun: false, Reason: ReasonDisabled}
	}
	limits := automation.EffectiveLimits(defaults)
	if limits.MaxRunsPerDay > 0 && runsInCurrentPeriod >= limits.MaxRunsPerDay {
		return Decision{
			CanRun: false,
			Reason: fmt.Sprintf("daily limit reached (%d/%d)", runsInCurrentPeriod, limits.MaxRunsPerDay),
		}
	}
	if cooldown := limits.Cooldown(); cooldown > 0 && automation.LastRun != nil {
		elapsed := now.Sub(*automation.LastRun)
		if elapsed < cooldown {
			remaining := (cooldown - elapsed).Round(time.Second)
			if remaining <= 0 {
				remaining = time.Second
			}
			return Decision{
				CanRun: false,
				Reason: fmt.Sprintf("cooldown active (%s remaining)", remaining),
			}
		}
	}
	return Decision{CanRun: true}
}

// PeriodStart returns local midnight of now's day in loc.
func PeriodStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// PeriodKey formats the period containing now as YYYY-MM-DD in loc.
func PeriodKey(now time.Time, loc *time.Location) string {
	return PeriodStart(now, loc).Format(time.DateOnly)
}
