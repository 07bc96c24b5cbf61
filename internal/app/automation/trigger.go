package automation

import (
	"strings"

	"hive/internal/domain"
)

// MatchTrigger reports whether the event fires the automation's trigger.
// Keyword triggers match case-insensitive substrings of the event text.
// Event triggers match the event name. Schedule events carry the id of the
// automation they are due for.
func MatchTrigger(automation domain.ToolAutomation, event domain.AutomationEvent) bool {
	if automation.Trigger == nil || event.Kind.TriggerType() != automation.TriggerType() {
		return false
	}
	switch trigger := automation.Trigger.(type) {
	case domain.KeywordTrigger:
		text := strings.ToLower(event.Text)
		if text == "" {
			return false
		}
		for _, keyword := range trigger.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(text, keyword) {
				return true
			}
		}
		return false
	case domain.EventTrigger:
		return trigger.Event != "" && trigger.Event == event.Name
	case domain.ScheduleTrigger:
		return event.Name == automation.ID
	default:
		return false
	}
}

// SampleEvent builds an event that the automation's trigger would accept,
// used by previews without an explicit trigger.
func SampleEvent(automation domain.ToolAutomation) domain.AutomationEvent {
	event := domain.AutomationEvent{
		SpaceID:      automation.SpaceID,
		DeploymentID: automation.DeploymentID,
	}
	switch trigger := automation.Trigger.(type) {
	case domain.KeywordTrigger:
		event.Kind = domain.EventKindMessage
		if len(trigger.Keywords) > 0 {
			event.Text = trigger.Keywords[0]
		}
	case domain.EventTrigger:
		event.Kind = domain.EventKindExternal
		event.Name = trigger.Event
	case domain.ScheduleTrigger:
		event.Kind = domain.EventKindSchedule
		event.Name = automation.ID
	}
	return event
}
