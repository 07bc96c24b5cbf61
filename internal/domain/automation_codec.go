package domain

import (
	"encoding/json"
	"fmt"
)

type typeEnvelope struct {
	Type string `json:"type"`
}

// DecodeTrigger decodes a tagged trigger document.
func DecodeTrigger(raw json.RawMessage) (Trigger, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env typeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode trigger: %w", err)
	}
	switch TriggerType(env.Type) {
	case TriggerTypeKeyword:
		var t KeywordTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode keyword trigger: %w", err)
		}
		return t, nil
	case TriggerTypeEvent:
		var t EventTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode event trigger: %w", err)
		}
		return t, nil
	case TriggerTypeSchedule:
		var t ScheduleTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode schedule trigger: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q", env.Type)
	}
}

// EncodeTrigger encodes a trigger with its type discriminator.
func EncodeTrigger(t Trigger) (json.RawMessage, error) {
	if t == nil {
		return nil, nil
	}
	switch v := t.(type) {
	case KeywordTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
			KeywordTrigger
		}{v.Type(), v})
	case EventTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
			EventTrigger
		}{v.Type(), v})
	case ScheduleTrigger:
		return json.Marshal(struct {
			Type TriggerType `json:"type"`
			ScheduleTrigger
		}{v.Type(), v})
	default:
		return nil, fmt.Errorf("unsupported trigger %T", t)
	}
}

// DecodeAction decodes a tagged action document.
func DecodeAction(raw json.RawMessage) (Action, error) {
	var env typeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	switch ActionType(env.Type) {
	case ActionTypeNotify:
		var a NotifyAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode notify action: %w", err)
		}
		return a, nil
	case ActionTypeMutate:
		var a MutateAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode mutate action: %w", err)
		}
		return a, nil
	case ActionTypeTriggerTool:
		var a TriggerToolAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode triggerTool action: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}
}

// EncodeAction encodes an action with its type discriminator.
func EncodeAction(a Action) (json.RawMessage, error) {
	switch v := a.(type) {
	case NotifyAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			NotifyAction
		}{v.Type(), v})
	case MutateAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			MutateAction
		}{v.Type(), v})
	case TriggerToolAction:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
			TriggerToolAction
		}{v.Type(), v})
	default:
		return nil, fmt.Errorf("unsupported action %T", a)
	}
}

type automationAlias ToolAutomation

type automationDocument struct {
	automationAlias
	Trigger json.RawMessage   `json:"trigger,omitempty"`
	Actions []json.RawMessage `json:"actions"`
}

// MarshalJSON encodes the automation with tagged trigger and actions.
func (a ToolAutomation) MarshalJSON() ([]byte, error) {
	trigger, err := EncodeTrigger(a.Trigger)
	if err != nil {
		return nil, err
	}
	actions := make([]json.RawMessage, 0, len(a.Actions))
	for i, action := range a.Actions {
		raw, err := EncodeAction(action)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		actions = append(actions, raw)
	}
	return json.Marshal(automationDocument{
		automationAlias: automationAlias(a),
		Trigger:         trigger,
		Actions:         actions,
	})
}

// UnmarshalJSON decodes the automation, rejecting unknown trigger or action types.
func (a *ToolAutomation) UnmarshalJSON(data []byte) error {
	var doc automationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	trigger, err := DecodeTrigger(doc.Trigger)
	if err != nil {
		return err
	}
	actions := make([]Action, 0, len(doc.Actions))
	for i, raw := range doc.Actions {
		action, err := DecodeAction(raw)
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		actions = append(actions, action)
	}
	*a = ToolAutomation(doc.automationAlias)
	a.Trigger = trigger
	a.Actions = actions
	return nil
}
