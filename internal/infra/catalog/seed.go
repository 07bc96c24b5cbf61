package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"hive/internal/domain"
	"hive/internal/infra/schedule"
	"hive/internal/infra/transform"
)

// Seed is a fixture describing tools, their state and wiring.
type Seed struct {
	Tools       []SeedTool              `json:"tools"`
	Connections []domain.ToolConnection `json:"connections"`
	Automations []domain.ToolAutomation `json:"automations"`
}

// SeedTool is one tool instance with its optional state and elements.
type SeedTool struct {
	domain.ToolMetadata
	State    *domain.SharedState  `json:"state,omitempty"`
	Elements []domain.ToolElement `json:"elements,omitempty"`
}

// SeedWriter persists seed contents.
type SeedWriter interface {
	PutTool(ctx context.Context, tool domain.ToolMetadata) error
	PutSharedState(ctx context.Context, instanceID string, state domain.SharedState) (domain.SharedState, error)
	PutElement(ctx context.Context, element domain.ToolElement) error
	PutConnection(ctx context.Context, conn domain.ToolConnection) error
	SaveAutomation(ctx context.Context, automation domain.ToolAutomation) error
}

// SeedSummary counts what Apply wrote.
type SeedSummary struct {
	Tools       int `json:"tools"`
	States      int `json:"states"`
	Elements    int `json:"elements"`
	Connections int `json:"connections"`
	Automations int `json:"automations"`
}

// LoadSeed reads a YAML seed file, expanding ${ENV} references.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return Seed{}, errors.New("seed path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed data. Triggers and actions use the same
// type-tagged shape as the JSON API.
func ParseSeed(data []byte) (Seed, error) {
	expanded, _, err := expandConfigEnv(data)
	if err != nil {
		return Seed{}, err
	}
	var generic any
	if err := yaml.Unmarshal([]byte(expanded), &generic); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return Seed{}, fmt.Errorf("encode seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	if errs := seed.Validate(); len(errs) > 0 {
		return Seed{}, errors.New(strings.Join(errs, "; "))
	}
	return seed, nil
}

// Validate reports every problem in the seed.
func (s *Seed) Validate() []string {
	var errs []string
	tools := make(map[string]struct{}, len(s.Tools))
	for i, tool := range s.Tools {
		if strings.TrimSpace(tool.InstanceID) == "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: instanceId is required", i))
			continue
		}
		if _, dup := tools[tool.InstanceID]; dup {
			errs = append(errs, fmt.Sprintf("tools[%d]: duplicate instanceId %q", i, tool.InstanceID))
		}
		tools[tool.InstanceID] = struct{}{}
		for j, element := range tool.Elements {
			if strings.TrimSpace(element.ElementID) == "" {
				errs = append(errs, fmt.Sprintf("tools[%d].elements[%d]: elementId is required", i, j))
			}
		}
	}

	connections := make(map[string]struct{}, len(s.Connections))
	for i := range s.Connections {
		conn := &s.Connections[i]
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}
		if _, dup := connections[conn.ID]; dup {
			errs = append(errs, fmt.Sprintf("connections[%d]: duplicate id %q", i, conn.ID))
		}
		connections[conn.ID] = struct{}{}
		if conn.Source.InstanceID == "" || conn.Source.Path == "" {
			errs = append(errs, fmt.Sprintf("connections[%d]: source instanceId and path are required", i))
		}
		if conn.Target.InstanceID == "" || conn.Target.ElementID == "" || conn.Target.InputPath == "" {
			errs = append(errs, fmt.Sprintf("connections[%d]: target instanceId, elementId and inputPath are required", i))
		}
		if conn.Transform != "" {
			if err := transform.Validate(conn.Transform); err != nil {
				errs = append(errs, fmt.Sprintf("connections[%d]: %v", i, err))
			}
		}
	}

	for i := range s.Automations {
		automation := &s.Automations[i]
		if automation.ID == "" {
			automation.ID = uuid.NewString()
		}
		errs = append(errs, validateAutomation(*automation, fmt.Sprintf("automations[%d]", i))...)
	}
	return errs
}

func validateAutomation(automation domain.ToolAutomation, prefix string) []string {
	var errs []string
	if automation.DeploymentID == "" {
		errs = append(errs, prefix+": deploymentId is required")
	}
	switch trigger := automation.Trigger.(type) {
	case nil:
		errs = append(errs, prefix+": trigger is required")
	case domain.KeywordTrigger:
		if len(trigger.Keywords) == 0 {
			errs = append(errs, prefix+": keyword trigger needs at least one keyword")
		}
	case domain.EventTrigger:
		if trigger.Event == "" {
			errs = append(errs, prefix+": event trigger needs an event name")
		}
	case domain.ScheduleTrigger:
		if err := schedule.Validate(trigger.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	}
	for j, cond := range automation.Conditions {
		if !cond.Operator.Valid() {
			errs = append(errs, fmt.Sprintf("%s.conditions[%d]: unknown operator %q", prefix, j, cond.Operator))
		}
	}
	for j, action := range automation.Actions {
		if err := action.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s.actions[%d]: %v", prefix, j, err))
		}
	}
	return errs
}

// Apply writes the seed in dependency order: tools, state, elements,
// connections, automations.
func (s Seed) Apply(ctx context.Context, writer SeedWriter) (SeedSummary, error) {
	var summary SeedSummary
	for _, tool := range s.Tools {
		if err := writer.PutTool(ctx, tool.ToolMetadata); err != nil {
			return summary, fmt.Errorf("seed tool %s: %w", tool.InstanceID, err)
		}
		summary.Tools++
		if tool.State != nil {
			if _, err := writer.PutSharedState(ctx, tool.InstanceID, *tool.State); err != nil {
				return summary, fmt.Errorf("seed state %s: %w", tool.InstanceID, err)
			}
			summary.States++
		}
		for _, element := range tool.Elements {
			element.InstanceID = tool.InstanceID
			if err := writer.PutElement(ctx, element); err != nil {
				return summary, fmt.Errorf("seed element %s/%s: %w", tool.InstanceID, element.ElementID, err)
			}
			summary.Elements++
		}
	}
	for _, conn := range s.Connections {
		if err := writer.PutConnection(ctx, conn); err != nil {
			return summary, fmt.Errorf("seed connection %s: %w", conn.ID, err)
		}
		summary.Connections++
	}
	for _, automation := range s.Automations {
		if err := writer.SaveAutomation(ctx, automation); err != nil {
			return summary, fmt.Errorf("seed automation %s: %w", automation.ID, err)
		}
		summary.Automations++
	}
	return summary, nil
}
