package domain

import (
	"strings"
	"time"
)

// ConnectionStatus is the terminal state of a resolution attempt.
type ConnectionStatus string

const (
	// ConnectionStatusConnected indicates the value was resolved.
	ConnectionStatusConnected ConnectionStatus = "connected"
	// ConnectionStatusError indicates resolution failed.
	ConnectionStatusError ConnectionStatus = "error"
)

// ConnectionSource addresses a value inside a producing tool's shared state.
type ConnectionSource struct {
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	Path       string `json:"path" yaml:"path"`
}

// ConnectionTarget addresses one injection point on a consuming tool.
type ConnectionTarget struct {
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	ElementID  string `json:"elementId" yaml:"elementId"`
	InputPath  string `json:"inputPath" yaml:"inputPath"`
}

// ToolConnection binds a source state path to a target element input.
type ToolConnection struct {
	ID        string           `json:"id" yaml:"id"`
	SpaceID   string           `json:"spaceId,omitempty" yaml:"spaceId"`
	Source    ConnectionSource `json:"source" yaml:"source"`
	Target    ConnectionTarget `json:"target" yaml:"target"`
	Transform string           `json:"transform,omitempty" yaml:"transform"`
	Enabled   bool             `json:"enabled" yaml:"enabled"`
}

// CacheKey returns the target-addressed cache key for the connection.
func (c ToolConnection) CacheKey() CacheKey {
	return NewCacheKey(c.Target.InstanceID, c.Target.ElementID, c.Target.InputPath)
}

// CacheKey is the composite key (instance, element, inputPath) of an injection point.
type CacheKey string

const (
	cacheKeySeparator = ':'
	cacheKeyEscape    = '\\'
)

// NewCacheKey builds a cache key from a target triple. A separator or escape
// inside a part is escaped, so distinct triples never share a key.
func NewCacheKey(instanceID, elementID, inputPath string) CacheKey {
	var b strings.Builder
	b.Grow(len(instanceID) + len(elementID) + len(inputPath) + 2)
	for i, part := range []string{instanceID, elementID, inputPath} {
		if i > 0 {
			b.WriteByte(cacheKeySeparator)
		}
		for j := 0; j < len(part); j++ {
			if c := part[j]; c == cacheKeySeparator || c == cacheKeyEscape {
				b.WriteByte(cacheKeyEscape)
			}
			b.WriteByte(part[j])
		}
	}
	return CacheKey(b.String())
}

// Parts splits the key back into its target triple. Missing trailing parts
// are empty; unescaped separators past the second stay in the input path.
func (k CacheKey) Parts() (instanceID, elementID, inputPath string) {
	var parts [3]strings.Builder
	idx := 0
	raw := string(k)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == cacheKeyEscape && i+1 < len(raw):
			i++
			parts[idx].WriteByte(raw[i])
		case c == cacheKeySeparator && idx < 2:
			idx++
		default:
			parts[idx].WriteByte(c)
		}
	}
	return parts[0].String(), parts[1].String(), parts[2].String()
}

// InstanceID returns the target instance id encoded in the key.
func (k CacheKey) InstanceID() string {
	id, _, _ := k.Parts()
	return id
}

// ResolvedConnection is the outcome of resolving one connection.
type ResolvedConnection struct {
	ConnectionID string           `json:"connectionId"`
	Status       ConnectionStatus `json:"status"`
	Value        any              `json:"value,omitempty"`
	Error        string           `json:"error,omitempty"`
	ResolvedAt   time.Time        `json:"resolvedAt"`
	TTL          time.Duration    `json:"ttl"`
	Cached       bool             `json:"cached,omitempty"`
}

// ResolvedConnections aggregates the resolution of every inbound connection.
type ResolvedConnections struct {
	Values     map[CacheKey]ResolvedConnection `json:"values"`
	ResolvedAt time.Time                       `json:"resolvedAt"`
	Count      int                             `json:"count"`
	ErrorCount int                             `json:"errorCount"`
}

// ToolMetadata describes a deployed tool instance.
type ToolMetadata struct {
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	Name       string `json:"name" yaml:"name"`
	SpaceID    string `json:"spaceId" yaml:"spaceId"`
	OwnerID    string `json:"ownerId,omitempty" yaml:"ownerId"`
}

// ConnectedFieldsKey is the config key recording which connection fed each input path.
const ConnectedFieldsKey = "_connectedFields"

// ToolElement is one configurable element of a tool instance.
type ToolElement struct {
	InstanceID string         `json:"instanceId" yaml:"instanceId"`
	ElementID  string         `json:"elementId" yaml:"elementId"`
	Type       string         `json:"type,omitempty" yaml:"type"`
	Config     map[string]any `json:"config" yaml:"config"`
}

// ResolveOptions tunes a resolution call.
type ResolveOptions struct {
	BypassCache bool
	TTL         time.Duration
}
