// Package access decides who may manage a tool instance.
package access

import (
	"context"
	"strings"
	"sync"

	"hive/internal/domain"
)

// OwnerOrAdmin grants management to the tool owner and configured admins.
type OwnerOrAdmin struct {
	mu     sync.RWMutex
	admins map[string]struct{}
}

// NewOwnerOrAdmin creates a checker with the given admin users.
func NewOwnerOrAdmin(admins []string) *OwnerOrAdmin {
	c := &OwnerOrAdmin{}
	c.SetAdmins(admins)
	return c
}

// SetAdmins replaces the admin set.
func (c *OwnerOrAdmin) SetAdmins(admins []string) {
	set := make(map[string]struct{}, len(admins))
	for _, admin := range admins {
		if trimmed := strings.TrimSpace(admin); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	c.mu.Lock()
	c.admins = set
	c.mu.Unlock()
}

// CanManageTool implements domain.AccessChecker.
func (c *OwnerOrAdmin) CanManageTool(_ context.Context, userID string, tool domain.ToolMetadata) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	if tool.OwnerID != "" && tool.OwnerID == userID {
		return true, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.admins[userID]
	return ok, nil
}

var _ domain.AccessChecker = (*OwnerOrAdmin)(nil)
