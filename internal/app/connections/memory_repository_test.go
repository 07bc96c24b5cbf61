package connections

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hive/internal/domain"
)

// MemoryRepository is an in-memory domain.ConnectionRepository.
type MemoryRepository struct {
	mu          sync.RWMutex
	connections map[string]domain.ToolConnection
	states      map[string]domain.SharedState
	tools       map[string]domain.ToolMetadata
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		connections: make(map[string]domain.ToolConnection),
		states:      make(map[string]domain.SharedState),
		tools:       make(map[string]domain.ToolMetadata),
	}
}

func (r *MemoryRepository) PutConnection(conn domain.ToolConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID] = conn
}

func (r *MemoryRepository) PutState(instanceID string, state domain.SharedState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[instanceID] = state
}

func (r *MemoryRepository) PutTool(tool domain.ToolMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.InstanceID] = tool
}

func (r *MemoryRepository) GetIncomingConnections(_ context.Context, targetInstanceID, spaceID string) ([]domain.ToolConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ToolConnection
	for _, conn := range r.connections {
		if conn.Target.InstanceID != targetInstanceID {
			continue
		}
		if spaceID != "" && conn.SpaceID != "" && conn.SpaceID != spaceID {
			continue
		}
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetConnection(_ context.Context, connectionID string) (domain.ToolConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[connectionID]
	if !ok {
		return domain.ToolConnection{}, domain.E(domain.CodeNotFound, "memory get connection",
			fmt.Sprintf("connection %s not found", connectionID), domain.ErrConnectionNotFound)
	}
	return conn, nil
}

func (r *MemoryRepository) GetToolSharedState(_ context.Context, instanceID string) (*domain.SharedState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[instanceID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (r *MemoryRepository) GetToolMetadata(_ context.Context, instanceID string) (*domain.ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[instanceID]
	if !ok {
		return nil, nil
	}
	return &tool, nil
}

var _ domain.ConnectionRepository = (*MemoryRepository)(nil)
