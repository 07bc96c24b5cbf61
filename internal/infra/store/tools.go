package store

import (
	"context"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"hive/internal/domain"
	"hive/internal/infra/pathutil"
)

// PutTool stores tool instance metadata.
func (s *Store) PutTool(_ context.Context, tool domain.ToolMetadata) error {
	if err := requireID("tool", tool.InstanceID); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket([]byte(toolsBucketName)), tool.InstanceID, tool)
	})
}

// GetToolMetadata returns nil when the instance is unknown.
func (s *Store) GetToolMetadata(_ context.Context, instanceID string) (*domain.ToolMetadata, error) {
	var tool domain.ToolMetadata
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket([]byte(toolsBucketName)), instanceID, &tool)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &tool, nil
}

// ListTools returns every tool in instance id order, optionally filtered by space.
func (s *Store) ListTools(_ context.Context, spaceID string) ([]domain.ToolMetadata, error) {
	var tools []domain.ToolMetadata
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(toolsBucketName)).ForEach(func(key, value []byte) error {
			var tool domain.ToolMetadata
			if err := decodeJSON(key, value, &tool); err != nil {
				return err
			}
			if spaceID == "" || tool.SpaceID == spaceID {
				tools = append(tools, tool)
			}
			return nil
		})
	})
	return tools, err
}

// PutSharedState writes the instance's shared state. The stored version is
// bumped past any previous version so it increases on every write.
func (s *Store) PutSharedState(_ context.Context, instanceID string, state domain.SharedState) (domain.SharedState, error) {
	if err := requireID("tool", instanceID); err != nil {
		return domain.SharedState{}, err
	}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucketName))
		var previous domain.SharedState
		found, err := getJSON(bucket, instanceID, &previous)
		if err != nil {
			return err
		}
		if found && state.Version <= previous.Version {
			state.Version = previous.Version + 1
		}
		if state.Version <= 0 {
			state.Version = 1
		}
		state.LastModified = s.now().UTC()
		return putJSON(bucket, instanceID, state)
	})
	return state, err
}

// GetToolSharedState returns nil when the instance has no state.
func (s *Store) GetToolSharedState(_ context.Context, instanceID string) (*domain.SharedState, error) {
	var state domain.SharedState
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket([]byte(stateBucketName)), instanceID, &state)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// PutElement stores one element config under its instance.
func (s *Store) PutElement(_ context.Context, element domain.ToolElement) error {
	if err := requireID("tool", element.InstanceID); err != nil {
		return err
	}
	if err := requireID("element", element.ElementID); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket([]byte(elementsBucketName)).CreateBucketIfNotExists([]byte(element.InstanceID))
		if err != nil {
			return fmt.Errorf("create element bucket: %w", err)
		}
		return putJSON(bucket, element.ElementID, element)
	})
}

// GetToolElements returns the instance's elements in element id order.
func (s *Store) GetToolElements(_ context.Context, instanceID string) ([]*domain.ToolElement, error) {
	var elements []*domain.ToolElement
	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(elementsBucketName)).Bucket([]byte(instanceID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			element := &domain.ToolElement{}
			if err := decodeJSON(key, value, element); err != nil {
				return err
			}
			if element.Config == nil {
				element.Config = map[string]any{}
			}
			elements = append(elements, element)
			return nil
		})
	})
	return elements, err
}

// MutateElement applies path->value updates to an element config in one
// transaction. Paths are applied in sorted order.
func (s *Store) MutateElement(_ context.Context, deploymentID, elementID string, mutation map[string]any) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(elementsBucketName)).Bucket([]byte(deploymentID))
		var element domain.ToolElement
		found, err := getJSON(bucket, elementID, &element)
		if err != nil {
			return err
		}
		if !found {
			return domain.E(domain.CodeNotFound, "store mutate element",
				fmt.Sprintf("element %s not found on %s", elementID, deploymentID), domain.ErrToolNotFound)
		}
		if element.Config == nil {
			element.Config = map[string]any{}
		}
		paths := make([]string, 0, len(mutation))
		for path := range mutation {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			if err := pathutil.Set(element.Config, path, mutation[path]); err != nil {
				return domain.E(domain.CodeInvalidArgument, "store mutate element", fmt.Sprintf("path %q: %v", path, err), domain.ErrInvalidRequest)
			}
		}
		return putJSON(bucket, elementID, element)
	})
}

var (
	_ domain.ElementRepository = (*Store)(nil)
	_ domain.StateMutator      = (*Store)(nil)
)
