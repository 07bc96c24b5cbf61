package store

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"hive/internal/domain"
)

// PutConnection creates or replaces a connection definition.
func (s *Store) PutConnection(_ context.Context, conn domain.ToolConnection) error {
	if err := requireID("connection", conn.ID); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket([]byte(connectionsBucketName)), conn.ID, conn)
	})
}

// DeleteConnection removes a connection definition.
func (s *Store) DeleteConnection(_ context.Context, connectionID string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(connectionsBucketName)).Delete([]byte(connectionID))
	})
}

// GetConnection returns one connection or a NotFound error.
func (s *Store) GetConnection(_ context.Context, connectionID string) (domain.ToolConnection, error) {
	var conn domain.ToolConnection
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket([]byte(connectionsBucketName)), connectionID, &conn)
		return err
	})
	if err != nil {
		return domain.ToolConnection{}, err
	}
	if !found {
		return domain.ToolConnection{}, domain.E(domain.CodeNotFound, "store get connection",
			fmt.Sprintf("connection %s not found", connectionID), domain.ErrConnectionNotFound)
	}
	return conn, nil
}

// GetIncomingConnections lists connections targeting the instance in id
// order. Disabled connections are included; callers filter them. A
// connection without a space matches any space.
func (s *Store) GetIncomingConnections(_ context.Context, targetInstanceID, spaceID string) ([]domain.ToolConnection, error) {
	var out []domain.ToolConnection
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(connectionsBucketName)).ForEach(func(key, value []byte) error {
			var conn domain.ToolConnection
			if err := decodeJSON(key, value, &conn); err != nil {
				return err
			}
			if conn.Target.InstanceID != targetInstanceID {
				return nil
			}
			if spaceID != "" && conn.SpaceID != "" && conn.SpaceID != spaceID {
				return nil
			}
			out = append(out, conn)
			return nil
		})
	})
	return out, err
}

// ListConnections returns every stored connection in id order.
func (s *Store) ListConnections(_ context.Context) ([]domain.ToolConnection, error) {
	var out []domain.ToolConnection
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(connectionsBucketName)).ForEach(func(key, value []byte) error {
			var conn domain.ToolConnection
			if err := decodeJSON(key, value, &conn); err != nil {
				return err
			}
			out = append(out, conn)
			return nil
		})
	})
	return out, err
}

var _ domain.ConnectionRepository = (*Store)(nil)
