package store

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"hive/internal/domain"
)

// Notify appends the notification to the outbox. Delivery is performed by an
// external sender draining the outbox.
func (s *Store) Notify(_ context.Context, notification domain.Notification) error {
	if err := requireID("notification", notification.ID); err != nil {
		return err
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now()
	}
	notification.CreatedAt = notification.CreatedAt.UTC()
	return s.update(func(tx *bolt.Tx) error {
		outbox := tx.Bucket([]byte(outboxBucketName))
		seq, err := outbox.NextSequence()
		if err != nil {
			return err
		}
		return putJSON(outbox, string(ledgerKey(notification.CreatedAt, seq)), notification)
	})
}

// ListNotifications returns queued notifications oldest first, optionally
// filtered by automation.
func (s *Store) ListNotifications(_ context.Context, automationID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(outboxBucketName)).ForEach(func(key, value []byte) error {
			var notification domain.Notification
			if err := decodeJSON(key, value, &notification); err != nil {
				return err
			}
			if automationID == "" || notification.AutomationID == automationID {
				out = append(out, notification)
			}
			return nil
		})
	})
	return out, err
}

var _ domain.Notifier = (*Store)(nil)
