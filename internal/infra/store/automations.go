package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"hive/internal/domain"
)

// SaveAutomation creates or replaces an automation definition.
func (s *Store) SaveAutomation(_ context.Context, automation domain.ToolAutomation) error {
	if err := requireID("automation", automation.ID); err != nil {
		return err
	}
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = s.now().UTC()
	}
	return s.update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket([]byte(automationsBucketName)), automation.ID, automation)
	})
}

// GetAutomation returns one automation or a NotFound error.
func (s *Store) GetAutomation(_ context.Context, automationID string) (domain.ToolAutomation, error) {
	var automation domain.ToolAutomation
	err := s.view(func(tx *bolt.Tx) error {
		return loadAutomation(tx, automationID, &automation)
	})
	return automation, err
}

func loadAutomation(tx *bolt.Tx, automationID string, out *domain.ToolAutomation) error {
	found, err := getJSON(tx.Bucket([]byte(automationsBucketName)), automationID, out)
	if err != nil {
		return err
	}
	if !found {
		return domain.E(domain.CodeNotFound, "store get automation",
			fmt.Sprintf("automation %s not found", automationID), domain.ErrAutomationNotFound)
	}
	return nil
}

func (s *Store) listAutomations(keep func(tx *bolt.Tx, automation domain.ToolAutomation) bool) ([]domain.ToolAutomation, error) {
	var out []domain.ToolAutomation
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(automationsBucketName)).ForEach(func(key, value []byte) error {
			var automation domain.ToolAutomation
			if err := decodeJSON(key, value, &automation); err != nil {
				return err
			}
			if keep(tx, automation) {
				out = append(out, automation)
			}
			return nil
		})
	})
	return out, err
}

// ListAutomations returns the automations attached to a deployment in id order.
func (s *Store) ListAutomations(_ context.Context, deploymentID string) ([]domain.ToolAutomation, error) {
	return s.listAutomations(func(_ *bolt.Tx, automation domain.ToolAutomation) bool {
		return automation.DeploymentID == deploymentID
	})
}

// ListSpaceAutomations returns automations whose deployment lives in the space.
func (s *Store) ListSpaceAutomations(_ context.Context, spaceID string) ([]domain.ToolAutomation, error) {
	return s.listAutomations(func(tx *bolt.Tx, automation domain.ToolAutomation) bool {
		if automation.SpaceID != "" {
			return automation.SpaceID == spaceID
		}
		var tool domain.ToolMetadata
		found, err := getJSON(tx.Bucket([]byte(toolsBucketName)), automation.DeploymentID, &tool)
		return err == nil && found && tool.SpaceID == spaceID
	})
}

// ListScheduledAutomations returns enabled automations with a schedule trigger.
func (s *Store) ListScheduledAutomations(_ context.Context) ([]domain.ToolAutomation, error) {
	return s.listAutomations(func(_ *bolt.Tx, automation domain.ToolAutomation) bool {
		return automation.Enabled && automation.TriggerType() == domain.TriggerTypeSchedule
	})
}

// RecordRun updates run statistics and appends to the run ledger in one
// transaction.
func (s *Store) RecordRun(_ context.Context, outcome domain.RunOutcome) error {
	at := outcome.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	return s.update(func(tx *bolt.Tx) error {
		var automation domain.ToolAutomation
		if err := loadAutomation(tx, outcome.AutomationID, &automation); err != nil {
			return err
		}
		automation.RunCount++
		automation.LastRun = &at
		automation.Stats.TimesTriggered++
		automation.Stats.LastTriggered = &at
		if outcome.Success {
			automation.Stats.SuccessCount++
		} else {
			automation.ErrorCount++
			automation.Stats.FailureCount++
		}
		if err := putJSON(tx.Bucket([]byte(automationsBucketName)), automation.ID, automation); err != nil {
			return err
		}

		ledger, err := tx.Bucket([]byte(runsBucketName)).CreateBucketIfNotExists([]byte(outcome.AutomationID))
		if err != nil {
			return fmt.Errorf("create run ledger: %w", err)
		}
		seq, err := ledger.NextSequence()
		if err != nil {
			return err
		}
		return putJSON(ledger, string(ledgerKey(at, seq)), runRecord{
			At:      at,
			Success: outcome.Success,
			Error:   outcome.Error,
		})
	})
}

type runRecord struct {
	At      time.Time `json:"at"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// ledgerKey sorts chronologically: big-endian unix nanos then sequence.
func ledgerKey(at time.Time, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

// RunsSince counts ledger entries at or after since.
func (s *Store) RunsSince(_ context.Context, automationID string, since time.Time) (int, error) {
	count := 0
	err := s.view(func(tx *bolt.Tx) error {
		ledger := tx.Bucket([]byte(runsBucketName)).Bucket([]byte(automationID))
		if ledger == nil {
			return nil
		}
		cursor := ledger.Cursor()
		for key, _ := cursor.Seek(ledgerKey(since.UTC(), 0)); key != nil; key, _ = cursor.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// PruneRuns drops ledger entries older than before and returns how many were removed.
func (s *Store) PruneRuns(_ context.Context, before time.Time) (int, error) {
	removed := 0
	limit := ledgerKey(before.UTC(), 0)
	err := s.update(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucketName))
		var names [][]byte
		if err := runs.ForEachBucket(func(name []byte) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			cursor := runs.Bucket(name).Cursor()
			for key, _ := cursor.First(); key != nil && bytes.Compare(key, limit) < 0; key, _ = cursor.First() {
				if err := cursor.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// SetNextRun records when a schedule automation is next due.
func (s *Store) SetNextRun(_ context.Context, automationID string, next time.Time) error {
	next = next.UTC()
	return s.update(func(tx *bolt.Tx) error {
		var automation domain.ToolAutomation
		if err := loadAutomation(tx, automationID, &automation); err != nil {
			return err
		}
		automation.NextRun = &next
		return putJSON(tx.Bucket([]byte(automationsBucketName)), automation.ID, automation)
	})
}

var _ domain.AutomationStore = (*Store)(nil)
