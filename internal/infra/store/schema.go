package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const (
	schemaVersion = 1

	metaBucketName        = "meta"
	toolsBucketName       = "tools"
	stateBucketName       = "shared_state"
	elementsBucketName    = "elements"
	connectionsBucketName = "connections"
	automationsBucketName = "automations"
	runsBucketName        = "automation_runs"
	outboxBucketName      = "notification_outbox"
	versionKey            = "version"
)

var topLevelBuckets = []string{
	metaBucketName,
	toolsBucketName,
	stateBucketName,
	elementsBucketName,
	connectionsBucketName,
	automationsBucketName,
	runsBucketName,
	outboxBucketName,
}

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range topLevelBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(metaBucketName))
		currentVersion := readSchemaVersion(meta)
		switch {
		case currentVersion == 0:
			return writeSchemaVersion(meta, schemaVersion)
		case currentVersion > schemaVersion:
			return fmt.Errorf("unsupported store schema version %d", currentVersion)
		case currentVersion < schemaVersion:
			return fmt.Errorf("missing migration path from %d to %d", currentVersion, schemaVersion)
		default:
			return nil
		}
	})
}

func readSchemaVersion(meta *bolt.Bucket) int {
	if meta == nil {
		return 0
	}
	raw := meta.Get([]byte(versionKey))
	if len(raw) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw))
}

func writeSchemaVersion(meta *bolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return meta.Put([]byte(versionKey), buf)
}
