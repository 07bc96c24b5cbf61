package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hive/internal/domain"
)

// ConnectionFingerprint hashes the parts of a connection definition that
// determine its resolved value. Editing any of them changes the fingerprint.
func ConnectionFingerprint(conn domain.ToolConnection) string {
	sum := sha256.Sum256([]byte(conn.ID + "\x00" + conn.Source.InstanceID + "\x00" + conn.Source.Path + "\x00" + conn.Transform))
	return hex.EncodeToString(sum[:16])
}

// ResolvedETag returns an ETag for a resolution result and logs on failure.
func ResolvedETag(logger *zap.Logger, resolved domain.ResolvedConnections) string {
	return hashWithLogger(logger, "resolved_connections", func() (string, error) {
		values := make(map[domain.CacheKey]any, len(resolved.Values))
		for key, entry := range resolved.Values {
			values[key] = []any{entry.ConnectionID, entry.Status, entry.Value, entry.Error}
		}
		return hashJSON(values)
	})
}

// ElementsETag returns an ETag for an injected element list.
func ElementsETag(logger *zap.Logger, elements []*domain.ToolElement) string {
	return hashWithLogger(logger, "elements", func() (string, error) {
		return hashJSON(elements)
	})
}

func hashJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
