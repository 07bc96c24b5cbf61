package app

import (
	"os"
	"strconv"
	"strings"
)

const (
	envMetricsEnabled = "HIVE_METRICS_ENABLED"
	envHealthzEnabled = "HIVE_HEALTHZ_ENABLED"
)

// envBoolOptional reads a boolean switch from the environment. Unset or
// unparsable values report ok=false.
func envBoolOptional(key string) (value bool, ok bool) {
	raw, set := os.LookupEnv(key)
	if !set {
		return false, false
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return parsed, true
}
