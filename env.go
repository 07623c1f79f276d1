package staging

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Shared environment access. Every env read in the harness goes through these
// helpers so that alias keys (ENVIRONMENT vs TEST_ENV) resolve consistently.

func envString(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}

func envBool(fallback bool, keys ...string) bool {
	for _, key := range keys {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			continue
		}
		return parsed
	}
	return fallback
}

func envDuration(fallback time.Duration, keys ...string) time.Duration {
	for _, key := range keys {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			continue
		}
		return parsed
	}
	return fallback
}
