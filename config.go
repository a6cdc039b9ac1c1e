package searchsync

import (
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config carries deployment-level settings. Component defaults apply
// wherever a field is zero.
type Config struct {
	// BaseName prefixes every index name.
	BaseName string

	// QueueName is the Redis list the dispatcher and consumer share.
	QueueName string

	// RetryPause is the consumer's wait before its single retry.
	RetryPause time.Duration

	// SilentFail downgrades backend failures to logged-and-swallowed.
	SilentFail bool

	// Debug keeps schema conflicts loud even under SilentFail.
	Debug bool
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseName:   "search",
		QueueName:  DefaultQueueName,
		RetryPause: DefaultRetryPause,
	}
}

// ConfigFromEnv reads configuration from SEARCHSYNC_* environment
// variables, falling back to DefaultConfig per variable:
//
//   - SEARCHSYNC_BASE_NAME
//   - SEARCHSYNC_QUEUE_NAME
//   - SEARCHSYNC_RETRY_PAUSE_MS
//   - SEARCHSYNC_SILENT_FAIL ("true"/"false")
//   - SEARCHSYNC_DEBUG ("true"/"false")
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SEARCHSYNC_BASE_NAME"); v != "" {
		cfg.BaseName = v
	}
	if v := os.Getenv("SEARCHSYNC_QUEUE_NAME"); v != "" {
		cfg.QueueName = v
	}
	if ms := getEnvAsInt("SEARCHSYNC_RETRY_PAUSE_MS", 0); ms > 0 {
		cfg.RetryPause = time.Duration(ms) * time.Millisecond
	}
	cfg.SilentFail = getEnvAsBool("SEARCHSYNC_SILENT_FAIL", cfg.SilentFail)
	cfg.Debug = getEnvAsBool("SEARCHSYNC_DEBUG", cfg.Debug)
	return cfg
}

// RedisOptions returns redis.Options populated from standard
// environment variables with local-development defaults:
//
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_PASSWORD (default "")
//   - REDIS_DB (default 0)
//
// Construct redis.Options directly for cluster, sentinel or TLS
// setups.
func RedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsBool(key string, defaultVal bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal
	}
	return value
}
