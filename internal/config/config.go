// Package config loads demo2apk's environment-variable configuration once
// at process startup into a typed struct, per spec.md §6. Unrecognized
// environment variables are simply never read, so no explicit "ignore"
// step is needed.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable named in spec.md §6's configuration table.
type Config struct {
	Port string
	Host string

	BuildsDir   string
	UploadsDir  string
	RedisURL    string

	MaxFileSize int64

	RateLimitMax     int
	RateLimitWindow  time.Duration
	RateLimitEnabled bool

	WorkerConcurrency int

	// ShutdownTimeout bounds how long the worker waits for in-flight
	// builds to finish on a graceful shutdown signal before escalating to
	// an ungraceful one that cancels them. Zero (the default per spec.md
	// §4.4) disables the escalation entirely: graceful shutdown waits
	// however long it takes.
	ShutdownTimeout time.Duration

	FileRetentionHours int

	MockBuild bool

	LogLevel string

	// AuthToken, when non-empty, is the bearer token that unlocks the
	// authenticated per-client rate-limit quota (spec.md §3, §4.1).
	AuthToken string

	// ArchiveBackend selects the optional storage mirror exercised by the
	// sweeper before it deletes an expired artifact: "", "s3", "gcs", or
	// "azure". Empty means local-only, the default.
	ArchiveBackend      string
	ArchiveBucket       string
	ArchivePrefix       string
}

// Load reads the process environment into a Config, applying the defaults
// from spec.md §6 for anything unset.
func Load() (*Config, error) {
	c := &Config{
		Port:                getEnv("PORT", "3000"),
		Host:                getEnv("HOST", "0.0.0.0"),
		BuildsDir:           getEnv("BUILDS_DIR", "./builds"),
		UploadsDir:          getEnv("UPLOADS_DIR", filepath.Join(os.TempDir(), "demo2apk-uploads")),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 31457280),
		RateLimitMax:        getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 2),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 0),
		FileRetentionHours:  getEnvInt("FILE_RETENTION_HOURS", 2),
		MockBuild:           getEnvBool("MOCK_BUILD", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		AuthToken:           os.Getenv("AUTH_TOKEN"),
		ArchiveBackend:      os.Getenv("ARCHIVE_BACKEND"),
		ArchiveBucket:       os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:       getEnv("ARCHIVE_PREFIX", "demo2apk/"),
	}

	var err error
	c.BuildsDir, err = filepath.Abs(c.BuildsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving BUILDS_DIR: %w", err)
	}
	c.UploadsDir, err = filepath.Abs(c.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving UPLOADS_DIR: %w", err)
	}

	return c, nil
}

// RateLimitCapacity returns the request budget for a client within the
// window, depending on whether they presented a valid bearer token
// (spec.md §3: "capacity = 5 anonymous / 20 authenticated").
func (c *Config) RateLimitCapacity(authenticated bool) int {
	if authenticated {
		return 20
	}
	return c.RateLimitMax
}

// ArtifactRetention returns the queue-side retention (distinct from the
// on-disk FileRetentionHours) for a terminal job state.
func ArtifactRetention(failed bool) time.Duration {
	if failed {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// MaskedRedisURL returns RedisURL with any embedded password replaced by
// asterisks, for safe inclusion in startup logs (spec.md §6: "Credentials
// in connection strings are masked").
func MaskedRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	// Accept both Go duration syntax ("1h") and the human phrasing from
	// spec.md's table ("1 hour").
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(strings.ReplaceAll(v, " ", "")); err == nil {
		return d
	}
	fields := strings.Fields(v)
	if len(fields) == 2 {
		n, err := strconv.Atoi(fields[0])
		if err == nil {
			switch strings.TrimSuffix(strings.ToLower(fields[1]), "s") {
			case "hour":
				return time.Duration(n) * time.Hour
			case "minute":
				return time.Duration(n) * time.Minute
			case "second":
				return time.Duration(n) * time.Second
			}
		}
	}
	return def
}
