// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/signproxy/internal/signature"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// AccessKey is the gateway's copy of the shared secret that callers sign
	// with. Provisioned out of band; never logged.
	AccessKey string

	// SecretKey seals the stored API key at rest. Nil stores it unsealed.
	SecretKey []byte

	Algorithm          signature.Algorithm
	MaxSkew            time.Duration
	ArtifactQuotaBytes int64
}

// Load reads configuration from environment variables and returns a validated Config.
// SIGNPROXY_ACCESS_KEY is required. Optional variables with defaults:
// SIGNPROXY_LISTEN_ADDR (127.0.0.1:8080), SIGNPROXY_DB_PATH (signproxy.db),
// SIGNPROXY_HASH (sha256), SIGNPROXY_MAX_SKEW (one signature bucket, 100s),
// SIGNPROXY_ARTIFACT_QUOTA_BYTES (0, unlimited), SIGNPROXY_SECRET_KEY (unset).
func Load() (*Config, error) {
	accessKey := os.Getenv("SIGNPROXY_ACCESS_KEY")
	if accessKey == "" {
		return nil, fmt.Errorf("SIGNPROXY_ACCESS_KEY is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SIGNPROXY_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "signproxy.db"
	if v, ok := os.LookupEnv("SIGNPROXY_DB_PATH"); ok {
		dbPath = v
	}

	alg, err := signature.ParseAlgorithm(os.Getenv("SIGNPROXY_HASH"))
	if err != nil {
		return nil, fmt.Errorf("SIGNPROXY_HASH: %w", err)
	}

	// Default to one bucket of the current clock, 100s for 13-digit timestamps.
	maxSkew := signature.Width(signature.Now(time.Now()))
	if v, ok := os.LookupEnv("SIGNPROXY_MAX_SKEW"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SIGNPROXY_MAX_SKEW has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("SIGNPROXY_MAX_SKEW must not be negative, got %s", parsed)
		}
		maxSkew = parsed
	}

	var quota int64
	if v, ok := os.LookupEnv("SIGNPROXY_ARTIFACT_QUOTA_BYTES"); ok && v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("SIGNPROXY_ARTIFACT_QUOTA_BYTES must be a non-negative integer, got %q", v)
		}
		quota = parsed
	}

	var secretKey []byte
	if v := os.Getenv("SIGNPROXY_SECRET_KEY"); v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SIGNPROXY_SECRET_KEY must be 64 hex characters: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("SIGNPROXY_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ListenAddr:         listenAddr,
		DBPath:             dbPath,
		AccessKey:          accessKey,
		SecretKey:          secretKey,
		Algorithm:          alg,
		MaxSkew:            maxSkew,
		ArtifactQuotaBytes: quota,
	}, nil
}
