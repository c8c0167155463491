// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClioClientID     string
	ClioClientSecret string
	ClioRedirectURI  string
	SecretKey        []byte // 32-byte AES key for credential encryption at rest.
	ResyncPolicy     model.ResyncPolicy
	MaxAttempts      int
	HTTPTimeout      time.Duration
	ListenAddr       string
	DBPath           string
}

// Load reads configuration from environment variables and returns a
// validated Config. Required: INTAKESYNC_CLIO_CLIENT_ID,
// INTAKESYNC_CLIO_CLIENT_SECRET, INTAKESYNC_CLIO_REDIRECT_URI,
// INTAKESYNC_SECRET_KEY (64 hex chars). Optional with defaults:
// INTAKESYNC_RESYNC_POLICY (new-matter), INTAKESYNC_MAX_ATTEMPTS (3),
// INTAKESYNC_HTTP_TIMEOUT (30s), INTAKESYNC_LISTEN_ADDR (127.0.0.1:8080),
// INTAKESYNC_DB_PATH (intakesync.db).
func Load() (*Config, error) {
	clientID := os.Getenv("INTAKESYNC_CLIO_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("INTAKESYNC_CLIO_CLIENT_ID is required")
	}
	clientSecret := os.Getenv("INTAKESYNC_CLIO_CLIENT_SECRET")
	if clientSecret == "" {
		return nil, fmt.Errorf("INTAKESYNC_CLIO_CLIENT_SECRET is required")
	}
	redirectURI := os.Getenv("INTAKESYNC_CLIO_REDIRECT_URI")
	if redirectURI == "" {
		return nil, fmt.Errorf("INTAKESYNC_CLIO_REDIRECT_URI is required")
	}

	keyHex := os.Getenv("INTAKESYNC_SECRET_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("INTAKESYNC_SECRET_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("INTAKESYNC_SECRET_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("INTAKESYNC_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}

	policy := model.ResyncNewMatter
	if v, ok := os.LookupEnv("INTAKESYNC_RESYNC_POLICY"); ok {
		policy = model.ResyncPolicy(v)
		if !model.ValidResyncPolicy(policy) {
			return nil, fmt.Errorf("INTAKESYNC_RESYNC_POLICY has invalid value %q", v)
		}
	}

	maxAttempts := 3
	if v, ok := os.LookupEnv("INTAKESYNC_MAX_ATTEMPTS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("INTAKESYNC_MAX_ATTEMPTS has invalid value %q", v)
		}
		maxAttempts = parsed
	}

	httpTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("INTAKESYNC_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("INTAKESYNC_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		httpTimeout = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("INTAKESYNC_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "intakesync.db"
	if v, ok := os.LookupEnv("INTAKESYNC_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		ClioClientID:     clientID,
		ClioClientSecret: clientSecret,
		ClioRedirectURI:  redirectURI,
		SecretKey:        key,
		ResyncPolicy:     policy,
		MaxAttempts:      maxAttempts,
		HTTPTimeout:      httpTimeout,
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
	}, nil
}
