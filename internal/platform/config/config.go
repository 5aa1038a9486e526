// Package config builds process configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// env vars.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LedgerMode selects the ledger adapter at construction time. The choice is
// made exactly once, in cmd/server; business logic never branches on it.
type LedgerMode string

const (
	// LedgerModeRPC talks to the external ledger service over JSON-RPC.
	LedgerModeRPC LedgerMode = "rpc"
	// LedgerModeMemory is the explicit in-process ledger for development.
	// It is logged loudly at startup, never a silent fallback.
	LedgerModeMemory LedgerMode = "memory"
)

type Config struct {
	Addr          string
	PostgresDSN   string
	JWTSigningKey string

	LedgerMode        LedgerMode
	LedgerRPCURL      string
	LedgerCallTimeout time.Duration

	RedisURL string

	KafkaBrokers    []string
	AuditTopic      string
	AuditBufferSize int

	SweepInterval  time.Duration
	SweepBatchSize int

	CastRateLimit  int
	CastRateWindow time.Duration
}

// FromEnv reads configuration from environment variables with defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("BALLOTCORE_ADDR", ":8080"),
		PostgresDSN:       envOr("BALLOTCORE_POSTGRES_DSN", ""),
		JWTSigningKey:     envOr("BALLOTCORE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		LedgerMode:        LedgerMode(envOr("BALLOTCORE_LEDGER_MODE", string(LedgerModeRPC))),
		LedgerRPCURL:      envOr("BALLOTCORE_LEDGER_RPC_URL", "http://localhost:8545"),
		LedgerCallTimeout: envDurationOr("BALLOTCORE_LEDGER_CALL_TIMEOUT", 10*time.Second),
		RedisURL:          envOr("BALLOTCORE_REDIS_URL", ""),
		AuditTopic:        envOr("BALLOTCORE_AUDIT_TOPIC", "ballotcore.audit"),
		AuditBufferSize:   envIntOr("BALLOTCORE_AUDIT_BUFFER", 1024),
		SweepInterval:     envDurationOr("BALLOTCORE_SWEEP_INTERVAL", time.Minute),
		SweepBatchSize:    envIntOr("BALLOTCORE_SWEEP_BATCH", 100),
		CastRateLimit:     envIntOr("BALLOTCORE_CAST_RATE_LIMIT", 10),
		CastRateWindow:    envDurationOr("BALLOTCORE_CAST_RATE_WINDOW", time.Minute),
	}
	if brokers := os.Getenv("BALLOTCORE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
