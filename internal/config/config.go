package config

import (
	"os"
	"strings"
)

type Config struct {
	Port          string
	LogLevel      string
	DatabaseURL   string
	MigrationsDir string

	// Participant-side settings, read by the client binary only.
	ServerURL string
	StateDir  string
}

func Load() Config {
	cfg := Config{
		Port:          envOrDefault("SYNC_PARTY_PORT", "8088"),
		LogLevel:      envOrDefault("SYNC_PARTY_LOG_LEVEL", "info"),
		DatabaseURL:   envOrDefault("SYNC_PARTY_DATABASE_URL", "file:syncparty.db"),
		MigrationsDir: envOrDefault("SYNC_PARTY_MIGRATIONS_DIR", "migrations"),
		ServerURL:     envOrDefault("SYNC_PARTY_SERVER_URL", "http://localhost:8088"),
		StateDir:      envOrDefault("SYNC_PARTY_STATE_DIR", "."),
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
