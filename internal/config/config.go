package config

import (
	"os"
	"strconv"
)

// Config carries environment-level settings. Per-run knobs (paths, tags,
// flush cadence) are CLI flags, not environment.
type Config struct {
	LogLevel       string
	DatabaseURL    string // Postgres apply target
	SQLitePath     string // sqlite apply target
	NatsURL        string // optional progress events broker
	Model          string // model attribution stamped on imported messages
	ModelName      string
	UploadsDir     string
	MediaURLPrefix string
	FlushEvery     int
}

func Load() Config {
	return Config{
		LogLevel:       envStr("LOG_LEVEL", "info"),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		SQLitePath:     envStr("WEBUI_DB", ""),
		NatsURL:        envStr("NATS_URL", ""),
		Model:          envStr("CHATPORT_MODEL", "openai/GPT-5"),
		ModelName:      envStr("CHATPORT_MODEL_NAME", "OpenAI: GPT-5"),
		UploadsDir:     envStr("CHATPORT_UPLOADS_DIR", "uploads"),
		MediaURLPrefix: envStr("CHATPORT_MEDIA_PREFIX", "media"),
		FlushEvery:     envInt("CHATPORT_FLUSH_EVERY", 25),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
