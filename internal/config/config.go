// Package config loads runtime configuration from the environment,
// with a .env file picked up when present.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the CLI and server need at startup.
type Config struct {
	ListenAddr string
	DBPath     string
	ServerURL  string
	DataDir    string

	OpenAIKey       string
	OpenAIChatModel string
	OpenAILabel     string

	AnthropicKey       string
	AnthropicChatModel string
	AnthropicLabel     string

	DefaultProvider string

	SaveDebounce  time.Duration
	LabelDebounce time.Duration

	Debug bool
}

// Load reads the environment, applying defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	dataDir := envOr("JDC_DATA_DIR", filepath.Join(home, ".jdc"))

	return &Config{
		ListenAddr: envOr("JDC_LISTEN_ADDR", ":8787"),
		DBPath:     envOr("JDC_DB_PATH", filepath.Join(dataDir, "jdc.db")),
		ServerURL:  envOr("JDC_SERVER_URL", "http://localhost:8787"),
		DataDir:    dataDir,

		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel: envOr("JDC_OPENAI_CHAT_MODEL", "gpt-4o"),
		OpenAILabel:     envOr("JDC_OPENAI_LABEL_MODEL", "gpt-4o-mini"),

		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicChatModel: envOr("JDC_ANTHROPIC_CHAT_MODEL", "claude-sonnet-4-20250514"),
		AnthropicLabel:     envOr("JDC_ANTHROPIC_LABEL_MODEL", "claude-3-5-haiku-20241022"),

		DefaultProvider: envOr("JDC_PROVIDER", "openai"),

		SaveDebounce:  envDurationMs("JDC_SAVE_DEBOUNCE_MS", 2000),
		LabelDebounce: envDurationMs("JDC_LABEL_DEBOUNCE_MS", 500),

		Debug: os.Getenv("JDC_DEBUG") == "1",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationMs(key string, fallbackMs int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(fallbackMs) * time.Millisecond
}
