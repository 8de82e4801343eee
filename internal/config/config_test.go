package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8787", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:8787", cfg.ServerURL)
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, 2000*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, 500*time.Millisecond, cfg.LabelDebounce)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JDC_LISTEN_ADDR", ":9999")
	t.Setenv("JDC_SAVE_DEBOUNCE_MS", "250")
	t.Setenv("JDC_PROVIDER", "anthropic")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
}

func TestLoadIgnoresBadDuration(t *testing.T) {
	t.Setenv("JDC_LABEL_DEBOUNCE_MS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 500*time.Millisecond, cfg.LabelDebounce)
}
