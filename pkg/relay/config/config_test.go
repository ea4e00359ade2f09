package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearRelayEnv pins every variable LoadFromEnv reads so the ambient
// process environment cannot leak into assertions.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RELAY_ADDR", "RELAY_LOG_LEVEL", "RELAY_LOG_FORMAT",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"RELAY_OLLAMA_BASE_URL", "RELAY_OLLAMA_ENABLED",
		"RELAY_PROVIDER_CHAIN", "RELAY_PERSONA_FILE",
		"RELAY_SESSION_IDLE_TIMEOUT", "RELAY_SESSION_REAP_INTERVAL",
		"RELAY_HEALTH_CHECK_INTERVAL", "RELAY_WS_WRITE_TIMEOUT",
		"RELAY_WS_MAX_FRAME_BYTES",
		"RELAY_STT_BASE_URL", "RELAY_STT_API_KEY", "RELAY_STT_MODEL",
		"RELAY_STT_LANGUAGE", "RELAY_TTS_BASE_URL", "RELAY_TTS_API_KEY",
		"RELAY_TTS_MODEL", "RELAY_TTS_VOICE",
		"RELAY_UPSTREAM_TIMEOUT", "RELAY_READ_HEADER_TIMEOUT",
		"RELAY_SHUTDOWN_GRACE_PERIOD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearRelayEnv(t)
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.SessionIdleTimeout != time.Hour {
		t.Fatalf("SessionIdleTimeout = %v", cfg.SessionIdleTimeout)
	}
	if cfg.SessionReapInterval != 5*time.Minute {
		t.Fatalf("SessionReapInterval = %v", cfg.SessionReapInterval)
	}
	if len(cfg.ProviderChain) != 4 || cfg.ProviderChain[0] != "openai" {
		t.Fatalf("ProviderChain = %v", cfg.ProviderChain)
	}
	if !cfg.OllamaEnabled {
		t.Fatal("OllamaEnabled default should be true")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RELAY_ADDR", ":9999")
	t.Setenv("RELAY_PROVIDER_CHAIN", "claude, ollama")
	t.Setenv("RELAY_SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("RELAY_OLLAMA_ENABLED", "off")
	t.Setenv("OPENAI_API_KEY", "sk-x")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if len(cfg.ProviderChain) != 2 || cfg.ProviderChain[1] != "ollama" {
		t.Fatalf("ProviderChain = %v", cfg.ProviderChain)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Fatalf("SessionIdleTimeout = %v", cfg.SessionIdleTimeout)
	}
	if cfg.OllamaEnabled {
		t.Fatal("RELAY_OLLAMA_ENABLED=off not honored")
	}
	if creds := cfg.Credentials(); !creds["openai"] || creds["claude"] {
		t.Fatalf("Credentials = %v", creds)
	}
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"RELAY_LOG_LEVEL":        "loud",
		"RELAY_LOG_FORMAT":       "xml",
		"RELAY_PROVIDER_CHAIN":   "openai,skynet",
		"RELAY_WS_WRITE_TIMEOUT": "-1s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearRelayEnv(t)
			t.Setenv(key, value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("accepted %s=%s", key, value)
			}
		})
	}
}

func TestLoadPersona(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.txt")
	if err := os.WriteFile(path, []byte("  You are HAL.  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	persona, ok := LoadPersona(path)
	if !ok || persona != "You are HAL." {
		t.Fatalf("persona = %q ok=%v", persona, ok)
	}
	if _, ok := LoadPersona(filepath.Join(dir, "missing.txt")); ok {
		t.Fatal("missing file reported ok")
	}
	if _, ok := LoadPersona(""); ok {
		t.Fatal("empty path reported ok")
	}
}
