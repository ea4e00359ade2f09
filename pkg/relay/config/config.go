// Package config loads the relay's runtime configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the relay's runtime configuration.
type Config struct {
	Addr string

	LogLevel  string // debug|info|warn|error
	LogFormat string // json|text

	// Provider credentials; empty means the provider is not configured.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Local model daemon.
	OllamaBaseURL string
	OllamaEnabled bool

	// Fallback order; names must be known provider families.
	ProviderChain []string

	// Persona file sent as the system prompt; empty means the built-in one.
	PersonaFile string

	// Session lifecycle.
	SessionIdleTimeout  time.Duration
	SessionReapInterval time.Duration

	// Provider health sweep.
	HealthCheckInterval time.Duration

	// Websocket behavior.
	WSWriteTimeout  time.Duration
	WSMaxFrameBytes int64

	// Voice collaborators; empty base URLs disable them.
	STTBaseURL  string
	STTAPIKey   string
	STTModel    string
	STTLanguage string
	TTSBaseURL  string
	TTSAPIKey   string
	TTSModel    string
	TTSVoice    string

	// Outbound HTTP client budget for provider and voice calls.
	UpstreamTimeout time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

var knownProviders = map[string]struct{}{
	"openai": {},
	"claude": {},
	"gemini": {},
	"ollama": {},
}

// LoadFromEnv reads configuration from RELAY_* environment variables,
// applying defaults and validating the result.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("RELAY_ADDR", ":8000"),
		LogLevel:            strings.ToLower(envOr("RELAY_LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(envOr("RELAY_LOG_FORMAT", "json")),
		OpenAIAPIKey:        envOr("OPENAI_API_KEY", ""),
		AnthropicAPIKey:     envOr("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:        envOr("GEMINI_API_KEY", ""),
		OllamaBaseURL:       envOr("RELAY_OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaEnabled:       envBoolOr("RELAY_OLLAMA_ENABLED", true),
		ProviderChain:       splitCSV(envOr("RELAY_PROVIDER_CHAIN", "openai,claude,gemini,ollama")),
		PersonaFile:         envOr("RELAY_PERSONA_FILE", ""),
		SessionIdleTimeout:  envDurationOr("RELAY_SESSION_IDLE_TIMEOUT", time.Hour),
		SessionReapInterval: envDurationOr("RELAY_SESSION_REAP_INTERVAL", 5*time.Minute),
		HealthCheckInterval: envDurationOr("RELAY_HEALTH_CHECK_INTERVAL", 5*time.Minute),
		WSWriteTimeout:      envDurationOr("RELAY_WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxFrameBytes:     envInt64Or("RELAY_WS_MAX_FRAME_BYTES", 8<<20), // 8 MiB
		STTBaseURL:          envOr("RELAY_STT_BASE_URL", ""),
		STTAPIKey:           envOr("RELAY_STT_API_KEY", ""),
		STTModel:            envOr("RELAY_STT_MODEL", ""),
		STTLanguage:         envOr("RELAY_STT_LANGUAGE", ""),
		TTSBaseURL:          envOr("RELAY_TTS_BASE_URL", ""),
		TTSAPIKey:           envOr("RELAY_TTS_API_KEY", ""),
		TTSModel:            envOr("RELAY_TTS_MODEL", ""),
		TTSVoice:            envOr("RELAY_TTS_VOICE", ""),
		UpstreamTimeout:     envDurationOr("RELAY_UPSTREAM_TIMEOUT", 60*time.Second),
		ReadHeaderTimeout:   envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("RELAY_LOG_LEVEL must be one of debug|info|warn|error")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return Config{}, fmt.Errorf("RELAY_LOG_FORMAT must be one of json|text")
	}
	if len(cfg.ProviderChain) == 0 {
		return Config{}, fmt.Errorf("RELAY_PROVIDER_CHAIN must name at least one provider")
	}
	for _, name := range cfg.ProviderChain {
		if _, ok := knownProviders[name]; !ok {
			return Config{}, fmt.Errorf("RELAY_PROVIDER_CHAIN has unknown provider %q", name)
		}
	}
	if cfg.SessionIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_SESSION_IDLE_TIMEOUT must be > 0")
	}
	if cfg.SessionReapInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_SESSION_REAP_INTERVAL must be > 0")
	}
	if cfg.HealthCheckInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_HEALTH_CHECK_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSMaxFrameBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_MAX_FRAME_BYTES must be > 0")
	}
	if cfg.UpstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// Credentials reports which providers have a key configured, for the health
// endpoint.
func (c Config) Credentials() map[string]bool {
	return map[string]bool{
		"openai": c.OpenAIAPIKey != "",
		"claude": c.AnthropicAPIKey != "",
		"gemini": c.GeminiAPIKey != "",
	}
}

// LoadPersona reads the persona prompt file. It reports false when the file
// is not configured or unreadable, in which case callers keep the built-in
// prompt.
func LoadPersona(path string) (string, bool) {
	if strings.TrimSpace(path) == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return "", false
	}
	return persona, true
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
