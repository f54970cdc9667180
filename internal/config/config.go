package config

import (
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Defaults for the hosted realtime voice API and the text completion model.
const (
	DefaultRealtimeURL   = "wss://api.openai.com/v1/realtime"
	DefaultRealtimeModel = "gpt-4o-realtime-preview-2024-10-01"
	DefaultChatModel     = "gpt-4-0125-preview"
)

// Config contains runtime configuration and vendor selection.
type Config struct {
	// OpenAI surfaces used by the game client.
	OpenAIAPIKey  string `json:"-"`
	OpenAIBaseURL string `json:"openai_base_url"`
	RealtimeURL   string `json:"realtime_url"`
	RealtimeModel string `json:"realtime_model"`
	RealtimeToken string `json:"-"`
	ChatModel     string `json:"chat_model"`

	// Vendor keys for the gateway pipeline and the game's text mode,
	// e.g. "whisper", "ollama", "gemini", "openai", "piper".
	STTVendor string `json:"stt_vendor"`
	LLMVendor string `json:"llm_vendor"`
	TTSVendor string `json:"tts_vendor"`

	// Gateway server settings.
	GatewayAddr   string `json:"gateway_addr"`
	GatewaySecret string `json:"-"`
	DatabasePath  string `json:"database_path"`

	// Game client settings.
	LogPath       string `json:"log_path"`
	SpeechEnabled bool   `json:"speech_enabled"`

	// Generic map for vendor-specific settings
	VendorSettings map[string]map[string]string `json:"vendor_settings"`
}

// Load constructs a Config reading from environment variables, falling back
// to a .env file in the working directory when present. Supported env vars:
//
//	OPENAI_API_KEY, OPENAI_BASE_URL, REALTIME_URL, REALTIME_MODEL, CHAT_MODEL
//	REALTIME_TOKEN (session access token when REALTIME_URL is a gateway)
//	STT_VENDOR, LLM_VENDOR, TTS_VENDOR
//	GATEWAY_ADDR, GATEWAY_SECRET, DATABASE_PATH
//	OFFICESIM_LOG, OFFICESIM_SPEECH
//	WHISPER_ENDPOINT, OLLAMA_ENDPOINT, OLLAMA_MODEL, PIPER_ENDPOINT, GEMINI_API_KEY
//
// Additional vendor-specific variables may be added in the future.
func Load() *Config {
	cfg := &Config{
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		RealtimeURL:    getEnv("REALTIME_URL", DefaultRealtimeURL),
		RealtimeModel:  getEnv("REALTIME_MODEL", DefaultRealtimeModel),
		RealtimeToken:  getEnv("REALTIME_TOKEN", ""),
		ChatModel:      getEnv("CHAT_MODEL", DefaultChatModel),
		STTVendor:      getEnv("STT_VENDOR", "whisper"),
		LLMVendor:      getEnv("LLM_VENDOR", "ollama"),
		TTSVendor:      getEnv("TTS_VENDOR", "piper"),
		GatewayAddr:    getEnv("GATEWAY_ADDR", ":8091"),
		GatewaySecret:  getEnv("GATEWAY_SECRET", ""),
		DatabasePath:   getEnv("DATABASE_PATH", "data/officesim.db"),
		LogPath:        getEnv("OFFICESIM_LOG", "officesim.log"),
		SpeechEnabled:  getBool("OFFICESIM_SPEECH", true),
		VendorSettings: make(map[string]map[string]string),
	}

	// Well-known vendor overrides.
	cfg.setVendor("whisper", "endpoint", getEnv("WHISPER_ENDPOINT", ""))
	cfg.setVendor("ollama", "endpoint", getEnv("OLLAMA_ENDPOINT", ""))
	cfg.setVendor("ollama", "model", getEnv("OLLAMA_MODEL", ""))
	cfg.setVendor("piper", "endpoint", getEnv("PIPER_ENDPOINT", ""))
	cfg.setVendor("gemini", "api_key", getEnv("GEMINI_API_KEY", ""))
	cfg.setVendor("gemini", "model", getEnv("GEMINI_MODEL", ""))
	cfg.setVendor("openai", "api_key", cfg.OpenAIAPIKey)
	cfg.setVendor("openai", "base_url", cfg.OpenAIBaseURL)
	cfg.setVendor("openai", "model", cfg.ChatModel)

	return cfg
}

// Vendor returns the settings map for a vendor, or nil when none were set.
func (c *Config) Vendor(name string) map[string]string {
	if c == nil || c.VendorSettings == nil {
		return nil
	}
	return c.VendorSettings[name]
}

// SpeechConfigured reports whether a realtime backend is reachable in
// principle: either an API key for the hosted service, or a non-default
// realtime URL pointing at a self-hosted gateway.
func (c *Config) SpeechConfigured() bool {
	if !c.SpeechEnabled {
		return false
	}
	return c.OpenAIAPIKey != "" || c.RealtimeURL != DefaultRealtimeURL
}

func (c *Config) setVendor(vendor, key, val string) {
	if val == "" {
		return
	}
	if c.VendorSettings == nil {
		c.VendorSettings = make(map[string]map[string]string)
	}
	if _, ok := c.VendorSettings[vendor]; !ok {
		c.VendorSettings[vendor] = make(map[string]string)
	}
	c.VendorSettings[vendor][key] = val
}

func getEnv(key, def string) string {
	v, ok := lookupEnv(key)
	if !ok || v == "" {
		loadDotEnvOnce.Do(loadDotEnv)
		if v2, ok2 := lookupEnv(key); ok2 && v2 != "" {
			return v2
		}
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// lookupEnv is a thin wrapper over os.LookupEnv so tests can replace it if needed.
var lookupEnv = func(key string) (string, bool) { return os.LookupEnv(key) }

var loadDotEnvOnce sync.Once

// loadDotEnv merges a .env file from the working directory into the process
// environment without clobbering variables that are already set.
func loadDotEnv() {
	_ = godotenv.Load()
}
