package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable Load reads so ambient developer
// environments cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "REALTIME_URL", "REALTIME_MODEL",
		"REALTIME_TOKEN", "CHAT_MODEL", "STT_VENDOR", "LLM_VENDOR", "TTS_VENDOR",
		"GATEWAY_ADDR", "GATEWAY_SECRET", "DATABASE_PATH",
		"OFFICESIM_LOG", "OFFICESIM_SPEECH",
		"WHISPER_ENDPOINT", "OLLAMA_ENDPOINT", "OLLAMA_MODEL",
		"PIPER_ENDPOINT", "GEMINI_API_KEY", "GEMINI_MODEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.RealtimeURL != DefaultRealtimeURL {
		t.Errorf("RealtimeURL = %q, want %q", cfg.RealtimeURL, DefaultRealtimeURL)
	}
	if cfg.RealtimeModel != DefaultRealtimeModel {
		t.Errorf("RealtimeModel = %q, want %q", cfg.RealtimeModel, DefaultRealtimeModel)
	}
	if cfg.ChatModel != DefaultChatModel {
		t.Errorf("ChatModel = %q, want %q", cfg.ChatModel, DefaultChatModel)
	}
	if cfg.STTVendor != "whisper" || cfg.LLMVendor != "ollama" || cfg.TTSVendor != "piper" {
		t.Errorf("vendors = %q/%q/%q, want whisper/ollama/piper", cfg.STTVendor, cfg.LLMVendor, cfg.TTSVendor)
	}
	if cfg.GatewayAddr != ":8091" {
		t.Errorf("GatewayAddr = %q, want :8091", cfg.GatewayAddr)
	}
	if cfg.DatabasePath != "data/officesim.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.LogPath != "officesim.log" {
		t.Errorf("LogPath = %q", cfg.LogPath)
	}
	if !cfg.SpeechEnabled {
		t.Error("SpeechEnabled should default to true")
	}
	if cfg.Vendor("whisper") != nil {
		t.Errorf("whisper settings = %v, want none", cfg.Vendor("whisper"))
	}
	if got := cfg.Vendor("openai")["base_url"]; got != "https://api.openai.com" {
		t.Errorf("openai base_url = %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-live")
	t.Setenv("GATEWAY_ADDR", ":9000")
	t.Setenv("DATABASE_PATH", "/tmp/office.db")
	t.Setenv("WHISPER_ENDPOINT", "http://localhost:7070")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("REALTIME_TOKEN", "tok-123")
	t.Setenv("OFFICESIM_SPEECH", "false")

	cfg := Load()
	if cfg.GatewayAddr != ":9000" {
		t.Errorf("GatewayAddr = %q", cfg.GatewayAddr)
	}
	if cfg.DatabasePath != "/tmp/office.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.RealtimeToken != "tok-123" {
		t.Errorf("RealtimeToken = %q", cfg.RealtimeToken)
	}
	if cfg.SpeechEnabled {
		t.Error("SpeechEnabled should honor OFFICESIM_SPEECH=false")
	}
	if got := cfg.Vendor("whisper")["endpoint"]; got != "http://localhost:7070" {
		t.Errorf("whisper endpoint = %q", got)
	}
	if got := cfg.Vendor("ollama")["model"]; got != "mistral" {
		t.Errorf("ollama model = %q", got)
	}
	if got := cfg.Vendor("gemini")["api_key"]; got != "g-key" {
		t.Errorf("gemini api_key = %q", got)
	}
	if got := cfg.Vendor("openai")["api_key"]; got != "sk-live" {
		t.Errorf("openai api_key = %q", got)
	}
}

func TestSpeechConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"disabled", Config{SpeechEnabled: false, OpenAIAPIKey: "sk", RealtimeURL: DefaultRealtimeURL}, false},
		{"no backend", Config{SpeechEnabled: true, RealtimeURL: DefaultRealtimeURL}, false},
		{"hosted key", Config{SpeechEnabled: true, OpenAIAPIKey: "sk", RealtimeURL: DefaultRealtimeURL}, true},
		{"gateway url", Config{SpeechEnabled: true, RealtimeURL: "ws://localhost:8091/realtime"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.SpeechConfigured(); got != tt.want {
			t.Errorf("%s: SpeechConfigured() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestVendorNilSafe(t *testing.T) {
	var cfg Config
	m := cfg.Vendor("piper")
	if m != nil {
		t.Fatalf("Vendor on zero config = %v, want nil", m)
	}
	if m["endpoint"] != "" {
		t.Fatal("indexing a nil settings map should yield the zero value")
	}
}

func TestLoadWorldFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "office.yaml")
	doc := `title: Branch Office
map:
  - "WWWWW"
  - "W   W"
  - "WWWWW"
personas:
  - id: it
    name: Priya Patel
    role: IT Support
    position: [1.5, 0.65, -0.5]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWorld(path)
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if w.Title != "Branch Office" {
		t.Errorf("Title = %q", w.Title)
	}
	if w.RoomLimit != 4.5 || w.InteractionDistance != 2.0 || w.PlayerSpeed != 0.3 {
		t.Errorf("numeric defaults not applied: %v/%v/%v", w.RoomLimit, w.InteractionDistance, w.PlayerSpeed)
	}
	if len(w.Personas) != 1 {
		t.Fatalf("personas = %d, want 1", len(w.Personas))
	}
	p := w.Personas[0]
	if p.Tone != "neutral" || p.Voice != "alloy" {
		t.Errorf("persona defaults = %q/%q, want neutral/alloy", p.Tone, p.Voice)
	}
	if p.Position != [3]float64{1.5, 0.65, -0.5} {
		t.Errorf("position = %v", p.Position)
	}
}

func TestLoadWorldRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			"ragged map",
			"map: [\"WWW\", \"W W W\"]\npersonas: [{id: a, name: A, role: R}]\n",
			"width",
		},
		{
			"no personas",
			"map: [\"WWW\", \"W W\", \"WWW\"]\n",
			"no personas",
		},
		{
			"duplicate ids",
			"map: [\"WWW\"]\npersonas: [{id: hr, name: A, role: R}, {id: hr, name: B, role: R}]\n",
			"duplicate",
		},
		{
			"missing role",
			"map: [\"WWW\"]\npersonas: [{id: hr, name: A}]\n",
			"name and role",
		},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadWorld(path)
		if err == nil {
			t.Errorf("%s: want error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error = %v, want substring %q", tt.name, err, tt.wantErr)
		}
	}

	if _, err := LoadWorld(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("want error for missing file")
	}
}

func TestDefaultWorldValidates(t *testing.T) {
	w := DefaultWorld()
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(w.Personas) != 2 {
		t.Fatalf("personas = %d, want 2", len(w.Personas))
	}
	width := len(w.Map[0])
	for i, row := range w.Map {
		if len(row) != width {
			t.Fatalf("map row %d has width %d, want %d", i, len(row), width)
		}
	}
}
