package interfaces

import "io"

// Message is one turn of a conversation as passed to an LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TTS is the text-to-speech interface. Implementations should be swappable.
type TTS interface {
	// Speak converts text into audio bytes (e.g., encoded PCM or an audio format)
	Speak(text string, opts ...TTSOption) ([]byte, error)
	// SpeakStream writes audio bytes for the given text to the provided writer as they are produced.
	// Implementations that can stream should provide this for low-latency playback.
	SpeakStream(text string, w io.Writer, opts ...TTSOption) error
}

// STT is the speech-to-text interface.
type STT interface {
	// Recognize converts audio bytes into text (returns transcript and confidence)
	Recognize(audio []byte, opts ...STTOption) (string, float32, error)
}

// LLM is the language model interface. Chat takes the whole conversation so
// implementations can keep multi-turn context.
type LLM interface {
	Chat(messages []Message, opts ...LLMOption) (string, error)
}

// Option types are intentionally small placeholders to allow vendor-specific options.
type TTSOption func(*map[string]any)
type STTOption func(*map[string]any)
type LLMOption func(*map[string]any)

// WithModel overrides the model a vendor uses for a single call.
func WithModel(model string) LLMOption {
	return func(o *map[string]any) { (*o)["model"] = model }
}

// WithTemperature sets the sampling temperature for a single call.
func WithTemperature(t float64) LLMOption {
	return func(o *map[string]any) { (*o)["temperature"] = t }
}

// WithMaxTokens caps the completion length for a single call.
func WithMaxTokens(n int) LLMOption {
	return func(o *map[string]any) { (*o)["max_tokens"] = n }
}

// CollectOptions folds option funcs into a settings map for vendor use.
func CollectOptions[T ~func(*map[string]any)](opts []T) map[string]any {
	o := make(map[string]any)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
