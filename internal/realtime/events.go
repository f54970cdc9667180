// Package realtime implements the websocket voice protocol: JSON event
// envelopes in both directions, with base64 PCM16 audio payloads.
package realtime

import "fmt"

// Client-to-server event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioAppend       = "input_audio_buffer.append"
	TypeInputAudioCommit       = "input_audio_buffer.commit"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeResponseCancel         = "response.cancel"
)

// Server-to-client event types.
const (
	TypeSessionCreated  = "session.created"
	TypeSessionUpdated  = "session.updated"
	TypeAudioDelta      = "response.audio.delta"
	TypeTranscriptDelta = "response.audio_transcript.delta"
	TypeTranscriptDone  = "response.audio_transcript.done"
	TypeSpeechStarted   = "input_audio_buffer.speech_started"
	TypeSpeechDone      = "input_audio_buffer.speech_done"
	TypeCommitDone      = "input_audio_buffer.commit.done"
	TypeResponseDone    = "response.done"
	TypeError           = "error"
)

// ErrCodeCancelNotActive is returned when response.cancel arrives with no
// response in flight. Clients treat it as harmless.
const ErrCodeCancelNotActive = "response_cancel_not_active"

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// SessionConfig is the mutable part of a session, sent in session.update and
// echoed back inside session.created / session.updated.
type SessionConfig struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
}

// DefaultSessionConfig returns the standard voice session: text plus audio,
// PCM16 both ways, server VAD tuned for quick turn taking.
func DefaultSessionConfig(voice, instructions string) SessionConfig {
	return SessionConfig{
		Modalities:        []string{"text", "audio"},
		Voice:             voice,
		Instructions:      instructions,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: &TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 800,
		},
	}
}

// Session is the server's view of a session.
type Session struct {
	ID string `json:"id"`
	SessionConfig
}

// ContentPart is one piece of a conversation item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Item is a conversation item created by the client.
type Item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ResponseConfig is the inline configuration of a response.create event.
type ResponseConfig struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// ErrorDetail carries a server-reported error.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return "realtime: unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("realtime: %s", e.Message)
}

// Event is the wire envelope. Only the fields relevant to an event's type
// are populated.
type Event struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// session.update carries the requested config; session.created and
	// session.updated carry the server's session.
	Session *Session `json:"session,omitempty"`

	// Audio and transcript deltas.
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// input_audio_buffer.append payload, base64 PCM16.
	Audio string `json:"audio,omitempty"`

	// conversation.item.create payload.
	Item *Item `json:"item,omitempty"`

	// response.create payload.
	Response *ResponseConfig `json:"response,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}
