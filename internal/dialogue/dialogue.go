// Package dialogue runs conversations with NPCs over two channels: a typed
// text channel backed by a chat model, and a realtime voice channel. The
// manager owns the conversation state and exposes snapshots plus a small
// event stream for the game loop to render from.
package dialogue

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/venturebuilderai/officesim/internal/interfaces"
	"github.com/venturebuilderai/officesim/internal/realtime"
	"github.com/venturebuilderai/officesim/internal/world"
)

// RealtimeConn is the slice of the realtime client the manager drives.
type RealtimeConn interface {
	Connect(ctx context.Context, sess realtime.SessionConfig) error
	AppendAudio(pcm []byte) error
	CommitAudio() error
	CreateUserItem(text string) error
	CreateResponse(instructions string) error
	CancelResponse() error
	Connected() bool
	Close() error
}

// Dialer builds a fresh connection wired to the given handler. The manager
// dials once per conversation and discards the connection afterwards.
type Dialer func(h realtime.Handler) RealtimeConn

// Playback is the audio sink for NPC speech.
type Playback interface {
	Write(pcm []byte)
	Stop()
	ResetFrames()
	Playing() bool
}

// Event kinds posted on the manager's event channel.
const (
	EventMessage           = "message"            // NPC message replaced, Text is the full message
	EventPartial           = "partial"            // streaming transcript so far
	EventMode              = "mode"               // input mode changed, Text is "voice" or "text"
	EventListening         = "listening"          // user speech, Text is "started" or "stopped"
	EventSpeechUnavailable = "speech-unavailable" // voice channel gone
	EventEnded             = "ended"              // conversation closed
)

// Event tells the game loop something worth redrawing happened.
type Event struct {
	Kind string
	Text string
}

const apologyMessage = "I apologize, but I'm having trouble connecting to our systems right now."

// Manager owns one conversation at a time.
type Manager struct {
	log             *zap.Logger
	llm             interfaces.LLM
	chatModel       string
	dial            Dialer
	player          Playback
	speechAvailable bool

	mu            sync.Mutex
	active        bool
	npc           *world.NPC
	initialPos    world.Vec3
	history       []interfaces.Message
	npcMessage    string
	partials      map[string]string
	lastAudioItem string
	speechMode    bool
	speechActive  bool
	responding    bool
	greeted       bool

	conn       RealtimeConn
	connLive   bool
	connGen    int
	convoGen   int
	connCancel context.CancelFunc

	events chan Event
}

// NewManager wires the conversation manager. llm and chatModel serve the
// text channel; dial opens voice connections. speechAvailable false disables
// the voice channel entirely.
func NewManager(llm interfaces.LLM, chatModel string, dial Dialer, player Playback, speechAvailable bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:             log,
		llm:             llm,
		chatModel:       chatModel,
		dial:            dial,
		player:          player,
		speechAvailable: speechAvailable,
		partials:        make(map[string]string),
		events:          make(chan Event, 32),
	}
}

// Events returns the notification channel. The buffer drops oldest entries
// under pressure; consumers treat events as redraw hints, not as state.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) post(ev Event) {
	for {
		select {
		case m.events <- ev:
			return
		default:
			select {
			case <-m.events:
			default:
			}
		}
	}
}

// Start opens a conversation with the NPC. The player's position is kept so
// End can report where the conversation began. Any previous conversation
// state is discarded. The voice channel is dialed right away, even in text
// mode, so switching to voice later is instant.
func (m *Manager) Start(npc *world.NPC, playerPos world.Vec3) {
	m.mu.Lock()
	m.active = true
	m.convoGen++
	m.npc = npc
	m.initialPos = playerPos
	m.npcMessage = npc.Greeting
	m.history = []interfaces.Message{{Role: interfaces.RoleSystem, Content: npc.SystemPrompt()}}
	m.partials = make(map[string]string)
	m.lastAudioItem = ""
	m.responding = false
	m.speechActive = false
	m.greeted = false

	m.player.Stop()
	m.player.ResetFrames()
	m.closeConnLocked()
	if m.speechAvailable {
		m.connectLocked()
	}
	greeting := m.npcMessage
	name := npc.Name
	m.mu.Unlock()

	m.log.Info("dialogue started", zap.String("npc", name))
	m.post(Event{Kind: EventMessage, Text: greeting})
}

// connectLocked dials a fresh voice connection in the background. Callers
// hold m.mu.
func (m *Manager) connectLocked() {
	m.connGen++
	gen := m.connGen
	conn := m.dial(m.handlerFor(gen))
	m.conn = conn
	m.connLive = false

	ctx, cancel := context.WithCancel(context.Background())
	m.connCancel = cancel
	sess := realtime.DefaultSessionConfig(m.npc.Voice, m.npc.Instructions())

	go func() {
		err := conn.Connect(ctx, sess)
		if err == nil {
			return
		}
		m.log.Warn("voice channel connect failed", zap.Error(err))
		m.mu.Lock()
		if gen != m.connGen {
			m.mu.Unlock()
			return
		}
		m.conn = nil
		m.connLive = false
		m.speechMode = false
		m.mu.Unlock()
		m.post(Event{Kind: EventSpeechUnavailable})
	}()
}

// closeConnLocked drops the current connection and invalidates its handler.
// Callers hold m.mu.
func (m *Manager) closeConnLocked() {
	m.connGen++
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connLive = false
}

// handlerFor binds callbacks to one connection generation so events from a
// replaced connection cannot touch newer state.
func (m *Manager) handlerFor(gen int) realtime.Handler {
	return realtime.Handler{
		OnSessionCreated: func(id string) {
			m.log.Info("voice session created", zap.String("session_id", id))
		},
		OnSessionUpdated: func() {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.connLive = true
			var greet string
			conn := m.conn
			if m.speechMode && !m.greeted {
				m.greeted = true
				greet = m.npc.Greeting
			}
			m.mu.Unlock()
			if greet != "" && conn != nil {
				if err := conn.CreateResponse(greet); err != nil {
					m.log.Warn("send greeting", zap.Error(err))
				}
			}
		},
		OnAudioDelta: func(itemID string, pcm []byte) {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.responding = true
			if itemID != m.lastAudioItem {
				m.player.ResetFrames()
				m.lastAudioItem = itemID
			}
			m.mu.Unlock()
			m.player.Write(pcm)
		},
		OnTranscriptDelta: func(itemID, delta string) {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.partials[itemID] += delta
			text := m.partials[itemID]
			m.mu.Unlock()
			m.post(Event{Kind: EventPartial, Text: text})
		},
		OnTranscriptDone: func(itemID, transcript string) {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			msg := m.partials[itemID]
			if msg == "" {
				msg = transcript
			}
			m.npcMessage = msg
			m.history = append(m.history, interfaces.Message{Role: interfaces.RoleAssistant, Content: msg})
			m.responding = false
			m.mu.Unlock()
			m.post(Event{Kind: EventMessage, Text: msg})
		},
		OnSpeechStarted: func() {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.speechActive = true
			if m.responding {
				m.cancelOngoingLocked()
			}
			m.player.Stop()
			m.npcMessage = ""
			m.partials = make(map[string]string)
			m.history = append(m.history, interfaces.Message{Role: interfaces.RoleUser, Content: "[Speech input started]"})
			m.mu.Unlock()
			m.post(Event{Kind: EventListening, Text: "started"})
		},
		OnSpeechDone: func() {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.speechActive = false
			conn := m.conn
			m.mu.Unlock()
			if conn != nil {
				if err := conn.CommitAudio(); err != nil {
					m.log.Warn("commit audio", zap.Error(err))
				}
				if err := conn.CreateResponse(""); err != nil {
					m.log.Warn("request response", zap.Error(err))
				}
			}
			m.post(Event{Kind: EventListening, Text: "stopped"})
		},
		OnCommitDone: func() {
			m.log.Debug("audio buffer committed")
		},
		OnResponseDone: func() {
			m.mu.Lock()
			if gen == m.connGen {
				m.responding = false
			}
			m.mu.Unlock()
		},
		OnAPIError: func(e *realtime.ErrorDetail) {
			if e != nil && (e.Code == realtime.ErrCodeCancelNotActive ||
				strings.Contains(e.Message, realtime.ErrCodeCancelNotActive)) {
				m.log.Debug("no active response to cancel")
				return
			}
			m.log.Warn("voice channel error", zap.Error(e))
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.speechMode = false
			m.closeConnLocked()
			m.mu.Unlock()
			m.post(Event{Kind: EventSpeechUnavailable})
		},
		OnDisconnect: func(err error) {
			m.mu.Lock()
			if gen != m.connGen {
				m.mu.Unlock()
				return
			}
			m.log.Warn("voice channel dropped", zap.Error(err))
			m.speechMode = false
			m.closeConnLocked()
			m.mu.Unlock()
			m.post(Event{Kind: EventSpeechUnavailable})
		},
	}
}

// cancelOngoingLocked interrupts the in-flight NPC response and clears the
// partial output. Callers hold m.mu. No-op when nothing is in flight.
func (m *Manager) cancelOngoingLocked() {
	if !m.responding && !m.player.Playing() {
		return
	}
	if m.conn != nil && m.speechMode {
		if err := m.conn.CancelResponse(); err != nil && err != realtime.ErrClosed {
			m.log.Warn("cancel response", zap.Error(err))
		}
	}
	m.player.Stop()
	m.player.ResetFrames()
	m.npcMessage = ""
	m.partials = make(map[string]string)
	m.lastAudioItem = ""
	m.responding = false
}

// CancelOngoing interrupts the NPC mid-response.
func (m *Manager) CancelOngoing() {
	m.mu.Lock()
	m.cancelOngoingLocked()
	m.mu.Unlock()
}

// SendText submits a typed user message. In voice mode it goes over the
// realtime channel; otherwise the chat model answers from the accumulated
// history. The text-mode completion runs on its own goroutine so the caller
// never blocks on the network.
func (m *Manager) SendText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	m.mu.Lock()
	if !m.active || len(m.history) == 0 {
		m.mu.Unlock()
		return
	}
	if m.responding {
		m.cancelOngoingLocked()
	}
	m.history = append(m.history, interfaces.Message{Role: interfaces.RoleUser, Content: text})

	if m.speechMode && m.conn != nil && m.connLive {
		conn := m.conn
		m.mu.Unlock()
		if err := conn.CreateUserItem(text); err != nil {
			m.log.Warn("send user item", zap.Error(err))
			return
		}
		if err := conn.CreateResponse(""); err != nil {
			m.log.Warn("request response", zap.Error(err))
		}
		return
	}

	hist := make([]interfaces.Message, len(m.history))
	copy(hist, m.history)
	model := m.chatModel
	cg := m.convoGen
	m.mu.Unlock()

	go func() {
		reply, err := m.llm.Chat(hist,
			interfaces.WithModel(model),
			interfaces.WithTemperature(0.85),
			interfaces.WithMaxTokens(150))

		m.mu.Lock()
		if cg != m.convoGen {
			m.mu.Unlock()
			return
		}
		if err != nil {
			m.log.Warn("text completion failed", zap.Error(err))
			m.npcMessage = apologyMessage
			m.responding = false
			m.mu.Unlock()
			m.post(Event{Kind: EventMessage, Text: apologyMessage})
			return
		}
		m.npcMessage = reply
		m.history = append(m.history, interfaces.Message{Role: interfaces.RoleAssistant, Content: reply})
		m.responding = true
		m.mu.Unlock()
		m.post(Event{Kind: EventMessage, Text: reply})
	}()
}

// ToggleSpeech flips between text and voice input and returns the new mode.
// Turning voice off interrupts any speech in progress and drops the
// connection; turning it on reuses the pre-warmed connection when there is
// one.
func (m *Manager) ToggleSpeech() bool {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return false
	}
	if !m.speechAvailable {
		m.mu.Unlock()
		m.post(Event{Kind: EventSpeechUnavailable})
		return false
	}

	m.speechMode = !m.speechMode
	on := m.speechMode

	var greet string
	var conn RealtimeConn
	if on {
		if m.conn == nil {
			m.connectLocked()
		} else if m.connLive && !m.greeted {
			m.greeted = true
			greet = m.npc.Greeting
			conn = m.conn
		}
	} else {
		m.cancelOngoingLocked()
		m.player.Stop()
		m.speechActive = false
		m.closeConnLocked()
	}
	m.mu.Unlock()

	if greet != "" && conn != nil {
		if err := conn.CreateResponse(greet); err != nil {
			m.log.Warn("send greeting", zap.Error(err))
		}
	}
	if on {
		m.post(Event{Kind: EventMode, Text: "voice"})
	} else {
		m.post(Event{Kind: EventMode, Text: "text"})
	}
	return on
}

// End closes the conversation and reports the player position captured at
// Start, so the caller can step the player back from the NPC.
func (m *Manager) End() (world.Vec3, bool) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return world.Vec3{}, false
	}
	m.active = false
	m.speechMode = false
	m.convoGen++
	pos := m.initialPos

	m.cancelOngoingLocked()
	m.player.Stop()
	m.closeConnLocked()
	m.npc = nil
	m.mu.Unlock()

	m.log.Info("dialogue ended")
	m.post(Event{Kind: EventEnded})
	return pos, true
}

// MicGate reports whether microphone chunks should flow right now.
func (m *Manager) MicGate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.speechMode && m.conn != nil && m.connLive
}

// AppendMicAudio forwards one captured PCM16 chunk to the voice channel.
func (m *Manager) AppendMicAudio(pcm []byte) {
	m.mu.Lock()
	conn := m.conn
	ok := m.active && m.speechMode && m.connLive && conn != nil
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := conn.AppendAudio(pcm); err != nil && err != realtime.ErrClosed {
		m.log.Debug("append mic audio", zap.Error(err))
	}
}

// State is a render snapshot of the conversation.
type State struct {
	Active       bool
	NPCName      string
	NPCRole      string
	Message      string
	SpeechMode   bool
	SpeechActive bool
	Responding   bool
	VoiceReady   bool
}

// State returns a consistent snapshot for rendering.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{
		Active:       m.active,
		Message:      m.npcMessage,
		SpeechMode:   m.speechMode,
		SpeechActive: m.speechActive,
		Responding:   m.responding,
		VoiceReady:   m.conn != nil && m.connLive,
	}
	if m.npc != nil {
		s.NPCName = m.npc.Name
		s.NPCRole = m.npc.Role
	}
	return s
}

// Active reports whether a conversation is open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
