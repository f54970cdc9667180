package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/venturebuilderai/officesim/internal/audio"
	"github.com/venturebuilderai/officesim/internal/interfaces"
	"github.com/venturebuilderai/officesim/internal/realtime"
	"github.com/venturebuilderai/officesim/internal/store"
)

// transcriptGroupWords is how many words ride in one transcript delta.
const transcriptGroupWords = 3

// activeResponse tracks one in-flight responder goroutine so a later
// response.create or response.cancel can stop it.
type activeResponse struct {
	cancel context.CancelFunc
}

// session serves one realtime websocket connection: it owns the input audio
// buffer, the voice activity detector, the conversation history and the
// STT -> LLM -> TTS response pipeline.
type session struct {
	id     string
	convID string
	conn   *websocket.Conn
	log    *zap.Logger

	stt interfaces.STT
	llm interfaces.LLM
	tts interfaces.TTS

	db      *store.Store
	metrics *Metrics

	writeMu  sync.Mutex
	eventSeq atomic.Int64

	mu      sync.Mutex
	cfg     realtime.SessionConfig
	vad     *Detector
	buffer  []int16
	history []interfaces.Message
	resp    *activeResponse
}

func newSession(id, convID string, conn *websocket.Conn, stt interfaces.STT, llm interfaces.LLM, tts interfaces.TTS, db *store.Store, metrics *Metrics, log *zap.Logger) *session {
	cfg := realtime.DefaultSessionConfig("alloy", "")
	return &session{
		id:      id,
		convID:  convID,
		conn:    conn,
		log:     log.With(zap.String("session", id)),
		stt:     stt,
		llm:     llm,
		tts:     tts,
		db:      db,
		metrics: metrics,
		cfg:     cfg,
		vad:     NewDetector(cfg.TurnDetection.Threshold, cfg.TurnDetection.SilenceDurationMS, audio.SampleRate),
	}
}

// preloadHistory restores prior turns so a reconnect keeps its context.
func (s *session) preloadHistory() {
	turns, err := s.db.Transcript(s.convID)
	if err != nil {
		s.log.Warn("could not load transcript", zap.Error(err))
		return
	}
	for _, t := range turns {
		s.history = append(s.history, interfaces.Message{Role: t.Role, Content: t.Content})
	}
}

// run reads events until the connection drops.
func (s *session) run() {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()
	defer s.close()

	s.sendEvent(realtime.Event{Type: realtime.TypeSessionCreated, Session: s.snapshot()})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("session read ended", zap.Error(err))
			return
		}
		var ev realtime.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.sendError("invalid_request_error", "invalid_json", "could not parse event")
			continue
		}
		s.metrics.RecordEvent(ev.Type, "in")
		s.handle(ev)
	}
}

func (s *session) handle(ev realtime.Event) {
	switch ev.Type {
	case realtime.TypeSessionUpdate:
		s.applyUpdate(ev.Session)
		s.sendEvent(realtime.Event{Type: realtime.TypeSessionUpdated, Session: s.snapshot()})

	case realtime.TypeInputAudioAppend:
		s.appendAudio(ev.Audio)

	case realtime.TypeInputAudioCommit:
		s.commit()

	case realtime.TypeConversationItemCreate:
		s.addItem(ev.Item)

	case realtime.TypeResponseCreate:
		s.startResponse(ev.Response)

	case realtime.TypeResponseCancel:
		s.cancelResponse()

	default:
		s.sendError("invalid_request_error", "unknown_event_type", fmt.Sprintf("unknown event type %q", ev.Type))
	}
}

func (s *session) applyUpdate(sess *realtime.Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Modalities != nil {
		s.cfg.Modalities = sess.Modalities
	}
	if sess.Voice != "" {
		s.cfg.Voice = sess.Voice
	}
	if sess.Instructions != "" {
		s.cfg.Instructions = sess.Instructions
	}
	if sess.InputAudioFormat != "" {
		s.cfg.InputAudioFormat = sess.InputAudioFormat
	}
	if sess.OutputAudioFormat != "" {
		s.cfg.OutputAudioFormat = sess.OutputAudioFormat
	}
	if td := sess.TurnDetection; td != nil {
		s.cfg.TurnDetection = td
		s.vad = NewDetector(td.Threshold, td.SilenceDurationMS, audio.SampleRate)
	}
}

func (s *session) snapshot() *realtime.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &realtime.Session{ID: s.id, SessionConfig: s.cfg}
}

func (s *session) appendAudio(b64 string) {
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		s.sendError("invalid_request_error", "invalid_audio", "audio payload is not valid base64")
		return
	}
	samples := audio.DecodePCM16(pcm)
	if len(samples) == 0 {
		return
	}
	s.metrics.RecordInputAudio(float64(len(samples)) / audio.SampleRate)

	s.mu.Lock()
	s.buffer = append(s.buffer, samples...)
	boundary := s.vad.Feed(samples)
	s.mu.Unlock()

	switch boundary {
	case VADStarted:
		s.sendEvent(realtime.Event{Type: realtime.TypeSpeechStarted})
	case VADStopped:
		s.sendEvent(realtime.Event{Type: realtime.TypeSpeechDone})
	}
}

// commit transcribes the buffered audio and records it as a user turn.
func (s *session) commit() {
	s.mu.Lock()
	samples := s.buffer
	s.buffer = nil
	s.vad.Reset()
	s.mu.Unlock()

	if len(samples) == 0 {
		s.sendError("invalid_request_error", "input_audio_buffer_commit_empty", "input audio buffer is empty")
		return
	}

	start := time.Now()
	text, _, err := s.stt.Recognize(audio.WAV(samples, audio.SampleRate))
	s.metrics.RecordStage("stt", time.Since(start))
	if err != nil {
		s.log.Error("transcription failed", zap.Error(err))
		s.sendError("server_error", "transcription_failed", "could not transcribe committed audio")
		return
	}

	text = strings.TrimSpace(text)
	if text != "" {
		s.mu.Lock()
		s.history = append(s.history, interfaces.Message{Role: interfaces.RoleUser, Content: text})
		s.mu.Unlock()
		if err := s.db.AppendTurn(s.convID, interfaces.RoleUser, text); err != nil {
			s.log.Warn("could not persist user turn", zap.Error(err))
		}
	}
	s.sendEvent(realtime.Event{Type: realtime.TypeCommitDone, Transcript: text})
}

func (s *session) addItem(item *realtime.Item) {
	if item == nil || item.Role == "" {
		s.sendError("invalid_request_error", "invalid_item", "item with role required")
		return
	}
	var sb strings.Builder
	for _, part := range item.Content {
		if part.Type == "input_text" || part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return
	}

	s.mu.Lock()
	s.history = append(s.history, interfaces.Message{Role: item.Role, Content: text})
	s.mu.Unlock()
	if err := s.db.AppendTurn(s.convID, item.Role, text); err != nil {
		s.log.Warn("could not persist item turn", zap.Error(err))
	}
}

func (s *session) startResponse(rc *realtime.ResponseConfig) {
	s.mu.Lock()
	if s.resp != nil {
		s.resp.cancel()
		s.resp = nil
	}
	instructions := s.cfg.Instructions
	if rc != nil && rc.Instructions != "" {
		instructions = rc.Instructions
	}
	var messages []interfaces.Message
	if instructions != "" {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: instructions})
	}
	messages = append(messages, s.history...)

	ctx, cancel := context.WithCancel(context.Background())
	ar := &activeResponse{cancel: cancel}
	s.resp = ar
	s.mu.Unlock()

	go s.respond(ctx, ar, newItemID(), messages)
}

func (s *session) cancelResponse() {
	s.mu.Lock()
	ar := s.resp
	s.resp = nil
	s.mu.Unlock()

	if ar == nil {
		s.sendError("invalid_request_error", realtime.ErrCodeCancelNotActive, "no active response to cancel")
		return
	}
	ar.cancel()
}

// respond runs the LLM and streams the reply back as transcript deltas and
// 50ms audio frames, checking for cancellation between sends.
func (s *session) respond(ctx context.Context, ar *activeResponse, itemID string, messages []interfaces.Message) {
	defer func() {
		s.mu.Lock()
		if s.resp == ar {
			s.resp = nil
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	reply, err := s.llm.Chat(messages, interfaces.WithTemperature(0.8))
	s.metrics.RecordStage("llm", time.Since(start))
	if err != nil {
		s.log.Error("model call failed", zap.Error(err))
		s.metrics.RecordResponse("failed")
		s.sendError("server_error", "response_failed", "model call failed")
		s.sendEvent(realtime.Event{Type: realtime.TypeResponseDone, ItemID: itemID})
		return
	}
	reply = strings.TrimSpace(reply)
	if ctx.Err() != nil {
		s.finishCancelled(itemID)
		return
	}

	words := strings.Fields(reply)
	for i := 0; i < len(words); i += transcriptGroupWords {
		if ctx.Err() != nil {
			s.finishCancelled(itemID)
			return
		}
		j := i + transcriptGroupWords
		if j > len(words) {
			j = len(words)
		}
		delta := strings.Join(words[i:j], " ")
		if j < len(words) {
			delta += " "
		}
		s.sendEvent(realtime.Event{Type: realtime.TypeTranscriptDelta, ItemID: itemID, Delta: delta})
	}

	s.streamSpeech(ctx, itemID, reply)
	if ctx.Err() != nil {
		s.finishCancelled(itemID)
		return
	}

	s.sendEvent(realtime.Event{Type: realtime.TypeTranscriptDone, ItemID: itemID, Transcript: reply})
	s.sendEvent(realtime.Event{Type: realtime.TypeResponseDone, ItemID: itemID})

	s.mu.Lock()
	s.history = append(s.history, interfaces.Message{Role: interfaces.RoleAssistant, Content: reply})
	s.mu.Unlock()
	if err := s.db.AppendTurn(s.convID, interfaces.RoleAssistant, reply); err != nil {
		s.log.Warn("could not persist assistant turn", zap.Error(err))
	}
	s.metrics.RecordResponse("completed")
}

// streamSpeech synthesizes the reply and sends it as base64 PCM16 frames. A
// synthesis failure downgrades the response to text only.
func (s *session) streamSpeech(ctx context.Context, itemID, reply string) {
	start := time.Now()
	voiced, err := s.tts.Speak(reply)
	s.metrics.RecordStage("tts", time.Since(start))
	if err != nil {
		s.log.Warn("speech synthesis failed", zap.Error(err))
		return
	}

	samples, _, err := audio.PCMFromWAV(voiced)
	if err != nil {
		// Some voices return raw PCM16 without a container.
		samples = audio.DecodePCM16(voiced)
	}
	for i := 0; i < len(samples); i += audio.PlaybackFrames {
		if ctx.Err() != nil {
			return
		}
		j := i + audio.PlaybackFrames
		if j > len(samples) {
			j = len(samples)
		}
		frame := base64.StdEncoding.EncodeToString(audio.EncodePCM16(samples[i:j]))
		s.sendEvent(realtime.Event{Type: realtime.TypeAudioDelta, ItemID: itemID, Delta: frame})
	}
}

func (s *session) finishCancelled(itemID string) {
	s.metrics.RecordResponse("cancelled")
	s.sendEvent(realtime.Event{Type: realtime.TypeResponseDone, ItemID: itemID})
}

func (s *session) sendEvent(ev realtime.Event) {
	ev.EventID = fmt.Sprintf("event_%d", s.eventSeq.Add(1))
	s.writeMu.Lock()
	err := s.conn.WriteJSON(&ev)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Debug("session write failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	s.metrics.RecordEvent(ev.Type, "out")
}

func (s *session) sendError(typ, code, message string) {
	s.sendEvent(realtime.Event{
		Type:  realtime.TypeError,
		Error: &realtime.ErrorDetail{Type: typ, Code: code, Message: message},
	})
}

func (s *session) close() {
	s.mu.Lock()
	if s.resp != nil {
		s.resp.cancel()
		s.resp = nil
	}
	s.mu.Unlock()
	s.conn.Close()
	if err := s.db.UpdateSessionStatus(s.id, "closed"); err != nil {
		s.log.Debug("could not mark session closed", zap.Error(err))
	}
}

func newItemID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("item_%d", time.Now().UnixNano())
	}
	return "item_" + hex.EncodeToString(b)
}
