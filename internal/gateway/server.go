// Package gateway implements the session gateway: it mints session tokens
// over REST and serves the realtime voice protocol over websockets, bridging
// each connection to STT, LLM and TTS vendors.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/venturebuilderai/officesim/internal/interfaces"
	"github.com/venturebuilderai/officesim/internal/store"
)

type Server struct {
	addr   string
	secret string
	log    *zap.Logger

	stt interfaces.STT
	llm interfaces.LLM
	tts interfaces.TTS

	db      *store.Store
	metrics *Metrics

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewServer(addr, secret string, stt interfaces.STT, llm interfaces.LLM, tts interfaces.TTS, db *store.Store, log *zap.Logger) (*Server, error) {
	if secret == "" {
		return nil, fmt.Errorf("gateway secret required")
	}
	if db == nil {
		return nil, fmt.Errorf("store required")
	}
	return &Server{
		addr:    addr,
		secret:  secret,
		log:     log,
		stt:     stt,
		llm:     llm,
		tts:     tts,
		db:      db,
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}, nil
}

// Handler returns the gateway's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.handleCreateSession)
	mux.HandleFunc("/realtime", s.handleRealtime)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// POST /sessions - create a conversation plus session row and return an
// access token for the websocket endpoint.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		NPCID string `json:"npc_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if body.NPCID == "" {
		http.Error(w, "npc_id required", http.StatusBadRequest)
		return
	}

	convID, sessionID, err := s.db.CreateConversation(body.NPCID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	token, err := MintAccessToken(s.secret, sessionID, 3600)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.db.UpdateSessionToken(sessionID, token); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]string{
		"conversation_id": convID,
		"session_id":      sessionID,
		"access_token":    token,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleRealtime authenticates the access token and hands the connection to
// a session for the rest of its life.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	sessionID, err := VerifyAccessToken(s.secret, token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}
	convID, _, err := s.db.FindConversationBySession(sessionID)
	if err != nil {
		http.Error(w, "unknown session", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := s.db.UpdateSessionStatus(sessionID, "connected"); err != nil {
		s.log.Warn("could not mark session connected", zap.Error(err))
	}

	sess := newSession(sessionID, convID, conn, s.stt, s.llm, s.tts, s.db, s.metrics, s.log)
	sess.preloadHistory()

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.log.Info("session connected", zap.String("session", sessionID), zap.String("conversation", convID))
	sess.run()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.log.Info("session finished", zap.String("session", sessionID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.log.Info("gateway listening", zap.String("addr", s.addr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown closes live websocket sessions and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
