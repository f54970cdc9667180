package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned by senders after the connection is gone.
var ErrClosed = errors.New("realtime: connection closed")

// Handler receives server events. Nil fields are skipped. Callbacks run on
// the read loop goroutine, so they must not block.
type Handler struct {
	OnSessionCreated  func(sessionID string)
	OnSessionUpdated  func()
	OnAudioDelta      func(itemID string, pcm []byte)
	OnTranscriptDelta func(itemID, delta string)
	OnTranscriptDone  func(itemID, transcript string)
	OnSpeechStarted   func()
	OnSpeechDone      func()
	OnCommitDone      func()
	OnResponseDone    func()
	OnAPIError        func(*ErrorDetail)
	OnDisconnect      func(err error)
}

// Config controls how the client connects.
type Config struct {
	// URL of the realtime endpoint. http/https schemes are rewritten to
	// ws/wss.
	URL string

	// Model is added as a query parameter when set.
	Model string

	// APIKey authenticates against the hosted service via bearer header.
	APIKey string

	// AccessToken authenticates against a session gateway via query
	// parameter.
	AccessToken string

	// MaxAttempts is the number of connection attempts, default 3.
	MaxAttempts int

	// RetryPause is the wait between attempts, default 2s.
	RetryPause time.Duration

	Log *zap.Logger
}

// Client is a websocket connection to a realtime voice endpoint. A client
// serves one conversation: dial with Connect, then Close and discard.
type Client struct {
	cfg     Config
	handler Handler
	log     *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewClient builds a client; it does not connect yet.
func NewClient(cfg Config, h Handler) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = 2 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, handler: h, log: log}
}

// Connect dials the endpoint, retrying up to MaxAttempts with RetryPause
// between attempts, then sends session.update with the given config. The
// read loop runs until the connection drops or Close is called.
func (c *Client) Connect(ctx context.Context, sess SessionConfig) error {
	wsURL, header, err := c.wsURL()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				conn.Close()
				return ErrClosed
			}
			c.conn = conn
			c.mu.Unlock()

			if err = c.send(Event{Type: TypeSessionUpdate, Session: &Session{SessionConfig: sess}}); err == nil {
				go c.readLoop(conn)
				return nil
			}
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			conn.Close()
		}

		lastErr = err
		c.log.Warn("realtime connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err))
		if attempt < c.cfg.MaxAttempts {
			c.log.Info("retrying realtime connection", zap.Duration("pause", c.cfg.RetryPause))
			select {
			case <-time.After(c.cfg.RetryPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("realtime: connect failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) wsURL() (string, http.Header, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", nil, fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	if c.cfg.Model != "" {
		q.Set("model", c.cfg.Model)
	}
	if c.cfg.AccessToken != "" {
		q.Set("access_token", c.cfg.AccessToken)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		header.Set("OpenAI-Beta", "realtime=v1")
	}
	return u.String(), header, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.conn = nil
			c.mu.Unlock()
			if !closed && c.handler.OnDisconnect != nil {
				c.handler.OnDisconnect(err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("bad realtime event", zap.Error(err))
			continue
		}
		c.dispatch(&ev)
	}
}

func (c *Client) dispatch(ev *Event) {
	switch ev.Type {
	case TypeSessionCreated:
		if c.handler.OnSessionCreated != nil {
			id := ""
			if ev.Session != nil {
				id = ev.Session.ID
			}
			c.handler.OnSessionCreated(id)
		}
	case TypeSessionUpdated:
		if c.handler.OnSessionUpdated != nil {
			c.handler.OnSessionUpdated()
		}
	case TypeAudioDelta:
		if c.handler.OnAudioDelta != nil {
			pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				c.log.Warn("bad audio delta", zap.Error(err))
				return
			}
			c.handler.OnAudioDelta(ev.ItemID, pcm)
		}
	case TypeTranscriptDelta:
		if c.handler.OnTranscriptDelta != nil {
			c.handler.OnTranscriptDelta(ev.ItemID, ev.Delta)
		}
	case TypeTranscriptDone:
		if c.handler.OnTranscriptDone != nil {
			c.handler.OnTranscriptDone(ev.ItemID, ev.Transcript)
		}
	case TypeSpeechStarted:
		if c.handler.OnSpeechStarted != nil {
			c.handler.OnSpeechStarted()
		}
	case TypeSpeechDone:
		if c.handler.OnSpeechDone != nil {
			c.handler.OnSpeechDone()
		}
	case TypeCommitDone:
		if c.handler.OnCommitDone != nil {
			c.handler.OnCommitDone()
		}
	case TypeResponseDone:
		if c.handler.OnResponseDone != nil {
			c.handler.OnResponseDone()
		}
	case TypeError:
		if c.handler.OnAPIError != nil {
			c.handler.OnAPIError(ev.Error)
		}
	default:
		c.log.Debug("unhandled realtime event", zap.String("type", ev.Type))
	}
}

func (c *Client) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClosed
	}
	return c.conn.WriteJSON(&ev)
}

// UpdateSession sends a session.update with the new config.
func (c *Client) UpdateSession(sess SessionConfig) error {
	return c.send(Event{Type: TypeSessionUpdate, Session: &Session{SessionConfig: sess}})
}

// AppendAudio streams one chunk of PCM16 microphone audio.
func (c *Client) AppendAudio(pcm []byte) error {
	return c.send(Event{
		Type:  TypeInputAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// CommitAudio finalizes the uncommitted audio buffer as user input.
func (c *Client) CommitAudio() error {
	return c.send(Event{Type: TypeInputAudioCommit})
}

// CreateUserItem adds a typed user message to the conversation.
func (c *Client) CreateUserItem(text string) error {
	return c.send(Event{
		Type: TypeConversationItemCreate,
		Item: &Item{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	})
}

// CreateResponse asks the server to respond. instructions may be empty.
func (c *Client) CreateResponse(instructions string) error {
	return c.send(Event{
		Type: TypeResponseCreate,
		Response: &ResponseConfig{
			Modalities:   []string{"text", "audio"},
			Instructions: instructions,
		},
	})
}

// CancelResponse interrupts the in-flight response, if any.
func (c *Client) CancelResponse() error {
	return c.send(Event{Type: TypeResponseCancel})
}

// Connected reports whether the websocket is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil
}

// Close tears the connection down. Safe to call more than once; the read
// loop will not report a disconnect for a deliberate close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
