package realtime

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

func wsServer(t *testing.T, fn func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		fn(r, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var ev Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("server read: %v", err)
	}
	return ev
}

func TestConnectSendsSessionUpdate(t *testing.T) {
	type dialInfo struct {
		model string
		token string
		auth  string
		beta  string
		ev    Event
	}
	infoCh := make(chan dialInfo, 1)

	srv := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		info := dialInfo{
			model: r.URL.Query().Get("model"),
			token: r.URL.Query().Get("access_token"),
			auth:  r.Header.Get("Authorization"),
			beta:  r.Header.Get("OpenAI-Beta"),
			ev:    readEvent(t, conn),
		}
		infoCh <- info
		conn.WriteJSON(Event{Type: TypeSessionCreated, Session: &Session{ID: "sess_123"}})
	})

	created := make(chan string, 1)
	c := NewClient(Config{
		URL:         srv.URL,
		Model:       "gpt-4o-realtime-preview-2024-10-01",
		APIKey:      "sk-test",
		AccessToken: "tok-1",
	}, Handler{
		OnSessionCreated: func(id string) { created <- id },
	})
	defer c.Close()

	sess := DefaultSessionConfig("alloy", "be helpful")
	if err := c.Connect(context.Background(), sess); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Fatal("client should be connected")
	}

	info := <-infoCh
	if info.model != "gpt-4o-realtime-preview-2024-10-01" {
		t.Errorf("model query = %q", info.model)
	}
	if info.token != "tok-1" {
		t.Errorf("access_token query = %q", info.token)
	}
	if info.auth != "Bearer sk-test" {
		t.Errorf("authorization header = %q", info.auth)
	}
	if info.beta != "realtime=v1" {
		t.Errorf("beta header = %q", info.beta)
	}

	if info.ev.Type != TypeSessionUpdate {
		t.Fatalf("first event = %q, want session.update", info.ev.Type)
	}
	if info.ev.Session == nil || info.ev.Session.Voice != "alloy" {
		t.Fatalf("session.update voice wrong: %+v", info.ev.Session)
	}
	td := info.ev.Session.TurnDetection
	if td == nil || td.Type != "server_vad" || td.Threshold != 0.5 ||
		td.PrefixPaddingMS != 300 || td.SilenceDurationMS != 800 {
		t.Fatalf("turn detection = %+v", td)
	}

	select {
	case id := <-created:
		if id != "sess_123" {
			t.Fatalf("session id = %q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnSessionCreated never fired")
	}
}

func TestDispatchCallbacks(t *testing.T) {
	srv := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		readEvent(t, conn) // session.update
		events := []Event{
			{Type: TypeSessionUpdated},
			{Type: TypeAudioDelta, ItemID: "item_1", Delta: base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})},
			{Type: TypeTranscriptDelta, ItemID: "item_1", Delta: "Hello"},
			{Type: TypeTranscriptDone, ItemID: "item_1", Transcript: "Hello there."},
			{Type: TypeSpeechStarted},
			{Type: TypeSpeechDone},
			{Type: TypeCommitDone},
			{Type: TypeResponseDone},
			{Type: TypeError, Error: &ErrorDetail{Code: ErrCodeCancelNotActive, Message: "nothing to cancel"}},
		}
		for i := range events {
			if err := conn.WriteJSON(&events[i]); err != nil {
				return
			}
		}
	})

	calls := make(chan string, 16)
	c := NewClient(Config{URL: srv.URL}, Handler{
		OnSessionUpdated: func() { calls <- "updated" },
		OnAudioDelta: func(itemID string, pcm []byte) {
			if itemID == "item_1" && len(pcm) == 4 && pcm[0] == 1 {
				calls <- "audio"
			} else {
				calls <- "audio-bad"
			}
		},
		OnTranscriptDelta: func(itemID, delta string) { calls <- "delta:" + delta },
		OnTranscriptDone:  func(itemID, tr string) { calls <- "done:" + tr },
		OnSpeechStarted:   func() { calls <- "speech-start" },
		OnSpeechDone:      func() { calls <- "speech-done" },
		OnCommitDone:      func() { calls <- "commit" },
		OnResponseDone:    func() { calls <- "resp-done" },
		OnAPIError:        func(e *ErrorDetail) { calls <- "err:" + e.Code },
	})
	defer c.Close()

	if err := c.Connect(context.Background(), DefaultSessionConfig("alloy", "")); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	want := []string{
		"updated", "audio", "delta:Hello", "done:Hello there.",
		"speech-start", "speech-done", "commit", "resp-done",
		"err:" + ErrCodeCancelNotActive,
	}
	for _, w := range want {
		select {
		case got := <-calls:
			if got != w {
				t.Fatalf("callback = %q, want %q", got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestSendersEncodeEvents(t *testing.T) {
	received := make(chan Event, 8)
	srv := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		readEvent(t, conn) // session.update
		for i := 0; i < 5; i++ {
			received <- readEvent(t, conn)
		}
	})

	c := NewClient(Config{URL: srv.URL}, Handler{})
	defer c.Close()
	if err := c.Connect(context.Background(), DefaultSessionConfig("ballad", "")); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := c.AppendAudio([]byte{0x10, 0x20}); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	if err := c.CommitAudio(); err != nil {
		t.Fatalf("CommitAudio: %v", err)
	}
	if err := c.CreateUserItem("hi there"); err != nil {
		t.Fatalf("CreateUserItem: %v", err)
	}
	if err := c.CreateResponse("greet the user"); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if err := c.CancelResponse(); err != nil {
		t.Fatalf("CancelResponse: %v", err)
	}

	next := func() Event {
		select {
		case ev := <-received:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("server never received event")
			return Event{}
		}
	}

	ev := next()
	if ev.Type != TypeInputAudioAppend {
		t.Fatalf("type = %q", ev.Type)
	}
	if raw, _ := base64.StdEncoding.DecodeString(ev.Audio); len(raw) != 2 || raw[0] != 0x10 {
		t.Fatalf("audio payload = %q", ev.Audio)
	}

	if ev = next(); ev.Type != TypeInputAudioCommit {
		t.Fatalf("type = %q", ev.Type)
	}

	ev = next()
	if ev.Type != TypeConversationItemCreate {
		t.Fatalf("type = %q", ev.Type)
	}
	if ev.Item == nil || ev.Item.Role != "user" || len(ev.Item.Content) != 1 ||
		ev.Item.Content[0].Type != "input_text" || ev.Item.Content[0].Text != "hi there" {
		t.Fatalf("item = %+v", ev.Item)
	}

	ev = next()
	if ev.Type != TypeResponseCreate {
		t.Fatalf("type = %q", ev.Type)
	}
	if ev.Response == nil || ev.Response.Instructions != "greet the user" ||
		len(ev.Response.Modalities) != 2 {
		t.Fatalf("response = %+v", ev.Response)
	}

	if ev = next(); ev.Type != TypeResponseCancel {
		t.Fatalf("type = %q", ev.Type)
	}
}

func TestConnectRetriesThenFails(t *testing.T) {
	c := NewClient(Config{
		URL:         "ws://127.0.0.1:1",
		MaxAttempts: 2,
		RetryPause:  10 * time.Millisecond,
	}, Handler{})

	start := time.Now()
	err := c.Connect(context.Background(), DefaultSessionConfig("alloy", ""))
	if err == nil {
		t.Fatal("expected connect error")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("error = %v, want attempt count", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("elapsed %v, expected at least one retry pause", elapsed)
	}
}

func TestCloseSuppressesDisconnect(t *testing.T) {
	srv := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		readEvent(t, conn)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	disconnected := make(chan error, 1)
	c := NewClient(Config{URL: srv.URL}, Handler{
		OnDisconnect: func(err error) { disconnected <- err },
	})
	if err := c.Connect(context.Background(), DefaultSessionConfig("alloy", "")); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case err := <-disconnected:
		t.Fatalf("OnDisconnect fired for deliberate close: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := c.AppendAudio([]byte{1}); err != ErrClosed {
		t.Fatalf("AppendAudio after close = %v, want ErrClosed", err)
	}
}
