package genlive

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveServer fakes the upstream Live API: it validates the key query param,
// captures the setup handshake and hands the server side of the socket to
// the test.
type liveServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	setups chan setupMessage
	keys   chan string
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	ls := &liveServer{
		conns:  make(chan *websocket.Conn, 2),
		setups: make(chan setupMessage, 2),
		keys:   make(chan string, 2),
	}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.keys <- r.URL.Query().Get("key")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var setup setupMessage
		if err := json.Unmarshal(data, &setup); err != nil {
			t.Errorf("decode setup: %v", err)
			return
		}
		ls.setups <- setup
		ls.conns <- conn
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *liveServer) endpoint() string {
	return "ws" + strings.TrimPrefix(ls.srv.URL, "http")
}

func (ls *liveServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ls.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
		return nil
	}
}

func (ls *liveServer) waitSetup(t *testing.T) setupMessage {
	t.Helper()
	select {
	case setup := <-ls.setups:
		return setup
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for setup handshake")
		return setupMessage{}
	}
}

func serverSend(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(payload)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func waitEvent(t *testing.T, events <-chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		if got != want {
			t.Fatalf("event=%q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q event", want)
	}
}

func TestConnectScenario(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "test-key", Endpoint: ls.endpoint()}, nil)

	events := make(chan string, 16)
	audioCh := make(chan []byte, 4)
	contentCh := make(chan ContentEvent, 4)
	client.OnOpen(func() { events <- "open" })
	client.OnSetupComplete(func() { events <- "setupcomplete" })
	client.OnAudio(func(pcm []byte) {
		events <- "audio"
		audioCh <- pcm
	})
	client.OnContent(func(envelope ContentEvent) {
		events <- "content"
		contentCh <- envelope
	})

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Disconnect()

	if key := <-ls.keys; key != "test-key" {
		t.Fatalf("key query param=%q, want %q", key, "test-key")
	}
	setup := ls.waitSetup(t)
	if setup.Setup.Model != "models/test-live" {
		t.Fatalf("setup model=%q, want %q", setup.Setup.Model, "models/test-live")
	}
	if setup.SystemPrompt != defaultSystemPrompt {
		t.Fatalf("systemPrompt=%q, want built-in default", setup.SystemPrompt)
	}
	waitEvent(t, events, "open")

	conn := ls.waitConn(t)
	serverSend(t, conn, `{"setupComplete":{}}`)
	waitEvent(t, events, "setupcomplete")

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	serverSend(t, conn, fmt.Sprintf(
		`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=16000","data":"%s"}}]}}}`,
		base64.StdEncoding.EncodeToString(pcm)))

	waitEvent(t, events, "audio")
	waitEvent(t, events, "content")

	if got := <-audioCh; !bytes.Equal(got, pcm) {
		t.Fatalf("audio bytes=%v, want %v", got, pcm)
	}
	envelope := <-contentCh
	if got := len(envelope.ModelTurn.Parts); got != 1 {
		t.Fatalf("content parts=%d, want 1", got)
	}
}

func TestConnectSendsSuppliedSystemPrompt(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	err := client.Connect(context.Background(), SessionConfig{
		Model:        "models/test-live",
		SystemPrompt: "You are a pirate.",
	})
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Disconnect()

	setup := ls.waitSetup(t)
	if setup.SystemPrompt != "You are a pirate." {
		t.Fatalf("systemPrompt=%q, want the supplied prompt", setup.SystemPrompt)
	}
}

func TestConnectFailsFastWhenAlreadyConnected(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Disconnect()

	err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"})
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second Connect error=%v, want ErrAlreadyConnected", err)
	}
}

func TestConnectRejectsEmptyModel(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, nil)
	if err := client.Connect(context.Background(), SessionConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Connect error=%v, want ErrInvalidConfig", err)
	}
}

func TestConnectTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil)
	opened := false
	client.OnOpen(func() { opened = true })

	err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"})
	if err == nil {
		t.Fatal("Connect error=nil, want non-nil")
	}
	if opened {
		t.Fatal("open emitted despite transport failure")
	}
	if client.IsConnected() {
		t.Fatal("IsConnected=true after failed connect")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, nil)

	if err := client.SendText("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendText error=%v, want ErrNotConnected", err)
	}
	if err := client.SendRealtimeInput([]Blob{{MIMEType: "audio/pcm;rate=16000", Data: "AAA="}}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendRealtimeInput error=%v, want ErrNotConnected", err)
	}
	if err := client.SendToolResponse(ToolResponse{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendToolResponse error=%v, want ErrNotConnected", err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	closeEvents := make(chan string, 4)
	client.OnClose(func(reason string) { closeEvents <- reason })

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	ls.waitConn(t)

	if !client.Disconnect() {
		t.Fatal("first Disconnect=false, want true")
	}
	if client.Disconnect() {
		t.Fatal("second Disconnect=true, want false")
	}
	if err := client.SendText("late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send after disconnect error=%v, want ErrNotConnected", err)
	}

	select {
	case reason := <-closeEvents:
		t.Fatalf("close event %q emitted for caller-initiated disconnect", reason)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnsolicitedCloseEmitsCloseEvent(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	closeEvents := make(chan string, 1)
	client.OnClose(func(reason string) { closeEvents <- reason })

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := ls.waitConn(t)

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server going away")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		t.Fatalf("server close: %v", err)
	}

	select {
	case reason := <-closeEvents:
		if reason != "server going away" {
			t.Fatalf("close reason=%q, want %q", reason, "server going away")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close event")
	}

	if err := client.SendText("late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send after unsolicited close error=%v, want ErrNotConnected", err)
	}
}

func TestNonBlobFramesDropped(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	toolCalls := make(chan ToolCall, 1)
	client.OnToolCall(func(call ToolCall) { toolCalls <- call })

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Disconnect()
	conn := ls.waitConn(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"toolCall":{"functionCalls":[{"name":"ignored"}]}}`)); err != nil {
		t.Fatalf("server write: %v", err)
	}
	serverSend(t, conn, `{"toolCall":{"functionCalls":[{"name":"kept"}]}}`)

	select {
	case call := <-toolCalls:
		if call.FunctionCalls[0].Name != "kept" {
			t.Fatalf("tool call name=%q, want %q (text frame must be dropped)", call.FunctionCalls[0].Name, "kept")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tool call after dropped text frame")
	}
}

func TestSendClientContentWireShape(t *testing.T) {
	ls := newLiveServer(t)
	client := NewClient(Config{APIKey: "k", Endpoint: ls.endpoint()}, nil)

	if err := client.Connect(context.Background(), SessionConfig{Model: "models/test-live"}); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Disconnect()
	conn := ls.waitConn(t)

	turnComplete := false
	if err := client.SendClientContent(ClientContentInput{
		Parts:        []Part{{Text: "one"}, {Text: "two"}},
		TurnComplete: &turnComplete,
	}); err != nil {
		t.Fatalf("SendClientContent error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var decoded clientContentMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode clientContent: %v", err)
	}
	turn := decoded.ClientContent.Turns[0]
	if turn.Role != "user" || len(turn.Parts) != 2 || decoded.ClientContent.TurnComplete {
		t.Fatalf("wire message=%+v, want user turn with 2 parts and turnComplete=false", decoded)
	}
}
