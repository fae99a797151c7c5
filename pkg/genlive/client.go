package genlive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the hosted Live API websocket URL. The API key is
	// appended as a query parameter on every connection attempt.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultSystemPrompt = "You are a helpful voice assistant. Keep your answers short and conversational."
)

var (
	// ErrNotConnected is returned from any send attempt with no active
	// transport. Sends are never queued.
	ErrNotConnected = errors.New("genlive: not connected")
	// ErrAlreadyConnected is returned when Connect is called while a live
	// transport handle exists. Disconnect first.
	ErrAlreadyConnected = errors.New("genlive: already connected")
	// ErrInvalidConfig is returned when the session config carries no model.
	ErrInvalidConfig = errors.New("genlive: session config has no model")
)

// Client is a bidirectional streaming client for the Gemini Live API. It
// owns at most one transport handle at a time; all session events are
// delivered through the embedded Emitter channels.
type Client struct {
	Emitter

	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	session *SessionConfig
	writeMu sync.Mutex
}

// NewClient executes the newClient function.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Client{cfg: cfg, logger: logger}
}

// IsConnected reports whether a live transport handle exists.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	return connected
}

// Connect dials the endpoint, sends the setup handshake and starts the read
// loop. It fails fast if a transport handle already exists. The session
// config is captured here and discarded on disconnect.
func (c *Client) Connect(ctx context.Context, session SessionConfig) error {
	if session.Model == "" {
		return ErrInvalidConfig
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	target := c.cfg.Endpoint + "?key=" + url.QueryEscape(c.cfg.APIKey)
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("open live transport: %w", err)
	}

	systemPrompt := session.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	setup := setupMessage{Setup: session, SystemPrompt: systemPrompt}

	c.writeMu.Lock()
	err = conn.WriteJSON(setup)
	c.writeMu.Unlock()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("send setup: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.session = &session
	c.mu.Unlock()

	c.logger.Info("live session connected",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.String("model", session.Model),
	)
	c.emitLog("client.open", session.Model)
	c.emitOpen()

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the active transport if one exists and reports whether a
// close actually occurred. Calling it twice is safe; the second call returns
// false. No close event is emitted for a caller-initiated disconnect.
func (c *Client) Disconnect() bool {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session = nil
	c.mu.Unlock()

	if conn == nil {
		return false
	}
	_ = conn.Close()
	c.logger.Info("live session disconnected")
	c.emitLog("client.close", "disconnect requested")
	return true
}

// SendClientContent sends one user-role turn. A single part is normalized
// into a one-element sequence; the turn-complete flag defaults to true.
func (c *Client) SendClientContent(input ClientContentInput) error {
	return c.sendJSON(newClientContentMessage(input), "client.send.clientContent")
}

// SendText is a convenience wrapper sending one text part as a complete turn.
func (c *Client) SendText(text string) error {
	return c.SendClientContent(ClientContentInput{Parts: []Part{{Text: text}}})
}

// SendRealtimeInput streams media chunks to the model.
func (c *Client) SendRealtimeInput(chunks []Blob) error {
	return c.sendJSON(realtimeInputMessage{RealtimeInput: realtimeInputPayload{MediaChunks: chunks}}, "client.send.realtimeInput")
}

// SendToolResponse answers an earlier tool call.
func (c *Client) SendToolResponse(resp ToolResponse) error {
	return c.sendJSON(toolResponseMessage{ToolResponse: resp}, "client.send.toolResponse")
}

func (c *Client) sendJSON(payload any, logType string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(payload)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	c.emitLog(logType, payload)
	return nil
}

// readLoop processes inbound frames strictly in delivery order until the
// transport fails or is closed.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			unsolicited := c.conn == conn
			if unsolicited {
				c.conn = nil
				c.session = nil
			}
			c.mu.Unlock()
			if unsolicited {
				_ = conn.Close()
				reason := closeReason(err)
				c.logger.Info("live session closed", zap.String("reason", reason))
				c.emitLog("client.close", reason)
				c.emitClose(reason)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			// The protocol only delivers blob frames.
			c.logger.Debug("non-blob frame dropped",
				zap.Int("frame_type", msgType),
				zap.Int("bytes", len(data)),
			)
			c.emitLog("receive.nonBlob", len(data))
			continue
		}
		c.handleMessage(data)
	}
}

func closeReason(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Text != "" {
			return closeErr.Text
		}
		return fmt.Sprintf("close code %d", closeErr.Code)
	}
	return err.Error()
}
