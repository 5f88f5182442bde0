package tts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Lokutor streams synthesized audio over a persistent websocket
// connection to the Lokutor TTS service, reconnecting lazily on first
// use or after a failed call.
type Lokutor struct {
	apiKey string
	host   string
	scheme string // "wss" in production; tests point this at a plain "ws" httptest server

	mu         sync.Mutex
	conn       *websocket.Conn
	cancelling context.CancelFunc
}

// NewLokutor creates a Lokutor TTS provider.
func NewLokutor(apiKey string) *Lokutor {
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *Lokutor) Name() string { return "lokutor" }

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

// StreamSynthesize sends one synthesis request and streams binary PCM
// frames to onChunk until the server signals end-of-stream ("EOS") or
// an error.
func (t *Lokutor) StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancelling = cancel
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.cancelling = nil
		t.mu.Unlock()
		cancel()
	}()

	req := map[string]any{
		"text":    text,
		"voice":   voice,
		"lang":    lang,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}

	if err := wsjson.Write(callCtx, conn, req); err != nil {
		t.dropConn(conn)
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(callCtx)
		if err != nil {
			t.dropConn(conn)
			if callCtx.Err() != nil && ctx.Err() == nil {
				// Cancelled via Abort, not by the caller's ctx: a clean
				// interruption, not an error.
				return nil
			}
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *Lokutor) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close(websocket.StatusAbnormalClosure, "")
}

// Abort cancels whichever StreamSynthesize call is currently in
// flight, if any.
func (t *Lokutor) Abort() {
	t.mu.Lock()
	cancel := t.cancelling
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Lokutor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
