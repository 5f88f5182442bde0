package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestLokutorStreamSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]any
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5, 6})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	p := &Lokutor{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
	}

	var audio []byte
	err := p.StreamSynthesize(context.Background(), "hello", "F1", "en", func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) != 6 {
		t.Errorf("expected 6 bytes, got %d", len(audio))
	}
	if p.Name() != "lokutor" {
		t.Errorf("expected lokutor, got %s", p.Name())
	}
	p.Close()
}

func TestLokutorAbortStopsInFlightStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]any
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		conn.Write(r.Context(), websocket.MessageBinary, []byte{1})
		// Never send EOS; hang until the client aborts.
		<-r.Context().Done()
	}))
	defer server.Close()

	p := &Lokutor{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
	}

	done := make(chan error, 1)
	go func() {
		done <- p.StreamSynthesize(context.Background(), "hello", "F1", "en", func(chunk []byte) error {
			p.Abort()
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean return on abort, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("abort did not unblock the stream")
	}
}
