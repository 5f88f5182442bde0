package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audiosocket"
	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/dialogue"
	"github.com/lokutor-ai/payphoned/internal/providers/llm"
	"github.com/lokutor-ai/payphoned/internal/providers/stt"
	"github.com/lokutor-ai/payphoned/internal/providers/tts"
	"github.com/lokutor-ai/payphoned/internal/providersetup"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"

	"github.com/google/uuid"
)

type fakeTTS struct{}

func (fakeTTS) Name() string { return "fake-tts" }
func (fakeTTS) StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error {
	return onChunk(make([]byte, 320))
}
func (fakeTTS) Abort()       {}
func (fakeTTS) Close() error { return nil }

type fakeLLM struct{}

func (fakeLLM) Name() string { return "fake-llm" }
func (fakeLLM) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error)
	close(tokens)
	close(errs)
	return tokens, errs
}

type fakeSTT struct{ rate int }

func (s *fakeSTT) Name() string           { return "fake-stt" }
func (s *fakeSTT) SampleRate() int        { return s.rate }
func (s *fakeSTT) SetSampleRate(rate int) { s.rate = rate }
func (s *fakeSTT) Transcribe(ctx context.Context, audioPCM []byte, lang string) (stt.Result, error) {
	return stt.Result{}, nil
}

func testServerSettings() *config.Settings {
	return &config.Settings{
		Audio: config.Audio{
			AudioSocketHost:  "127.0.0.1",
			AudioSocketPort:  0,
			TTSOutputRate:    8000,
			OutputSampleRate: 8000,
			InputSampleRate:  8000,
		},
		VAD: config.VAD{
			BargeInEnabled: false,
			PoolSize:       1,
		},
		LLM: config.LLM{
			FirstTokenTimeout: time.Second,
			InterTokenTimeout: time.Second,
		},
		TTS: config.TTS{
			Voice:              "af_bella",
			MinSentenceLength:  1,
			SentenceDelimiters: ".!?",
		},
		Timeouts: config.Timeouts{
			SpeakingSafety:  time.Second,
			DTMFInterDigit:  time.Second,
			SilencePrompt:   20 * time.Millisecond,
			SilenceGoodbye:  40 * time.Millisecond,
			MaxCallDuration: time.Nanosecond, // ends every accepted call almost immediately
		},
	}
}

func fakeFactory() providersetup.Factory {
	return func() (stt.Provider, llm.Provider, tts.Provider) {
		return &fakeSTT{}, fakeLLM{}, fakeTTS{}
	}
}

func TestShutdownIsIdempotentWithoutListener(t *testing.T) {
	srv := New(testServerSettings(), vad.NewPool(1), nil, telemetry.NoOpLogger{}, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on second Shutdown call: %v", err)
	}
}

func TestTrackAndUntrackConnection(t *testing.T) {
	srv := New(testServerSettings(), vad.NewPool(1), nil, telemetry.NoOpLogger{}, nil)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.trackConnection("call-1", cancel)
	srv.mu.Lock()
	n := len(srv.conns)
	srv.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected one tracked connection, got %d", n)
	}

	srv.untrackConnection("call-1")
	srv.mu.Lock()
	n = len(srv.conns)
	srv.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected connection removed, got %d remaining", n)
	}
}

func TestListenAndServeAcceptsCallAndShutsDownCleanly(t *testing.T) {
	settings := testServerSettings()
	srv := New(settings, vad.NewPool(1), fakeFactory(), telemetry.NoOpLogger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()

	var addr string
	for i := 0; i < 200; i++ {
		srv.mu.Lock()
		ln := srv.listener
		srv.mu.Unlock()
		if ln != nil {
			addr = ln.Addr().String()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	defer client.Close()

	if err := audiosocket.WriteFrame(client, audiosocket.TypeUUID, []byte(uuid.NewString())); err != nil {
		t.Fatalf("failed to write uuid frame: %v", err)
	}

	// Drain whatever the call writes back (it should hang up almost
	// immediately since MaxCallDuration is effectively zero).
	go func() {
		buf := make([]byte, 4096)
		for {
			client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	cancel()

	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
