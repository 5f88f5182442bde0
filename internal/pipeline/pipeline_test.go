package pipeline

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
	"github.com/lokutor-ai/payphoned/internal/session"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

type fakeTTS struct {
	chunks [][]byte
}

func (f *fakeTTS) Name() string { return "fake-tts" }
func (f *fakeTTS) StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error {
	if len(f.chunks) == 0 {
		return onChunk(make([]byte, 320))
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeTTS) Abort()       {}
func (f *fakeTTS) Close() error { return nil }

type fakeLLM struct {
	tokens []string
}

func (f *fakeLLM) Name() string { return "fake-llm" }
func (f *fakeLLM) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	tokens := make(chan string, len(f.tokens))
	errs := make(chan error, 1)
	for _, t := range f.tokens {
		tokens <- t
	}
	close(tokens)
	close(errs)
	return tokens, errs
}

func testPipelineSettings() *config.Settings {
	return &config.Settings{
		Audio: config.Audio{
			TTSOutputRate:    8000,
			OutputSampleRate: 8000,
			InputSampleRate:  8000,
		},
		VAD: config.VAD{
			BargeInEnabled: false,
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
			SpeakingSafety: time.Second,
			DTMFInterDigit: time.Second,
		},
	}
}

// newTestPipeline wires a Pipeline over a net.Pipe connection, draining
// the far end so SendAudio never blocks.
func newTestPipeline(t *testing.T, ttsProvider tts.Provider, llmProvider llm.Provider) *Pipeline {
	t.Helper()
	switchSide, farSide := net.Pipe()
	t.Cleanup(func() { switchSide.Close(); farSide.Close() })

	stop := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			select {
			case <-stop:
				return
			default:
			}
			farSide.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			if _, err := farSide.Read(buf); err != nil {
				continue
			}
		}
	}()

	conn := audiosocket.NewConnection(switchSide, telemetry.NoOpLogger{}, func() {}, func() {})
	t.Cleanup(func() { close(stop) })

	settings := testPipelineSettings()
	sess := session.New("call-1", settings)
	vadPool := vad.NewPool(1)

	var sttProvider stt.Provider = &noopSTT{}
	p := New(conn, sess, settings, vadPool, sttProvider, llmProvider, ttsProvider, telemetry.NoOpLogger{}, nil)
	return p
}

type noopSTT struct{ rate int }

func (s *noopSTT) Name() string                { return "noop-stt" }
func (s *noopSTT) SampleRate() int             { return s.rate }
func (s *noopSTT) SetSampleRate(rate int)      { s.rate = rate }
func (s *noopSTT) Transcribe(ctx context.Context, audioPCM []byte, lang string) (stt.Result, error) {
	return stt.Result{}, nil
}

func TestSpeakTextPlaysWithoutTouchingHistory(t *testing.T) {
	p := newTestPipeline(t, &fakeTTS{}, &fakeLLM{})

	interrupted, err := p.SpeakText(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interrupted {
		t.Error("expected no barge-in with BargeInEnabled false")
	}
	if len(p.sess.Context.Messages()) != 1 {
		t.Errorf("expected SpeakText not to touch conversation history, got %d messages", len(p.sess.Context.Messages()))
	}
}

func TestGenerateAndSpeakRecordsReply(t *testing.T) {
	p := newTestPipeline(t, &fakeTTS{}, &fakeLLM{tokens: []string{"Hi", " there.", " "}})

	reply, interrupted, err := p.GenerateAndSpeak(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interrupted {
		t.Error("expected no barge-in with BargeInEnabled false")
	}
	if reply != "Hi there." {
		t.Errorf("unexpected reply text: %q", reply)
	}
	msgs := p.sess.Context.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected system+user+assistant messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "Hi there." {
		t.Errorf("unexpected assistant message: %+v", msgs[2])
	}
}

func TestSpeakSentenceStallWatchdogFires(t *testing.T) {
	settings := testPipelineSettings()
	settings.Timeouts.SpeakingSafety = 10 * time.Millisecond

	switchSide, farSide := net.Pipe()
	defer switchSide.Close()
	defer farSide.Close()
	go func() {
		buf := make([]byte, 4096)
		for {
			farSide.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
			if _, err := farSide.Read(buf); err != nil {
				if _, ok := err.(net.Error); ok {
					continue
				}
				return
			}
		}
	}()

	conn := audiosocket.NewConnection(switchSide, telemetry.NoOpLogger{}, func() {}, func() {})
	sess := session.New("call-1", settings)
	vadPool := vad.NewPool(1)

	stalling := &stallingTTS{unblock: make(chan struct{})}
	p := New(conn, sess, settings, vadPool, &noopSTT{}, &fakeLLM{}, stalling, telemetry.NoOpLogger{}, nil)

	pc := newPacer(settings.Audio.OutputSampleRate)
	err := p.speakSentence(context.Background(), "hello", pc)
	if err != errSpeakingStalled {
		t.Fatalf("expected errSpeakingStalled, got %v", err)
	}
	close(stalling.unblock)
}

// stallingTTS never delivers a chunk and blocks until told to stop, so
// the SPEAKING watchdog is the only thing that can end the call.
type stallingTTS struct {
	unblock chan struct{}
}

func (s *stallingTTS) Name() string { return "stalling-tts" }
func (s *stallingTTS) StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.unblock:
		return nil
	}
}
func (s *stallingTTS) Abort()       {}
func (s *stallingTTS) Close() error { return nil }
