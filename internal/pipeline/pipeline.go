// Package pipeline drives one call end to end: listening for the
// caller's utterance and transcribing it, generating and speaking the
// response with streaming overlap between the LLM and TTS stages, and
// watching for the caller barging in while the bot is talking.
package pipeline

import (
	"sync"

	"github.com/lokutor-ai/payphoned/internal/audio"
	"github.com/lokutor-ai/payphoned/internal/audiosocket"
	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/providers/llm"
	"github.com/lokutor-ai/payphoned/internal/providers/stt"
	"github.com/lokutor-ai/payphoned/internal/providers/tts"
	"github.com/lokutor-ai/payphoned/internal/session"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

// sentenceQueueCapacity bounds how far TTS synthesis may lag behind LLM
// token generation before the producer blocks.
const sentenceQueueCapacity = 5

// leadBytes is how much audio immediately preceding a confirmed VAD
// speech-start event is kept for the echo double-check and carried
// forward as the caller's captured barge-in audio, so a quick "wait—"
// isn't clipped at the very start.
const leadBytes = 1600 // 100ms at 8kHz mono 16-bit PCM

// pacedChunkBytes is the payload size of one paced outbound chunk; the
// pacer throttles SendAudio so each one goes out at real-time speed.
const pacedChunkBytes = 320 // 20ms at 8kHz mono 16-bit

// Pipeline drives one AudioSocket call: listen, transcribe, generate,
// speak, with a concurrent barge-in watch while the bot is talking.
type Pipeline struct {
	conn     *audiosocket.Connection
	sess     *session.Session
	settings *config.Settings
	vadPool  *vad.Pool
	echo     *vad.EchoSuppressor
	filter   *audio.TelephoneFilter

	stt stt.Provider
	llm llm.Provider
	tts tts.Provider

	logger  telemetry.Logger
	metrics *telemetry.Metrics

	mu                sync.Mutex
	pendingBargeAudio []byte // captured lead-in audio from a confirmed barge-in; consumed by the next ListenAndTranscribe
}

// New assembles a Pipeline for one call. The STT provider's sample
// rate is pinned to settings.Audio.STTSampleRate.
func New(
	conn *audiosocket.Connection,
	sess *session.Session,
	settings *config.Settings,
	vadPool *vad.Pool,
	sttProvider stt.Provider,
	llmProvider llm.Provider,
	ttsProvider tts.Provider,
	logger telemetry.Logger,
	metrics *telemetry.Metrics,
) *Pipeline {
	sttProvider.SetSampleRate(settings.Audio.STTSampleRate)
	if logger == nil {
		logger = telemetry.NoOpLogger{}
	}
	return &Pipeline{
		conn:     conn,
		sess:     sess,
		settings: settings,
		vadPool:  vadPool,
		echo:     vad.NewEchoSuppressor(),
		filter: audio.NewTelephoneFilter(
			settings.Audio.TelephoneLowcutHz,
			settings.Audio.TelephoneHighcutHz,
			float64(settings.Audio.OutputSampleRate),
		),
		stt:     sttProvider,
		llm:     llmProvider,
		tts:     ttsProvider,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *Pipeline) takePendingBargeAudio() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.pendingBargeAudio
	p.pendingBargeAudio = nil
	return buf
}

func (p *Pipeline) setPendingBargeAudio(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingBargeAudio = append([]byte(nil), b...)
}
