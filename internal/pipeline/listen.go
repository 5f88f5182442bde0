package pipeline

import (
	"context"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audio"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

// ListenAndTranscribe waits for one caller utterance and transcribes
// it. If a barge-in was captured while the bot was last speaking, its
// lead-in audio is preloaded so the caller's first words aren't lost.
// Returns ("", 0, nil) if the caller never spoke before ctx/timeout.
func (p *Pipeline) ListenAndTranscribe(ctx context.Context) (string, float64, error) {
	model, err := p.vadPool.Acquire(ctx)
	if err != nil {
		return "", 0, err
	}
	defer p.vadPool.Release(model)

	state := &vad.SessionState{}
	cfg := vad.Config{
		Threshold:          p.settings.VAD.Threshold,
		MinSpeechDuration:  int(p.settings.VAD.MinSpeechDuration / time.Millisecond),
		MinSilenceDuration: int(p.settings.VAD.MinSilenceDuration / time.Millisecond),
	}
	rate := p.settings.Audio.InputSampleRate

	var utterance []byte
	speaking := false
	if preload := p.takePendingBargeAudio(); len(preload) > 0 {
		utterance = append(utterance, preload...)
		speaking = true
		state.IsSpeaking = true
	}

	deadline := time.Now().Add(p.settings.VAD.MaxUtterance)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.logger.Debug("listen: max utterance duration reached", "call", p.sess.CallID)
			break
		}
		chunk, ok := p.conn.ReadAudio(ctx, remaining)
		if !ok {
			break
		}
		if p.sess.BargeInPending() {
			break
		}

		samples := audio.F32Normalize(audio.BytesToI16(chunk))
		result := model.ProcessChunk(samples, rate, state, cfg)

		switch result.Event {
		case vad.EventSpeechStart:
			speaking = true
			utterance = append(utterance, chunk...)
		case vad.EventSpeech:
			utterance = append(utterance, chunk...)
		case vad.EventSpeechEnd:
			utterance = append(utterance, chunk...)
			p.sess.Metrics.AddSpeechDuration(float64(len(utterance)) / float64(rate*2) * 1000)
			return p.transcribe(ctx, utterance, rate)
		case vad.EventSilence:
			if speaking {
				utterance = append(utterance, chunk...)
			}
		}
	}

	if speaking {
		p.sess.Metrics.AddSpeechDuration(float64(len(utterance)) / float64(rate*2) * 1000)
	}
	return p.transcribe(ctx, utterance, rate)
}

// transcribe resamples the accumulated utterance to the STT provider's
// expected rate and transcribes it. Low-confidence results are still
// returned — callers (the state machine) decide whether to ask the
// caller to repeat themselves.
func (p *Pipeline) transcribe(ctx context.Context, utterance []byte, inputRate int) (string, float64, error) {
	if len(utterance) == 0 {
		return "", 0, nil
	}

	targetRate := p.stt.SampleRate()
	resampled := audio.Resample(audio.F32Normalize(audio.BytesToI16(utterance)), inputRate, targetRate)
	pcm := audio.I16ToBytes(audio.F32Denormalize(resampled))

	start := time.Now()
	res, err := p.stt.Transcribe(ctx, pcm, "")
	if err != nil {
		return "", 0, err
	}

	p.sess.Metrics.IncSTTCalls()
	if p.metrics != nil {
		p.metrics.STTCalls.Inc()
	}
	p.logger.Debug("listen: transcribed utterance",
		"call", p.sess.CallID, "chars", len(res.Text), "confidence", res.Confidence, "elapsed", time.Since(start))

	return res.Text, res.Confidence, nil
}
