package pipeline

import (
	"context"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audio"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

// bargeInPollInterval bounds how long monitorBargeIn blocks on one
// ReadAudio call, so it notices ctx cancellation promptly even when
// the caller line is silent.
const bargeInPollInterval = 50 * time.Millisecond

// monitorBargeIn runs for the duration of one spoken response, watching
// for the caller interrupting: a queued DTMF digit, or voice activity
// past a raised threshold that the echo suppressor confirms isn't the
// bot's own audio bleeding back through sidetone. On either, it
// captures a short lead-in of audio (so the caller's first words
// survive into the next listen turn) and cancels the response via
// stop.
func (p *Pipeline) monitorBargeIn(ctx context.Context, stop context.CancelFunc) {
	model, err := p.vadPool.Acquire(ctx)
	if err != nil {
		return
	}
	defer p.vadPool.Release(model)

	state := &vad.SessionState{}
	cfg := vad.Config{
		Threshold:          p.settings.VAD.BargeInThreshold,
		MinSpeechDuration:  int(p.settings.VAD.MinSpeechDuration / time.Millisecond),
		MinSilenceDuration: int(p.settings.VAD.MinSilenceDuration / time.Millisecond),
	}
	rate := p.settings.Audio.InputSampleRate

	var pending []byte // rolling pre-trigger lead-in, capped at leadBytes

	for {
		if ctx.Err() != nil {
			return
		}

		if p.conn.HasDTMF() {
			p.triggerBargeIn(stop, nil)
			return
		}

		chunk, ok := p.conn.ReadAudio(ctx, bargeInPollInterval)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		samples := audio.F32Normalize(audio.BytesToI16(chunk))
		result := model.ProcessChunk(samples, rate, state, cfg)

		switch result.Event {
		case vad.EventSpeechStart:
			candidate := append(append([]byte(nil), pending...), chunk...)
			if p.echo.IsEcho(candidate) {
				pending = pending[:0]
				continue
			}
			p.triggerBargeIn(stop, candidate)
			return
		case vad.EventSpeech, vad.EventSilence:
			pending = append(pending, chunk...)
			if len(pending) > leadBytes {
				pending = pending[len(pending)-leadBytes:]
			}
		}
	}
}

func (p *Pipeline) triggerBargeIn(stop context.CancelFunc, capturedAudio []byte) {
	p.sess.RequestBargeIn()
	if len(capturedAudio) > 0 {
		p.setPendingBargeAudio(capturedAudio)
	}
	p.tts.Abort()
	stop()
}
