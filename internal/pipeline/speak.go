package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audio"
	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

// ErrFirstTokenTimeout is returned when the LLM never produces a first
// token within settings.LLM.FirstTokenTimeout.
var ErrFirstTokenTimeout = errors.New("pipeline: llm first-token timeout")

// ErrInterTokenTimeout is returned when the LLM stalls between tokens
// for longer than settings.LLM.InterTokenTimeout.
var ErrInterTokenTimeout = errors.New("pipeline: llm inter-token timeout")

// GenerateAndSpeak adds the caller's utterance to the conversation,
// streams a reply from the LLM, and speaks each completed sentence as
// soon as it's available rather than waiting for the whole reply —
// the same producer/consumer overlap as an incremental read-aloud.
// A concurrent barge-in watch cancels generation and playback the
// moment the caller interrupts; the returned bool reports whether that
// happened. The partial or complete reply is always recorded in the
// conversation history: the text the LLM streamed, whether or not all
// of it was played.
func (p *Pipeline) GenerateAndSpeak(ctx context.Context, userText string) (string, bool, error) {
	p.sess.Context.AddUser(userText)

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.sess.ClearBargeIn()
	p.sess.SetSpeaking(true)
	defer p.sess.SetSpeaking(false)

	var monitorDone chan struct{}
	if p.settings.VAD.BargeInEnabled {
		monitorDone = make(chan struct{})
		go func() {
			defer close(monitorDone)
			p.monitorBargeIn(genCtx, cancel)
		}()
	}

	tokens, llmErrs := p.llm.GenerateStreaming(genCtx, p.sess.Context.Messages())

	sentences := make(chan string, sentenceQueueCapacity)
	var responseText strings.Builder
	producerDone := make(chan error, 1)
	go p.runProducer(genCtx, cancel, tokens, llmErrs, sentences, &responseText, producerDone)

	pc := newPacer(p.settings.Audio.OutputSampleRate)
	consumerDone := make(chan error, 1)
	go p.runConsumer(genCtx, sentences, pc, consumerDone)

	producerErr := <-producerDone
	consumerErr := <-consumerDone
	if monitorDone != nil {
		<-monitorDone
	}

	interrupted := p.sess.BargeInPending()
	p.sess.ClearBargeIn()

	finalText := strings.TrimSpace(responseText.String())
	if finalText != "" {
		p.sess.Context.AddAssistant(finalText)
	}

	p.sess.Metrics.IncLLMCalls()
	if p.metrics != nil {
		p.metrics.LLMCalls.Inc()
	}

	if producerErr != nil && !errors.Is(producerErr, context.Canceled) {
		return finalText, interrupted, producerErr
	}
	if consumerErr != nil && !errors.Is(consumerErr, context.Canceled) {
		return finalText, interrupted, consumerErr
	}
	return finalText, interrupted, nil
}

// runProducer drains the LLM's token stream into the sentence buffer,
// enforcing the first-token and inter-token deadlines by racing the
// channel against a timer that's re-armed after every token.
func (p *Pipeline) runProducer(
	ctx context.Context,
	cancel context.CancelFunc,
	tokens <-chan string,
	llmErrs <-chan error,
	sentences chan<- string,
	responseText *strings.Builder,
	done chan<- error,
) {
	defer close(sentences)

	buf := dialogue.NewSentence(p.settings.TTS.MinSentenceLength, p.settings.TTS.SentenceDelimiters)
	firstToken := true
	timer := time.NewTimer(p.settings.LLM.FirstTokenTimeout)
	defer timer.Stop()

	flush := func() {
		if rem := buf.Flush(); rem != "" {
			select {
			case sentences <- rem:
			case <-ctx.Done():
			}
		}
	}

	for {
		select {
		case tok, ok := <-tokens:
			if !ok {
				flush()
				done <- nil
				return
			}
			firstToken = false
			responseText.WriteString(tok)
			for _, s := range buf.Push(tok) {
				select {
				case sentences <- s:
				case <-ctx.Done():
					done <- ctx.Err()
					return
				}
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.settings.LLM.InterTokenTimeout)

		case err := <-llmErrs:
			flush()
			done <- err
			return

		case <-timer.C:
			cancel()
			if firstToken {
				done <- ErrFirstTokenTimeout
			} else {
				done <- ErrInterTokenTimeout
			}
			return

		case <-ctx.Done():
			done <- ctx.Err()
			return
		}
	}
}

// runConsumer synthesizes and speaks each sentence as it arrives,
// pacing outbound audio to real time across the whole response.
func (p *Pipeline) runConsumer(ctx context.Context, sentences <-chan string, pc *pacer, done chan<- error) {
	for sentence := range sentences {
		if ctx.Err() != nil {
			continue // drain without synthesizing once cancelled
		}
		if err := p.speakSentence(ctx, sentence, pc); err != nil {
			if ctx.Err() == nil {
				done <- err
				return
			}
		}
	}
	done <- nil
}

// speakSentence synthesizes and paces out one sentence. A watchdog
// guards the SPEAKING state itself: if StreamSynthesize goes silent
// for settings.Timeouts.SpeakingSafety with no chunk delivered, the
// call is cancelled rather than wedging the session indefinitely. The
// watchdog resets on every chunk, so it bounds staleness, not total
// reply length.
func (p *Pipeline) speakSentence(ctx context.Context, text string, pc *pacer) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan struct{}, 1)
	stuck := make(chan struct{})
	stalled := false
	go func() {
		defer close(stuck)
		timer := time.NewTimer(p.settings.Timeouts.SpeakingSafety)
		defer timer.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-progress:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(p.settings.Timeouts.SpeakingSafety)
			case <-timer.C:
				stalled = true
				cancel()
				return
			}
		}
	}()

	onChunk := func(raw []byte) error {
		select {
		case progress <- struct{}{}:
		default:
		}
		samples := audio.F32Normalize(audio.BytesToI16(raw))
		out := audio.ProcessOutbound(samples, p.settings.Audio.TTSOutputRate, p.settings.Audio.OutputSampleRate, p.filter)
		p.echo.RecordPlayedAudio(out)
		for _, piece := range audio.Chunk(out, pacedChunkBytes) {
			if err := pc.send(watchCtx, p, piece); err != nil {
				return err
			}
		}
		return nil
	}

	err := p.tts.StreamSynthesize(watchCtx, text, p.settings.TTS.Voice, "en", onChunk)
	cancel()
	<-stuck

	p.sess.Metrics.IncTTSCalls()
	if p.metrics != nil {
		p.metrics.TTSCalls.Inc()
	}
	if stalled && ctx.Err() == nil {
		return errSpeakingStalled
	}
	return err
}

// errSpeakingStalled is returned when the SPEAKING-state watchdog
// fired: StreamSynthesize stopped delivering chunks without the
// caller's context being cancelled.
var errSpeakingStalled = errors.New("pipeline: speaking stalled past safety timeout")

// SpeakText synthesizes and plays a fixed line — a greeting, goodbye,
// menu confirmation, or apology — without touching the LLM or the
// conversation history. Barge-in is honored exactly as it is for a
// generated reply, and the returned bool reports whether the caller
// interrupted it.
func (p *Pipeline) SpeakText(ctx context.Context, text string) (bool, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.sess.ClearBargeIn()
	p.sess.SetSpeaking(true)
	defer p.sess.SetSpeaking(false)

	var monitorDone chan struct{}
	if p.settings.VAD.BargeInEnabled {
		monitorDone = make(chan struct{})
		go func() {
			defer close(monitorDone)
			p.monitorBargeIn(genCtx, cancel)
		}()
	}

	pc := newPacer(p.settings.Audio.OutputSampleRate)
	err := p.speakSentence(genCtx, text, pc)
	if monitorDone != nil {
		<-monitorDone
	}

	interrupted := p.sess.BargeInPending()
	p.sess.ClearBargeIn()

	if err != nil && !errors.Is(err, context.Canceled) {
		return interrupted, err
	}
	return interrupted, nil
}
