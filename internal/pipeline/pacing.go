package pipeline

import (
	"context"
	"time"
)

// pacingLagWarning is how far behind real time the outbound sender can
// drift before it logs a warning. It never aborts playback on its own
// — a caller busy elsewhere on the network is not a reason to drop audio.
const pacingLagWarning = 500 * time.Millisecond

// pacer throttles outbound AUDIO frames to real time across an entire
// spoken response (not reset per sentence), so synthesis racing ahead
// of playback doesn't flood the switch.
type pacer struct {
	start      time.Time
	bytesSent  int
	sampleRate int
	warned     bool
}

func newPacer(sampleRate int) *pacer {
	return &pacer{start: time.Now(), sampleRate: sampleRate}
}

// send writes one chunk and sleeps just long enough to keep cumulative
// playback time in sync with cumulative wall-clock time.
func (pc *pacer) send(ctx context.Context, p *Pipeline, chunk []byte) error {
	if err := p.conn.SendAudio(chunk); err != nil {
		return err
	}
	pc.bytesSent += len(chunk)

	expectedElapsed := time.Duration(pc.bytesSent) * time.Second / time.Duration(pc.sampleRate*2)
	actualElapsed := time.Since(pc.start)
	lag := actualElapsed - expectedElapsed

	if lag > pacingLagWarning && !pc.warned {
		pc.warned = true
		p.logger.Warn("pacer: outbound audio falling behind real time", "call", p.sess.CallID, "lagMs", lag.Milliseconds())
	} else if lag <= pacingLagWarning {
		pc.warned = false
	}

	wait := expectedElapsed - actualElapsed
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
