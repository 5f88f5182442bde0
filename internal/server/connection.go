package server

import (
	"net"

	"github.com/lokutor-ai/payphoned/internal/audiosocket"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
)

// newConnection wires an accepted net.Conn into an audiosocket.Connection,
// counting dropped audio/DTMF frames at the package level since that's
// a server-wide signal of switch-side backpressure, not a per-call one.
func newConnection(nc net.Conn, logger telemetry.Logger, metrics *telemetry.Metrics) *audiosocket.Connection {
	onAudioDrop := func() {
		logger.Warn("server: audio queue full, dropping chunk", "remote", nc.RemoteAddr().String())
		if metrics != nil {
			metrics.AudioQueueDrops.Inc()
		}
	}
	onDTMFDrop := func() {
		logger.Warn("server: dtmf queue full, dropping digit", "remote", nc.RemoteAddr().String())
		if metrics != nil {
			metrics.DTMFQueueDrops.Inc()
		}
	}
	return audiosocket.NewConnection(nc, logger, onAudioDrop, onDTMFDrop)
}
