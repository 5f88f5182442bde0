package audiosocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/payphoned/internal/telemetry"
)

// Connection wraps one accepted AudioSocket TCP connection: a
// background read loop demultiplexes incoming frames into the bounded
// audio/DTMF queues, while HANGUP and protocol errors mark the
// connection inactive. Callers read via ReadAudio/PopDTMF and write
// via SendAudio/Hangup — all safe for concurrent use.
type Connection struct {
	conn   net.Conn
	logger telemetry.Logger

	audioQ *AudioQueue
	dtmfQ  *DTMFQueue

	active    int32 // atomic bool
	closeOnce sync.Once
	done      chan struct{}

	writeMu sync.Mutex

	uuid *uuidHolder

	onAudioDrop func()
	onDTMFDrop  func()
}

// NewConnection starts a read loop over conn and returns the wrapping
// Connection. onAudioDrop/onDTMFDrop (may be nil) are called whenever
// the bounded queues discard a frame, for metrics.
func NewConnection(conn net.Conn, logger telemetry.Logger, onAudioDrop, onDTMFDrop func()) *Connection {
	if logger == nil {
		logger = telemetry.NoOpLogger{}
	}
	c := &Connection{
		conn:        conn,
		logger:      logger,
		audioQ:      NewAudioQueue(0, onAudioDrop),
		dtmfQ:       NewDTMFQueue(0, onDTMFDrop),
		active:      1,
		done:        make(chan struct{}),
		uuid:        &uuidHolder{},
		onAudioDrop: onAudioDrop,
		onDTMFDrop:  onDTMFDrop,
	}
	go c.readLoop()
	return c
}

func (c *Connection) readLoop() {
	defer c.markInactive()
	for {
		frame, err := ReadFrame(c.conn)
		if err != nil {
			return
		}
		switch frame.Type {
		case TypeHangup:
			return
		case TypeAudio:
			c.audioQ.TryPut(frame.Payload)
		case TypeDTMF:
			if len(frame.Payload) > 0 {
				c.dtmfQ.TryPut(frame.Payload[0])
			}
		case TypeUUID:
			// The first UUID frame's payload is handed to the caller via
			// UUIDPayload(); later ones (shouldn't occur) are ignored.
			c.uuid.setUUID(frame.Payload)
		case TypeError:
			c.logger.Warn("audiosocket: remote sent error frame", "connID", c.RemoteAddr())
			return
		}
	}
}

// uuidHolder guards the connection's first-seen UUID-frame payload.
type uuidHolder struct {
	mu      sync.Mutex
	payload []byte
	set     bool
}

func (h *uuidHolder) setUUID(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.set {
		h.payload = append([]byte(nil), payload...)
		h.set = true
	}
}

// UUIDPayload blocks briefly waiting for the connection's first UUID
// frame (sent immediately by the switch on connect) and returns its
// raw payload, or ok=false if none arrived within timeout.
func (c *Connection) UUIDPayload(timeout time.Duration) (payload []byte, ok bool) {
	deadline := time.Now().Add(timeout)
	for {
		c.uuid.mu.Lock()
		if c.uuid.set {
			p := c.uuid.payload
			c.uuid.mu.Unlock()
			return p, true
		}
		c.uuid.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ReadAudio blocks up to timeout for the next audio chunk. Returns
// immediately once one arrives or the connection becomes inactive.
func (c *Connection) ReadAudio(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	type result struct {
		chunk []byte
		ok    bool
	}
	out := make(chan result, 1)
	go func() { chunk, ok := c.audioQ.Get(timeout); out <- result{chunk, ok} }()
	select {
	case r := <-out:
		return r.chunk, r.ok
	case <-ctx.Done():
		return nil, false
	case <-c.done:
		// Drain any chunk still buffered before reporting closed.
		if chunk, ok := c.audioQ.tryPop(); ok {
			return chunk, true
		}
		return nil, false
	}
}

// HasDTMF reports whether a DTMF digit is waiting.
func (c *Connection) HasDTMF() bool {
	return c.dtmfQ.HasItems()
}

// PopDTMF pops the next DTMF digit, if any, without blocking.
func (c *Connection) PopDTMF() (string, bool) {
	d, ok := c.dtmfQ.tryPop()
	if !ok {
		return "", false
	}
	return string(d), true
}

// SendAudio writes one AUDIO frame.
func (c *Connection) SendAudio(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteAudio(c.conn, pcm)
}

// Hangup writes a HANGUP frame and marks the connection inactive.
func (c *Connection) Hangup() error {
	c.writeMu.Lock()
	err := WriteHangup(c.conn)
	c.writeMu.Unlock()
	c.markInactive()
	return err
}

// IsActive reports whether the connection is still usable.
func (c *Connection) IsActive() bool {
	return atomic.LoadInt32(&c.active) == 1
}

func (c *Connection) markInactive() {
	atomic.StoreInt32(&c.active, 0)
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the connection becomes inactive (hangup,
// protocol error, or explicit Close).
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close closes the underlying socket.
func (c *Connection) Close() error {
	c.markInactive()
	return c.conn.Close()
}

// RemoteAddr returns the peer address string, for logging.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
