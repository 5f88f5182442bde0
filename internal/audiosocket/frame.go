// Package audiosocket implements the AudioSocket framed-TCP wire
// protocol: a stateless codec over a reader/writer plus the bounded,
// lossy per-connection queues that sit above it.
package audiosocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Type is the AudioSocket frame type byte.
type Type byte

const (
	TypeHangup Type = 0x00
	TypeUUID   Type = 0x01
	TypeDTMF   Type = 0x03
	TypeAudio  Type = 0x10
	TypeError  Type = 0xFF
)

// MaxPayloadSize is the largest payload a single frame may carry.
// Frames whose declared length exceeds this are a fatal protocol error.
const MaxPayloadSize = 65536

// Frame is one decoded AudioSocket message.
type Frame struct {
	Type    Type
	Payload []byte
}

// ErrProtocol wraps any fatal framing violation: unknown type, oversize
// length, or a short/partial read where an exact one was required.
var ErrProtocol = errors.New("audiosocket: protocol error")

// ReadFrame reads exactly one frame from r. It returns io.EOF when the
// peer closed cleanly before any header bytes arrived, and a wrapped
// ErrProtocol for anything else that prevents producing a well-formed
// frame (oversize length, incomplete header or payload).
func ReadFrame(r io.Reader) (Frame, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("%w: reading header: %v", ErrProtocol, err)
	}

	typ := Type(header[0])
	length := binary.BigEndian.Uint16(header[1:3])

	if length > MaxPayloadSize {
		return Frame{}, fmt.Errorf("%w: payload length %d exceeds max %d", ErrProtocol, length, MaxPayloadSize)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("%w: reading payload: %v", ErrProtocol, err)
		}
	}

	switch typ {
	case TypeHangup, TypeUUID, TypeDTMF, TypeAudio, TypeError:
		return Frame{Type: typ, Payload: payload}, nil
	default:
		return Frame{}, fmt.Errorf("%w: unknown frame type 0x%02x", ErrProtocol, header[0])
	}
}

// WriteFrame encodes and writes a single frame.
func WriteFrame(w io.Writer, typ Type, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload length %d exceeds max %d", ErrProtocol, len(payload), MaxPayloadSize)
	}
	var header [3]byte
	header[0] = byte(typ)
	binary.BigEndian.PutUint16(header[1:3], uint16(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("audiosocket: writing header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("audiosocket: writing payload: %w", err)
		}
	}
	return nil
}

// WriteAudio writes a single AUDIO frame carrying pcm (signed 16-bit,
// 8kHz, mono, little-endian).
func WriteAudio(w io.Writer, pcm []byte) error {
	return WriteFrame(w, TypeAudio, pcm)
}

// WriteHangup writes an empty-payload HANGUP frame.
func WriteHangup(w io.Writer) error {
	return WriteFrame(w, TypeHangup, nil)
}
