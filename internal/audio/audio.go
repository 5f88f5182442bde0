// Package audio provides the pure, allocation-light signal processing
// functions the pipeline needs: byte/sample conversion, polyphase
// resampling between the telephony/STT/TTS sample rates, a telephone-band
// Butterworth filter, and chunking for pacing.
package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// NewWavBuffer wraps raw 16-bit mono PCM in a minimal WAV container, for
// STT providers whose upload APIs expect a file rather than a raw
// stream.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// BytesToI16 converts little-endian signed 16-bit PCM bytes to samples.
// The caller must supply a buffer whose length is a multiple of 2.
func BytesToI16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// I16ToBytes converts samples to little-endian signed 16-bit PCM bytes.
func I16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// F32Normalize converts int16 samples to float32-range [-1.0, 1.0].
func F32Normalize(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// F32Denormalize converts [-1.0, 1.0] samples to clipped int16.
func F32Denormalize(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// Resample converts samples at fromRate to toRate using polyphase
// resampling (up = to/gcd, down = from/gcd). Identity when the rates
// match. Output length is proportional to len(x)*up/down.
func Resample(x []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(x) == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	g := gcd(fromRate, toRate)
	up := toRate / g
	down := fromRate / g
	return resamplePoly(x, up, down)
}

// resamplePoly implements rational resampling as zero-insertion upsample
// by `up`, FIR low-pass filtering at the resulting sample rate, then
// decimation by `down` — the standard polyphase decomposition, computed
// directly rather than via an explicit phase table.
func resamplePoly(x []float64, up, down int) []float64 {
	maxUD := up
	if down > maxUD {
		maxUD = down
	}
	const tapsPerPhase = 8
	numTaps := tapsPerPhase*maxUD*2 + 1
	half := numTaps / 2
	cutoff := 1.0 / float64(maxUD)

	h := make([]float64, numTaps)
	var sum float64
	for i := 0; i < numTaps; i++ {
		n := float64(i - half)
		var sinc float64
		if n == 0 {
			sinc = 2 * cutoff
		} else {
			sinc = math.Sin(2*math.Pi*cutoff*n) / (math.Pi * n)
		}
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(numTaps-1))
		h[i] = sinc * window
		sum += h[i]
	}
	if sum != 0 {
		scale := float64(up) / sum
		for i := range h {
			h[i] *= scale
		}
	}

	outLen := (len(x)*up + down - 1) / down
	out := make([]float64, outLen)
	for n := 0; n < outLen; n++ {
		center := n * down
		var acc float64
		for t := 0; t < numTaps; t++ {
			pos := center - (t - half)
			if pos%up != 0 {
				continue
			}
			xi := pos / up
			if xi < 0 || xi >= len(x) {
				continue
			}
			acc += h[t] * x[xi]
		}
		out[n] = acc
	}
	return out
}

// Chunk splits b into slices of at most n bytes each; the last slice may
// be shorter. n defaults to 320 (20ms at 8kHz mono 16-bit) when <= 0.
func Chunk(b []byte, n int) [][]byte {
	if n <= 0 {
		n = 320
	}
	if len(b) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(b)+n-1)/n)
	for i := 0; i < len(b); i += n {
		end := i + n
		if end > len(b) {
			end = len(b)
		}
		chunks = append(chunks, b[i:end])
	}
	return chunks
}

// ProcessInbound converts raw 8kHz PCM bytes from the switch into
// float32-range samples at 16kHz for STT/VAD consumption.
func ProcessInbound(pcm8k []byte, inputRate, sttRate int) []float64 {
	samples := BytesToI16(pcm8k)
	f32 := F32Normalize(samples)
	return Resample(f32, inputRate, sttRate)
}

// ProcessOutbound converts TTS-synthesized samples at fromRate into
// telephone-band-filtered 8kHz PCM bytes ready for the switch.
func ProcessOutbound(samples []float64, fromRate, outputRate int, bp *TelephoneFilter) []byte {
	resampled := Resample(samples, fromRate, outputRate)
	filtered := bp.Apply(resampled)
	return I16ToBytes(F32Denormalize(filtered))
}
