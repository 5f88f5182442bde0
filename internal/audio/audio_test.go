package audio

import "testing"

func TestBytesI16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234, -5678}
	b := I16ToBytes(samples)
	if len(b)%2 != 0 {
		t.Fatal("expected even-length byte buffer")
	}
	back := BytesToI16(b)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("round trip mismatch at %d: got %d want %d", i, back[i], samples[i])
		}
	}
}

func TestNormalizeDenormalizeClip(t *testing.T) {
	f := F32Normalize([]int16{32767, -32768, 0})
	back := F32Denormalize(f)
	if back[2] != 0 {
		t.Errorf("expected 0, got %d", back[2])
	}
	// Denormalize should clip out-of-range floats instead of wrapping.
	clipped := F32Denormalize([]float64{2.0, -2.0})
	if clipped[0] != 32767 || clipped[1] != -32768 {
		t.Errorf("expected clipped extremes, got %v", clipped)
	}
}

func TestResampleIdentity(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, -0.4}
	y := Resample(x, 16000, 16000)
	if !floatsEqual(x, y) {
		t.Errorf("identity resample mismatch: %v vs %v", x, y)
	}
}

func TestResampleChangesLength(t *testing.T) {
	x := make([]float64, 800) // 100ms at 8kHz
	for i := range x {
		x[i] = 0.0
	}
	y := Resample(x, 8000, 16000)
	wantLen := 1600
	if abs(len(y)-wantLen) > 2 {
		t.Errorf("expected output length near %d, got %d", wantLen, len(y))
	}
}

func TestResampleEmptyInput(t *testing.T) {
	y := Resample(nil, 8000, 16000)
	if len(y) != 0 {
		t.Errorf("expected empty output for empty input, got %v", y)
	}
}

func TestChunkSizes(t *testing.T) {
	data := make([]byte, 1000)
	chunks := Chunk(data, 320)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if len(chunks[3]) != 40 {
		t.Errorf("expected final short chunk of 40 bytes, got %d", len(chunks[3]))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != len(data) {
		t.Errorf("chunk total %d != input length %d", total, len(data))
	}
}

func TestChunkEmpty(t *testing.T) {
	if chunks := Chunk(nil, 320); chunks != nil {
		t.Errorf("expected nil chunks for empty input, got %v", chunks)
	}
}

func TestTelephoneFilterAttenuatesDC(t *testing.T) {
	fs := 8000.0
	f := NewTelephoneFilter(300, 3400, fs)
	n := 400
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.01 // DC-ish; should be heavily attenuated by the highpass
	}
	y := f.Apply(x)
	if len(y) != n {
		t.Fatalf("expected same-length output, got %d", len(y))
	}
	// DC should be attenuated well below the input amplitude.
	if absf(y[n/2]) >= absf(x[n/2]) {
		t.Errorf("expected DC attenuation, got in=%.5f out=%.5f", x[n/2], y[n/2])
	}
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
