package audio

import "testing"

// TestResample_OutputLength: for N/2 input samples at srcRate, the
// resampled output has length ceil(N/2 / ratio) samples, within +-1 due to
// the polyphase filter's edge handling.
func TestResample_OutputLength(t *testing.T) {
	cases := []struct {
		srcRate, dstRate, numSamples int
	}{
		{48000, 16000, 4800},
		{48000, 16000, 1},
		{48000, 16000, 960},
		{16000, 16000, 320}, // ratio 1: passthrough
		{24000, 8000, 1000},
	}
	for _, c := range cases {
		payload := make([]byte, c.numSamples*2)
		for i := range payload {
			payload[i] = byte(i % 7) // non-zero, non-silent input
		}
		out := Resample(payload, c.srcRate, c.dstRate)
		gotSamples := len(out) / 2

		ratio := c.srcRate / c.dstRate
		want := (c.numSamples + ratio - 1) / ratio
		if diff := gotSamples - want; diff < -1 || diff > 1 {
			t.Errorf("Resample(%d samples, %d->%d): got %d samples, want %d (+-1)", c.numSamples, c.srcRate, c.dstRate, gotSamples, want)
		}
	}
}

// TestResample_SilentShortCircuit: all-zero input short-circuits to a zero
// output of the expected length.
func TestResample_SilentShortCircuit(t *testing.T) {
	payload := make([]byte, 4800*2)
	out := Resample(payload, 48000, 16000)
	if len(out) != 1600*2 {
		t.Fatalf("expected %d output bytes, got %d", 1600*2, len(out))
	}
	for i, b := range out {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (silent short-circuit)", i, b)
		}
	}
}

func TestResample_OutputClampedToInt16Range(t *testing.T) {
	samples := make([]int16, 2000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}
	payload := Int16ToBytes(samples)
	out := Resample(payload, 48000, 16000)
	got := BytesToInt16(out)
	for _, s := range got {
		if s > 32767 || s < -32768 {
			t.Fatalf("sample %d out of int16 range", s)
		}
	}
}
