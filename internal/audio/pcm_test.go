package audio

import (
	"bytes"
	"testing"
)

func TestBytesToInt16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	b := Int16ToBytes(samples)
	got := BytesToInt16(b)
	if len(got) != len(samples) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: got %d want %d", i, got[i], s)
		}
	}
}

func TestBytesToInt16DropsTrailingOddByte(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	got := BytesToInt16(b)
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
}

func TestPadToEvenBytes(t *testing.T) {
	even := []byte{1, 2, 3, 4}
	if !bytes.Equal(PadToEvenBytes(even), even) {
		t.Error("even-length input should be unchanged")
	}

	odd := []byte{1, 2, 3}
	padded := PadToEvenBytes(odd)
	if len(padded) != 4 || padded[3] != 0 {
		t.Errorf("expected odd input padded with trailing zero, got %v", padded)
	}
}

func TestClampInt16(t *testing.T) {
	cases := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{40000, 32767},
		{-40000, -32768},
		{100, 100},
	}
	for _, c := range cases {
		if got := clampInt16(c.in); got != c.want {
			t.Errorf("clampInt16(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
