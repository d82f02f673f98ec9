// Package audio implements the PCM16 codec, polyphase resampler, and WAV
// encoding used by the VADSegmenter and Transcriber stages. Only
// little-endian signed-16 PCM is supported; no other codec.
package audio

import "encoding/binary"

// BytesToInt16 decodes little-endian signed-16 PCM bytes into samples. A
// trailing odd byte is dropped; callers at stage boundaries pad first.
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian signed-16 PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// PadToEvenBytes appends a single zero byte if b has odd length, so that a
// TTS chunk that splits mid-sample still decodes cleanly.
func PadToEvenBytes(b []byte) []byte {
	if len(b)%2 == 0 {
		return b
	}
	return append(b, 0)
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
