package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps mono little-endian signed-16 PCM samples (at sampleRate)
// into a WAV container for STT upload.
//
// wav.NewEncoder requires an io.WriteSeeker (Close() seeks back to patch
// the RIFF/data chunk sizes once all samples are written), so encoding
// goes through a scratch temp file rather than a bytes.Buffer, which has
// no Seek.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	samples := BytesToInt16(pcm)
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}

	tmp, err := os.CreateTemp("", "voicepipe-segment-*.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: wav scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: wav encoder close: %w", err)
	}

	out, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("audio: wav scratch read: %w", err)
	}
	return out, nil
}
