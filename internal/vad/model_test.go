package vad

import (
	"math"
	"testing"
)

func sine(freqHz float64, sampleRate, n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freqHz*t))
	}
	return out
}

func TestEnergyModel_DetectsSpeechAboveThreshold(t *testing.T) {
	m := NewEnergyModel()
	sampleRate := 8000
	speech := sine(300, sampleRate, sampleRate/2, 0.8) // 500ms loud tone

	ranges := m.Detect(speech, sampleRate, 0)
	if len(ranges) == 0 {
		t.Fatal("expected at least one speech range for a loud tone")
	}
	total := 0
	for _, r := range ranges {
		total += r.End - r.Start
	}
	if total == 0 {
		t.Error("expected non-zero total speech duration")
	}
}

func TestEnergyModel_SilenceYieldsNoRanges(t *testing.T) {
	m := NewEnergyModel()
	sampleRate := 8000
	silence := make([]int16, sampleRate/2)

	ranges := m.Detect(silence, sampleRate, 0)
	if len(ranges) != 0 {
		t.Errorf("expected no ranges for silence, got %v", ranges)
	}
}

func TestEnergyModel_PaddingExpandsRangeWithoutExceedingBounds(t *testing.T) {
	m := NewEnergyModel()
	sampleRate := 8000

	// silence + 200ms tone + silence, so the speech range sits strictly
	// inside the buffer and padding has room to expand on both sides.
	silence := make([]int16, sampleRate/2)
	tone := sine(300, sampleRate, sampleRate/5, 0.8)
	buf := append(append(append([]int16{}, silence...), tone...), silence...)

	unpadded := m.Detect(buf, sampleRate, 0)
	padded := m.Detect(buf, sampleRate, 100)
	if len(unpadded) == 0 || len(padded) == 0 {
		t.Fatal("expected ranges in both cases")
	}
	if padded[0].Start > unpadded[0].Start {
		t.Error("padding should not shrink the range start")
	}
	if padded[0].Start == unpadded[0].Start {
		t.Error("expected padding to move the range start earlier")
	}
	if padded[len(padded)-1].End < unpadded[len(unpadded)-1].End {
		t.Error("padding should not shrink the range end")
	}
	if padded[len(padded)-1].End > len(buf) {
		t.Error("padded range must not exceed buffer bounds")
	}
}

func TestEnergyModel_PaddedRangesAreDisjoint(t *testing.T) {
	m := NewEnergyModel()
	sampleRate := 8000

	// Two tones separated by a gap wider than MergeGapMs but narrower than
	// twice a generous pad, so the padded ranges would overlap unless merged.
	silence := make([]int16, sampleRate/10) // 100ms
	tone := sine(300, sampleRate, sampleRate/5, 0.8)
	buf := append(append(append(append([]int16{}, tone...), silence...), tone...), silence...)

	ranges := m.Detect(buf, sampleRate, 200)
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Start < ranges[i-1].End {
			t.Fatalf("ranges %d and %d overlap after padding: %v", i-1, i, ranges)
		}
	}
	for _, r := range ranges {
		if r.Start < 0 || r.End > len(buf) || r.Start >= r.End {
			t.Fatalf("malformed range %v for buffer of %d samples", r, len(buf))
		}
	}
}

func TestEnergyModel_EmptyInput(t *testing.T) {
	m := NewEnergyModel()
	if ranges := m.Detect(nil, 8000, 100); ranges != nil {
		t.Errorf("expected nil ranges for empty input, got %v", ranges)
	}
}
