package audio

import (
	"math"
	"sync"
)

// Resample converts little-endian signed-16 PCM bytes at srcRate to the
// same format at dstRate via polyphase downsampling with an anti-alias
// low-pass filter. srcRate must be an integer multiple of dstRate; callers
// validate this before ever reaching here.
//
// All-zero input short-circuits to a zero output of the expected length.
func Resample(payload []byte, srcRate, dstRate int) []byte {
	samples := BytesToInt16(payload)
	if len(samples) == 0 {
		return nil
	}

	ratio := srcRate / dstRate
	if ratio <= 1 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	}

	outLen := (len(samples) + ratio - 1) / ratio

	if allZero(samples) {
		return Int16ToBytes(make([]int16, outLen))
	}

	kernel := lowpassKernel(ratio)
	filtered := convolveDecimate(samples, kernel, ratio, outLen)
	return Int16ToBytes(filtered)
}

func allZero(samples []int16) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}

// convolveDecimate applies a symmetric FIR kernel centered on each output
// sample's corresponding input index, then keeps only every `ratio`-th
// output sample (polyphase decimation), clamping to int16 range.
func convolveDecimate(samples []int16, kernel []float64, ratio, outLen int) []int16 {
	half := len(kernel) / 2
	out := make([]int16, outLen)
	for o := 0; o < outLen; o++ {
		center := o * ratio
		var acc float64
		for k, coeff := range kernel {
			idx := center + k - half
			if idx < 0 || idx >= len(samples) {
				continue
			}
			acc += float64(samples[idx]) * coeff
		}
		out[o] = clampInt16(acc)
	}
	return out
}

var kernelCache sync.Map // int ratio -> []float64, the resampler is a shared read-only singleton

// lowpassKernel returns a Hamming-windowed sinc low-pass filter with cutoff
// at the decimated Nyquist frequency (1/ratio of the source Nyquist),
// normalized to unit DC gain.
func lowpassKernel(ratio int) []float64 {
	if v, ok := kernelCache.Load(ratio); ok {
		return v.([]float64)
	}

	const halfTaps = 16 // taps per polyphase branch; total length = 2*halfTaps*ratio + 1
	n := 2*halfTaps*ratio + 1
	cutoff := 1.0 / float64(ratio)
	kernel := make([]float64, n)
	mid := n / 2

	var sum float64
	for i := 0; i < n; i++ {
		x := float64(i - mid)
		var sinc float64
		if x == 0 {
			sinc = cutoff
		} else {
			sinc = cutoff * math.Sin(math.Pi*cutoff*x) / (math.Pi * cutoff * x)
		}
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		kernel[i] = sinc * window
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	kernelCache.Store(ratio, kernel)
	return kernel
}
