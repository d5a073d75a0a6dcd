package audio

import (
	"math"
)

// Resample downsamples a frame from inRate to outRate using box-average
// decimation: each output sample is the arithmetic mean of the contiguous
// input range it covers, with range boundaries computed by per-sample ratio
// accumulation rather than fixed-stride skipping. Averaging preserves signal
// energy better than naive decimation for speech input.
//
// When outRate equals inRate the input slice is returned as-is. When outRate
// is greater than inRate the input is also returned unchanged: upsampling is
// deliberately unsupported, since over-sampled input is harmless to the
// recognizer while interpolation would only invent data. Callers that care
// should check ratios up front (see recorder).
func Resample(frame []float32, inRate, outRate int) []float32 {
	if outRate == inRate || outRate > inRate {
		return frame
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(math.Round(float64(len(frame)) / ratio))
	out := make([]float32, outLen)

	inPos := 0
	for outPos := 0; outPos < outLen; outPos++ {
		nextInPos := int(math.Round(float64(outPos+1) * ratio))

		var accum float32
		count := 0
		for i := inPos; i < nextInPos && i < len(frame); i++ {
			accum += frame[i]
			count++
		}

		if count > 0 {
			out[outPos] = accum / float32(count)
		}
		inPos = nextInPos
	}

	return out
}
