package audio

import (
	"math"
	"time"
)

// SampleRate is the mono rate every downstream component consumes.
const SampleRate = 16000

// Frame is a short run of mono float32 samples at SampleRate.
type Frame struct {
	Samples    []float32
	CapturedAt time.Time
}

// Duration reports how much audio the frame carries at rate.
func (f Frame) Duration(rate int) time.Duration {
	return SamplesDuration(len(f.Samples), rate)
}

// SamplesDuration converts a sample count at rate into wall time.
func SamplesDuration(n int, rate int) time.Duration {
	if rate <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// RMS returns the root-mean-square amplitude of samples; 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
