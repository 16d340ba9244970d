package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Converter turns interleaved capture samples at the device rate into mono
// samples at SampleRate. It keeps filter state between calls and is not safe
// for concurrent use.
type Converter struct {
	inRate    int
	channels  int
	resampler resampling.Resampler
	scratch   []float64
}

// NewConverter builds a converter for interleaved input with the given rate
// and channel count. Input already at SampleRate skips the resampler.
func NewConverter(inRate int, channels int) (*Converter, error) {
	if inRate <= 0 {
		return nil, fmt.Errorf("invalid capture sample rate %d", inRate)
	}
	if channels <= 0 {
		channels = 1
	}

	c := &Converter{inRate: inRate, channels: channels}
	if inRate != SampleRate {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(inRate),
			OutputRate: float64(SampleRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("create resampler: %w", err)
		}
		c.resampler = r
	}
	return c, nil
}

// Process downmixes interleaved to mono by averaging channels and resamples
// the result. Trailing samples that do not form a full frame are dropped.
func (c *Converter) Process(interleaved []float32) ([]float32, error) {
	frames := len(interleaved) / c.channels
	if frames == 0 {
		return nil, nil
	}

	if c.resampler == nil {
		return downmix(interleaved, c.channels, frames), nil
	}

	if cap(c.scratch) < frames {
		c.scratch = make([]float64, frames)
	}
	mono := c.scratch[:frames]
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < c.channels; ch++ {
			sum += float64(interleaved[i*c.channels+ch])
		}
		mono[i] = sum / float64(c.channels)
	}

	resampled, err := c.resampler.Process(mono)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	out := make([]float32, len(resampled))
	for i, s := range resampled {
		out[i] = float32(s)
	}
	return out, nil
}

func downmix(interleaved []float32, channels int, frames int) []float32 {
	out := make([]float32, frames)
	if channels == 1 {
		copy(out, interleaved[:frames])
		return out
	}
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
