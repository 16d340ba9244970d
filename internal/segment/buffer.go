// Package segment cuts a continuous mono frame stream into utterance-sized segments.
package segment

import (
	"time"

	"github.com/rbright/livesub/internal/audio"
)

// Reason names the trigger that closed a segment.
type Reason string

const (
	ReasonSilence    Reason = "silence"
	ReasonOverflow   Reason = "overflow"
	ReasonStarvation Reason = "starvation"
	ReasonDrain      Reason = "drain"
)

// Policy holds the flush thresholds.
type Policy struct {
	SampleRate       int
	SilenceThreshold float64
	MinSilence       time.Duration
	MinChunk         time.Duration
	MaxBuffer        time.Duration

	// StarvationAgeRatio scales MaxBuffer into the minimum age of a starving buffer.
	StarvationAgeRatio float64
	// StarvationMinRatio scales MinChunk into the minimum audio a starving buffer must hold.
	StarvationMinRatio float64
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		SampleRate:         audio.SampleRate,
		SilenceThreshold:   0.01,
		MinSilence:         800 * time.Millisecond,
		MinChunk:           2500 * time.Millisecond,
		MaxBuffer:          8 * time.Second,
		StarvationAgeRatio: 0.5,
		StarvationMinRatio: 0.5,
	}
}

// Segment is an immutable span of buffered audio ready for transcription.
type Segment struct {
	Seq        uint64
	Samples    []float32
	SampleRate int
	StartedAt  time.Time
	Reason     Reason
}

func (s Segment) Duration() time.Duration {
	return audio.SamplesDuration(len(s.Samples), s.SampleRate)
}

// Stats is a point-in-time view of the buffer used for debug logging.
type Stats struct {
	Buffered time.Duration
	Silence  time.Duration
	Silent   bool
	LastRMS  float64
}

// Buffer accumulates frames and decides when to flush. It is owned by a
// single worker and is not safe for concurrent use.
type Buffer struct {
	policy Policy

	samples []float32
	firstAt time.Time

	silent       bool
	silenceStart time.Time
	lastRMS      float64
	lastNow      time.Time

	seq uint64
}

func NewBuffer(policy Policy) *Buffer {
	if policy.SampleRate <= 0 {
		policy.SampleRate = audio.SampleRate
	}
	if policy.StarvationAgeRatio <= 0 {
		policy.StarvationAgeRatio = 0.5
	}
	if policy.StarvationMinRatio <= 0 {
		policy.StarvationMinRatio = 0.5
	}
	return &Buffer{policy: policy}
}

func (b *Buffer) Policy() Policy { return b.policy }

// Ingest appends frame and returns a segment when a silence or overflow
// flush triggers.
func (b *Buffer) Ingest(frame audio.Frame, now time.Time) (Segment, bool) {
	if len(frame.Samples) == 0 {
		return Segment{}, false
	}

	if len(b.samples) == 0 {
		b.firstAt = frame.CapturedAt
		if b.firstAt.IsZero() {
			b.firstAt = now
		}
	}
	b.samples = append(b.samples, frame.Samples...)
	b.lastNow = now

	b.lastRMS = audio.RMS(frame.Samples)
	if b.lastRMS < b.policy.SilenceThreshold {
		if !b.silent {
			b.silent = true
			b.silenceStart = now
		}
	} else {
		b.silent = false
	}

	buffered := b.Buffered()
	if b.silent && now.Sub(b.silenceStart) >= b.policy.MinSilence && buffered >= b.policy.MinChunk {
		return b.flush(ReasonSilence), true
	}
	if buffered >= b.policy.MaxBuffer {
		return b.flush(ReasonOverflow), true
	}
	return Segment{}, false
}

// Starve flushes a buffer that has been waiting too long for more frames.
// The caller invokes it when a frame receive times out.
func (b *Buffer) Starve(now time.Time) (Segment, bool) {
	if len(b.samples) == 0 {
		return Segment{}, false
	}
	minAge := time.Duration(float64(b.policy.MaxBuffer) * b.policy.StarvationAgeRatio)
	minAudio := time.Duration(float64(b.policy.MinChunk) * b.policy.StarvationMinRatio)
	if now.Sub(b.firstAt) <= minAge || b.Buffered() < minAudio {
		return Segment{}, false
	}
	return b.flush(ReasonStarvation), true
}

// Drain flushes whatever audio remains. It is used at shutdown.
func (b *Buffer) Drain() (Segment, bool) {
	if len(b.samples) == 0 {
		return Segment{}, false
	}
	return b.flush(ReasonDrain), true
}

// Buffered reports the duration of audio currently held.
func (b *Buffer) Buffered() time.Duration {
	return audio.SamplesDuration(len(b.samples), b.policy.SampleRate)
}

func (b *Buffer) Stats() Stats {
	stats := Stats{
		Buffered: b.Buffered(),
		Silent:   b.silent,
		LastRMS:  b.lastRMS,
	}
	if b.silent {
		stats.Silence = b.lastNow.Sub(b.silenceStart)
	}
	return stats
}

func (b *Buffer) flush(reason Reason) Segment {
	seg := Segment{
		Seq:        b.seq,
		Samples:    b.samples,
		SampleRate: b.policy.SampleRate,
		StartedAt:  b.firstAt,
		Reason:     reason,
	}
	b.seq++
	b.samples = make([]float32, 0, cap(seg.Samples))
	b.firstAt = time.Time{}
	b.silent = false
	b.silenceStart = time.Time{}
	return seg
}
