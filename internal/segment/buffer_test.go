package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/livesub/internal/audio"
)

const frameSamples = audio.SampleRate / 10 // 100 ms

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func frameAt(i int, amplitude float32) (audio.Frame, time.Time) {
	samples := make([]float32, frameSamples)
	for j := range samples {
		if j%2 == 0 {
			samples[j] = amplitude
		} else {
			samples[j] = -amplitude
		}
	}
	at := t0.Add(time.Duration(i) * 100 * time.Millisecond)
	return audio.Frame{Samples: samples, CapturedAt: at}, at
}

func TestIngestFlushesOnSilenceAfterMinChunk(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	for i := 0; i < 25; i++ {
		frame, now := frameAt(i, 0.5)
		_, ok := b.Ingest(frame, now)
		require.False(t, ok, "loud frame %d", i)
	}

	silenceStart := t0.Add(2500 * time.Millisecond)
	var flushed Segment
	flushedAt := -1
	for i := 25; i < 60; i++ {
		frame, now := frameAt(i, 0)
		if seg, ok := b.Ingest(frame, now); ok {
			flushed = seg
			flushedAt = i
			break
		}
	}

	require.Equal(t, 33, flushedAt)
	_, crossedAt := frameAt(flushedAt, 0)
	require.LessOrEqual(t, crossedAt.Sub(silenceStart)-800*time.Millisecond, 100*time.Millisecond)
	require.Equal(t, ReasonSilence, flushed.Reason)
	require.Equal(t, 34*frameSamples, len(flushed.Samples))
	require.Equal(t, t0, flushed.StartedAt)
	require.Equal(t, 3400*time.Millisecond, flushed.Duration())
	require.Zero(t, b.Buffered())
}

func TestIngestSilenceWithoutEnoughAudioKeepsBuffering(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	for i := 0; i < 3; i++ {
		frame, now := frameAt(i, 0.5)
		_, ok := b.Ingest(frame, now)
		require.False(t, ok)
	}
	for i := 3; i < 18; i++ {
		frame, now := frameAt(i, 0)
		_, ok := b.Ingest(frame, now)
		require.False(t, ok)
	}

	stats := b.Stats()
	require.True(t, stats.Silent)
	require.Equal(t, 1400*time.Millisecond, stats.Silence)
	require.Equal(t, 1800*time.Millisecond, stats.Buffered)
}

func TestIngestNeverHoldsMoreThanMaxBuffer(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	b := NewBuffer(policy)
	var overflows int
	for i := 0; i < 200; i++ {
		frame, now := frameAt(i, 0.5)
		if seg, ok := b.Ingest(frame, now); ok {
			overflows++
			require.Equal(t, ReasonOverflow, seg.Reason)
			require.Equal(t, policy.MaxBuffer, seg.Duration())
		}
		require.Less(t, b.Buffered(), policy.MaxBuffer)
	}
	require.Equal(t, 2, overflows)
}

func TestIngestIgnoresEmptyFrames(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	_, ok := b.Ingest(audio.Frame{CapturedAt: t0}, t0)
	require.False(t, ok)
	require.Zero(t, b.Buffered())

	_, ok = b.Drain()
	require.False(t, ok)
}

func TestStarveFlushesStaleBuffer(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	for i := 0; i < 50; i++ {
		frame, now := frameAt(i, 0.5)
		_, ok := b.Ingest(frame, now)
		require.False(t, ok)
	}

	seg, ok := b.Starve(t0.Add(5600 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, ReasonStarvation, seg.Reason)
	require.Equal(t, 5*time.Second, seg.Duration())
	require.Zero(t, b.Buffered())

	_, ok = b.Starve(t0.Add(6 * time.Second))
	require.False(t, ok, "a second flush needs new frames")
}

func TestStarveRequiresAgeAndMinimumAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frames int
		now    time.Duration
	}{
		{name: "too young", frames: 30, now: 3500 * time.Millisecond},
		{name: "too little audio", frames: 10, now: 10 * time.Second},
		{name: "empty", frames: 0, now: time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := NewBuffer(DefaultPolicy())
			for i := 0; i < tc.frames; i++ {
				frame, now := frameAt(i, 0.5)
				b.Ingest(frame, now)
			}
			_, ok := b.Starve(t0.Add(tc.now))
			require.False(t, ok)
		})
	}
}

func TestDrainFlushesRemainderAndAdvancesSequence(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	frame, now := frameAt(0, 0.5)
	b.Ingest(frame, now)

	first, ok := b.Drain()
	require.True(t, ok)
	require.Equal(t, ReasonDrain, first.Reason)
	require.Equal(t, uint64(0), first.Seq)

	_, ok = b.Drain()
	require.False(t, ok)

	frame, now = frameAt(1, 0.5)
	b.Ingest(frame, now)
	second, ok := b.Drain()
	require.True(t, ok)
	require.Equal(t, uint64(1), second.Seq)
	require.Equal(t, now, second.StartedAt)
}

func TestFlushResetsSilenceRun(t *testing.T) {
	t.Parallel()

	b := NewBuffer(DefaultPolicy())
	for i := 0; i < 34; i++ {
		amp := float32(0.5)
		if i >= 25 {
			amp = 0
		}
		frame, now := frameAt(i, amp)
		b.Ingest(frame, now)
	}
	require.Zero(t, b.Buffered())
	require.False(t, b.Stats().Silent)

	// the next silent frame starts a fresh run, so it cannot flush immediately
	frame, now := frameAt(34, 0)
	_, ok := b.Ingest(frame, now)
	require.False(t, ok)
}
