package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
)

// CaptureOptions configures a capture stream.
type CaptureOptions struct {
	// FrameDuration is the length of each emitted frame. Defaults to 100ms.
	FrameDuration time.Duration
	// Emit receives every frame in capture order. It must not block.
	Emit   func(Frame)
	Logger *slog.Logger
}

// Capture records one Pulse source at its native format and emits mono
// SampleRate frames.
type Capture struct {
	device Device
	logger *slog.Logger

	client *pulse.Client
	stream *pulse.RecordStream

	converter    *Converter
	frameSamples int
	emit         func(Frame)
	now          func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	// stopDone closes when the first Stop has flushed everything.
	stopDone chan struct{}

	mu      sync.Mutex
	pending []float32
	stopped bool

	inflight sync.WaitGroup
	samples  atomic.Int64
	faults   atomic.Int64
}

// StartCapture opens a record stream on selected and starts emitting frames.
// The stream stops when ctx is done or Stop is called.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions) (*Capture, error) {
	if opts.Emit == nil {
		return nil, fmt.Errorf("capture requires an emit function")
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	rate := source.SampleRate()
	channels := recordChannels(len(source.Channels()))
	channelOpt := pulse.RecordMono
	if channels == 2 {
		channelOpt = pulse.RecordStereo
	}

	converter, err := NewConverter(rate, channels)
	if err != nil {
		client.Close()
		return nil, err
	}

	capture := newCapture(selected, converter, opts)
	capture.client = client

	// 50ms fragments of float32 samples keep callback latency low.
	fragment := uint32(rate * channels * 4 / 20)
	stream, err := client.NewRecord(
		pulse.Float32Writer(capture.onSamples),
		pulse.RecordSource(source),
		channelOpt,
		pulse.RecordSampleRate(rate),
		pulse.RecordBufferFragmentSize(fragment),
		pulse.RecordMediaName("livesub loopback"),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()
	capture.log(slog.LevelInfo, "capture started",
		"device", selected.ID,
		"rate", rate,
		"channels", channels,
	)

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

// recordChannels maps a source's channel map length to the record layout:
// anything wider than mono is recorded as stereo and downmixed later.
func recordChannels(sourceChannels int) int {
	if sourceChannels >= 2 {
		return 2
	}
	return 1
}

func newCapture(device Device, converter *Converter, opts CaptureOptions) *Capture {
	frameDuration := opts.FrameDuration
	if frameDuration <= 0 {
		frameDuration = 100 * time.Millisecond
	}
	frameSamples := int(int64(SampleRate) * int64(frameDuration) / int64(time.Second))
	if frameSamples <= 0 {
		frameSamples = 1
	}
	return &Capture{
		device:       device,
		logger:       opts.Logger,
		converter:    converter,
		frameSamples: frameSamples,
		emit:         opts.Emit,
		now:          time.Now,
		stopCh:       make(chan struct{}),
		stopDone:     make(chan struct{}),
	}
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// SamplesCaptured reports mono samples produced so far.
func (c *Capture) SamplesCaptured() int64 {
	return c.samples.Load()
}

// Faults reports callbacks whose audio was dropped because conversion failed.
func (c *Capture) Faults() int64 {
	return c.faults.Load()
}

// Stop halts the stream and emits any residual partial frame. It is safe to
// call more than once and from several goroutines; every call returns only
// after the last frame has been emitted.
func (c *Capture) Stop() error {
	c.stopOnce.Do(c.teardown)
	<-c.stopDone
	return nil
}

func (c *Capture) teardown() {
	defer close(c.stopDone)

	c.mu.Lock()
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		c.emit(Frame{Samples: pending, CapturedAt: c.now()})
	}
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onSamples receives interleaved float32 audio from Pulse.
func (c *Capture) onSamples(buffer []float32) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	mono, err := c.converter.Process(buffer)
	if err != nil {
		// a bad buffer is dropped; the stream keeps running
		c.faults.Add(1)
		c.log(slog.LevelWarn, "capture conversion failed", "error", err.Error())
		return len(buffer), nil
	}
	c.samples.Add(int64(len(mono)))

	c.mu.Lock()
	c.pending = append(c.pending, mono...)
	var frames [][]float32
	for len(c.pending) >= c.frameSamples {
		frame := make([]float32, c.frameSamples)
		copy(frame, c.pending[:c.frameSamples])
		c.pending = c.pending[c.frameSamples:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()

	// frames cut from one callback are stamped back from now so timestamps stay monotonic
	now := c.now()
	frameDuration := SamplesDuration(c.frameSamples, SampleRate)
	for i, samples := range frames {
		capturedAt := now.Add(-time.Duration(len(frames)-1-i) * frameDuration)
		c.emit(Frame{Samples: samples, CapturedAt: capturedAt})
	}
	return len(buffer), nil
}

func (c *Capture) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}
