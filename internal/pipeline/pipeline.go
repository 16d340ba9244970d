// Package pipeline wires capture, segmentation, transcription, and line
// assembly into three cooperating workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/livesub/internal/audio"
	"github.com/rbright/livesub/internal/observe"
	"github.com/rbright/livesub/internal/queue"
	"github.com/rbright/livesub/internal/segment"
	"github.com/rbright/livesub/internal/transcribe"
	"github.com/rbright/livesub/internal/transcript"
)

// Sink receives finished lines. Emit must return quickly.
type Sink interface {
	Name() string
	Emit(ctx context.Context, line transcript.Line) error
}

// Drainer is implemented by sinks that buffer work and must finish it at shutdown.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Stopper halts a running capture.
type Stopper interface {
	Stop() error
}

// CaptureFunc starts audio capture and delivers frames to emit until stopped.
type CaptureFunc func(ctx context.Context, emit func(audio.Frame)) (Stopper, error)

// Transcriber turns a segment into a fragment without failing.
type Transcriber interface {
	Transcribe(ctx context.Context, seg segment.Segment) transcribe.Fragment
}

// Options holds the worker tuning.
type Options struct {
	Policy          segment.Policy
	Assembly        transcript.Options
	ReceiveTimeout  time.Duration
	ShutdownTimeout time.Duration
	// StatsEvery logs buffer statistics every N frames at debug level; 0 disables.
	StatsEvery int
	// DumpDir receives every segment as a WAV file when non-empty.
	DumpDir string
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Frames   int64
	Segments int64
	Lines    int64
	Queued   int
}

// Pipeline owns the frame queue, the line channel, and the workers.
type Pipeline struct {
	opts    Options
	logger  *slog.Logger
	metrics *observe.Metrics

	capture     CaptureFunc
	transcriber Transcriber
	sinks       []Sink

	frames *queue.Queue[audio.Frame]
	lines  chan transcript.Line
	now    func() time.Time

	frameCount   atomic.Int64
	segmentCount atomic.Int64
	lineCount    atomic.Int64
}

func New(opts Options, capture CaptureFunc, transcriber Transcriber, sinks []Sink, logger *slog.Logger, metrics *observe.Metrics) *Pipeline {
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = 500 * time.Millisecond
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Pipeline{
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
		capture:     capture,
		transcriber: transcriber,
		sinks:       sinks,
		frames:      queue.New[audio.Frame](),
		lines:       make(chan transcript.Line, 64),
		now:         time.Now,
	}
}

// Stats returns the current counters. It is safe to call from any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:   p.frameCount.Load(),
		Segments: p.segmentCount.Load(),
		Lines:    p.lineCount.Load(),
		Queued:   p.frames.Len(),
	}
}

// Run captures and transcribes until ctx is done, then drains buffered audio
// and pending text before returning. A Pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) error {
	stopper, err := p.capture(ctx, func(frame audio.Frame) {
		p.frames.Push(frame)
	})
	if err != nil {
		p.frames.Close()
		close(p.lines)
		return fmt.Errorf("start capture: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		defer p.frames.Close()
		if err := stopper.Stop(); err != nil {
			return fmt.Errorf("stop capture: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer close(p.lines)
		return p.segmentLoop(gctx)
	})

	g.Go(func() error {
		return p.consumeLoop(gctx)
	})

	err = g.Wait()
	p.log(slog.LevelInfo, "pipeline stopped",
		"frames", p.frameCount.Load(),
		"segments", p.segmentCount.Load(),
		"lines", p.lineCount.Load(),
	)
	return err
}

// segmentLoop owns the segmentation buffer and the assembler.
func (p *Pipeline) segmentLoop(ctx context.Context) error {
	buffer := segment.NewBuffer(p.opts.Policy)
	assembler := transcript.NewAssembler(p.opts.Assembly)
	popCtx := context.WithoutCancel(ctx)

	// Once ctx is done, remaining segments share one shutdown deadline.
	var (
		shutdownCtx    context.Context
		shutdownCancel context.CancelFunc
	)
	defer func() {
		if shutdownCancel != nil {
			shutdownCancel()
		}
	}()
	callCtx := func() context.Context {
		if ctx.Err() == nil {
			return popCtx
		}
		if shutdownCtx == nil {
			shutdownCtx, shutdownCancel = context.WithTimeout(popCtx, p.opts.ShutdownTimeout)
		}
		return shutdownCtx
	}

	process := func(seg segment.Segment) {
		p.segmentCount.Add(1)
		p.metrics.RecordSegment(popCtx, string(seg.Reason), seg.Duration())
		p.dumpSegment(seg)

		fragment := p.transcriber.Transcribe(callCtx(), seg)
		if fragment.Text == "" {
			return
		}
		if line, ok := assembler.Absorb(fragment.Text, p.now()); ok {
			p.send(line)
		}
	}

	for {
		frame, err := p.frames.Pop(popCtx, p.opts.ReceiveTimeout)
		switch {
		case err == nil:
			n := p.frameCount.Add(1)
			if seg, ok := buffer.Ingest(frame, frame.CapturedAt); ok {
				process(seg)
			}
			p.logStats(buffer, n)

		case errors.Is(err, queue.ErrTimeout):
			now := p.now()
			if seg, ok := buffer.Starve(now); ok {
				process(seg)
			}
			if line, ok := assembler.Expire(now); ok {
				p.send(line)
			}

		case errors.Is(err, queue.ErrClosed):
			if seg, ok := buffer.Drain(); ok {
				process(seg)
			}
			if line, ok := assembler.Flush(p.now()); ok {
				p.send(line)
			}
			return nil

		default:
			return err
		}
	}
}

func (p *Pipeline) send(line transcript.Line) {
	p.lineCount.Add(1)
	p.metrics.RecordLine(context.Background(), string(line.Reason))
	p.lines <- line
}

// consumeLoop delivers lines to every sink in order. Sink failures are
// logged and never stop delivery.
func (p *Pipeline) consumeLoop(ctx context.Context) error {
	emitCtx := context.WithoutCancel(ctx)
	for line := range p.lines {
		for _, sink := range p.sinks {
			if err := sink.Emit(emitCtx, line); err != nil {
				p.metrics.RecordSinkError(emitCtx, sink.Name())
				p.log(slog.LevelWarn, "sink emit failed",
					"sink", sink.Name(),
					"line_id", line.ID,
					"error", err.Error(),
				)
			}
		}
	}

	drainCtx, cancel := context.WithTimeout(emitCtx, p.opts.ShutdownTimeout)
	defer cancel()
	for _, sink := range p.sinks {
		drainer, ok := sink.(Drainer)
		if !ok {
			continue
		}
		if err := drainer.Drain(drainCtx); err != nil {
			p.log(slog.LevelWarn, "sink drain failed", "sink", sink.Name(), "error", err.Error())
		}
	}
	return nil
}

func (p *Pipeline) logStats(buffer *segment.Buffer, frames int64) {
	if p.opts.StatsEvery <= 0 || frames%int64(p.opts.StatsEvery) != 0 {
		return
	}
	queued := p.frames.Len()
	p.metrics.RecordQueueDepth(context.Background(), queued)

	stats := buffer.Stats()
	p.log(slog.LevelDebug, "segmentation stats",
		"frames", frames,
		"rms", stats.LastRMS,
		"silent", stats.Silent,
		"silence_ms", stats.Silence.Milliseconds(),
		"buffered_ms", stats.Buffered.Milliseconds(),
		"queued", queued,
	)
}

func (p *Pipeline) log(level slog.Level, msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Log(context.Background(), level, msg, args...)
}
