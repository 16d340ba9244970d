package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rbright/livesub/internal/observe"
	"github.com/rbright/livesub/internal/segment"
)

const (
	kindError   = "error"
	kindTimeout = "timeout"
	kindPanic   = "panic"
)

// GateConfig controls how the gate calls its engine.
type GateConfig struct {
	Language     string
	VADFilter    bool
	MinSilenceMS int
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

// Gate is the single choke point between segments and the speech engine.
// Every failure becomes an empty fragment so the pipeline keeps running.
type Gate struct {
	engine  Engine
	cfg     GateConfig
	logger  *slog.Logger
	metrics *observe.Metrics
}

func NewGate(engine Engine, cfg GateConfig, logger *slog.Logger, metrics *observe.Metrics) *Gate {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Gate{engine: engine, cfg: cfg, logger: logger, metrics: metrics}
}

// Transcribe runs seg through the engine and never fails.
func (g *Gate) Transcribe(ctx context.Context, seg segment.Segment) Fragment {
	fragment := Fragment{Seq: seg.Seq}
	if len(seg.Samples) == 0 {
		return fragment
	}

	req := Request{
		Samples:              seg.Samples,
		SampleRate:           seg.SampleRate,
		Language:             g.cfg.Language,
		VADFilter:            g.cfg.VADFilter,
		MinSilenceDurationMS: g.cfg.MinSilenceMS,
	}

	started := time.Now()
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if attempt > 0 && !sleepCtx(ctx, g.cfg.RetryBackoff) {
			break
		}

		callStarted := time.Now()
		result, err := g.call(ctx, seg.Seq, req)
		elapsed := time.Since(callStarted)
		kind := classify(err)
		g.metrics.RecordTranscription(ctx, g.engine.Name(), elapsed, kind)

		if err == nil {
			fragment.Text = strings.Join(strings.Fields(result.Text), " ")
			break
		}

		g.log(slog.LevelWarn, "transcription failed",
			"engine", g.engine.Name(),
			"seq", seg.Seq,
			"reason", string(seg.Reason),
			"attempt", attempt+1,
			"kind", kind,
			"error", err.Error(),
		)
		if ctx.Err() != nil || kind == kindPanic {
			break
		}
	}
	fragment.Latency = time.Since(started)

	if fragment.Text == "" {
		g.metrics.RecordEmptyFragment(ctx)
	}
	g.log(slog.LevelDebug, "segment transcribed",
		"seq", seg.Seq,
		"reason", string(seg.Reason),
		"audio_ms", seg.Duration().Milliseconds(),
		"latency_ms", fragment.Latency.Milliseconds(),
		"chars", utf8.RuneCountInString(fragment.Text),
	)
	return fragment
}

// call bounds one engine invocation by the configured timeout even when the
// engine ignores its context, and converts panics into errors. A call that
// outlives its deadline keeps running in the background and may overlap the
// next segment's call; both ends of that overlap are logged with seq.
func (g *Gate) call(ctx context.Context, seq uint64, req Request) (Result, error) {
	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	started := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &panicError{value: r}}
			}
		}()
		result, err := g.engine.Transcribe(callCtx, req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-callCtx.Done():
		g.log(slog.LevelWarn, "engine call abandoned",
			"engine", g.engine.Name(),
			"seq", seq,
			"after_ms", time.Since(started).Milliseconds(),
		)
		go func() {
			<-done
			g.log(slog.LevelWarn, "abandoned engine call returned",
				"engine", g.engine.Name(),
				"seq", seq,
				"overrun_ms", time.Since(started).Milliseconds(),
			)
		}()
		return Result{}, callCtx.Err()
	}
}

func (g *Gate) log(level slog.Level, msg string, args ...any) {
	if g.logger == nil {
		return
	}
	g.logger.Log(context.Background(), level, msg, args...)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("engine panic: %v", e.value)
}

func classify(err error) string {
	var pe *panicError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return kindPanic
	case errors.Is(err, context.DeadlineExceeded):
		return kindTimeout
	default:
		return kindError
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
