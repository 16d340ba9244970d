// Package session coordinates the subtitle run lifecycle and answers control
// requests from other livesub processes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/livesub/internal/fsm"
	"github.com/rbright/livesub/internal/ipc"
	"github.com/rbright/livesub/internal/pipeline"
)

// ErrAlreadyRunning is returned when Run is called on a controller that has
// already started.
var ErrAlreadyRunning = errors.New("session already running")

// Pipeline is the session-facing subset of pipeline behavior.
type Pipeline interface {
	Run(ctx context.Context) error
	Stats() pipeline.Stats
}

// TranslationCounter reports delivered and failed translations.
type TranslationCounter interface {
	Counts() (delivered int, failed int)
}

// Result is the lifecycle output returned by one Run invocation.
type Result struct {
	State       fsm.State
	Stopped     bool
	Interrupted bool
	Err         error
	Stats       pipeline.Stats
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Controller owns one pipeline run and its state transitions.
type Controller struct {
	logger     *slog.Logger
	pipeline   Pipeline
	translator TranslationCounter
	now        func() time.Time

	mu        sync.RWMutex
	state     fsm.State
	startedAt time.Time

	stop chan struct{}
}

// NewController constructs a controller. translator may be nil.
func NewController(logger *slog.Logger, p Pipeline, translator TranslationCounter) *Controller {
	return &Controller{
		logger:     logger,
		pipeline:   p,
		translator: translator,
		now:        time.Now,
		state:      fsm.StateIdle,
		stop:       make(chan struct{}, 1),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run starts the pipeline and blocks until a stop request, ctx cancellation,
// or a pipeline failure. Buffered audio and pending text are drained before
// Run returns.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: c.now()}

	if err := c.transition(fsm.EventStart); err != nil {
		result.State = c.State()
		result.Err = fmt.Errorf("%w: %v", ErrAlreadyRunning, err)
		result.FinishedAt = c.now()
		return result
	}
	c.mu.Lock()
	c.startedAt = result.StartedAt
	c.mu.Unlock()
	c.log(slog.LevelInfo, "session running")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.pipeline.Run(runCtx)
	}()

	var err error
	select {
	case err = <-done:
		result.Interrupted = ctx.Err() != nil
		if err == nil || errors.Is(err, context.Canceled) {
			_ = c.transition(fsm.EventStop)
		}
	case <-ctx.Done():
		result.Interrupted = true
		_ = c.transition(fsm.EventStop)
		c.log(slog.LevelInfo, "session draining", "cause", "interrupt")
		err = <-done
	case <-c.stop:
		result.Stopped = true
		_ = c.transition(fsm.EventStop)
		c.log(slog.LevelInfo, "session draining", "cause", "stop request")
		cancel()
		err = <-done
	}

	result.Stats = c.pipeline.Stats()
	result.FinishedAt = c.now()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.toErrorAndReset()
		result.State = c.State()
		result.Err = err
		return result
	}

	if tErr := c.transition(fsm.EventDrained); tErr != nil {
		result.Err = tErr
	}
	result.State = c.State()
	return result
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Message: "status", Stats: c.stats()}
	case ipc.CommandStop:
		return c.requestStop()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStop enqueues a stop when state permits it.
func (c *Controller) requestStop() ipc.Response {
	state := c.State()
	if state == fsm.StateDraining {
		return ipc.Response{OK: false, State: string(state), Error: "already draining"}
	}
	if state != fsm.StateRunning {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}

	select {
	case c.stop <- struct{}{}:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

func (c *Controller) stats() *ipc.Stats {
	c.mu.RLock()
	startedAt := c.startedAt
	c.mu.RUnlock()

	ps := c.pipeline.Stats()
	stats := &ipc.Stats{
		Frames:   ps.Frames,
		Segments: ps.Segments,
		Lines:    ps.Lines,
		Queued:   ps.Queued,
	}
	if !startedAt.IsZero() {
		stats.UptimeMS = c.now().Sub(startedAt).Milliseconds()
	}
	if c.translator != nil {
		stats.Translated, stats.TranslateErr = c.translator.Counts()
	}
	return stats
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

func (c *Controller) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}
