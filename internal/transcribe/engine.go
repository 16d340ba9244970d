// Package transcribe turns audio segments into text through a pluggable speech engine.
package transcribe

import (
	"context"
	"time"
)

// Request is one segment handed to a speech engine.
type Request struct {
	Samples    []float32
	SampleRate int
	Language   string

	// VADFilter asks the engine to drop non-speech regions itself.
	VADFilter bool
	// MinSilenceDurationMS is the silence length the engine should treat as
	// a pause. It matches the segmentation threshold.
	MinSilenceDurationMS int
}

// Result is the engine output for one request.
type Result struct {
	Text     string
	Language string
}

// Engine is a speech-to-text backend.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (Result, error)

func (f EngineFunc) Name() string { return "func" }

func (f EngineFunc) Transcribe(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Fragment is the gate output for one segment. Empty Text means no speech or
// a failed call.
type Fragment struct {
	Seq     uint64
	Text    string
	Latency time.Duration
}
