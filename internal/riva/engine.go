package riva

import (
	"context"
	"strings"

	"github.com/rbright/livesub/internal/transcribe"
)

// Engine adapts Client to the speech engine interface. Riva has no request
// level VAD switch, so VADFilter and MinSilenceDurationMS are ignored.
type Engine struct {
	client *Client
}

var _ transcribe.Engine = (*Engine)(nil)

func NewEngine(client *Client) *Engine {
	return &Engine{client: client}
}

func (e *Engine) Name() string { return "riva" }

func (e *Engine) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	// Riva expects BCP-47 codes with a region; a bare "en" falls back to the client default.
	language := ""
	if strings.Contains(req.Language, "-") {
		language = req.Language
	}
	segments, err := e.client.Recognize(ctx, transcribe.PCM16LE(req.Samples), req.SampleRate, language)
	if err != nil {
		return transcribe.Result{}, err
	}
	return transcribe.Result{
		Text:     strings.Join(segments, " "),
		Language: language,
	}, nil
}

func (e *Engine) Ready(ctx context.Context) error {
	return e.client.Ready(ctx)
}

func (e *Engine) Close() error {
	return e.client.Close()
}
