// Package openai is a speech engine backed by an OpenAI-compatible
// /audio/transcriptions endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rbright/livesub/internal/transcribe"
)

const defaultModel = string(oai.AudioModelWhisper1)

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(e *Engine) {
		if model = strings.TrimSpace(model); model != "" {
			e.model = model
		}
	}
}

// WithBaseURL points the client at a compatible server.
func WithBaseURL(url string) Option {
	return func(e *Engine) { e.baseURL = strings.TrimSpace(url) }
}

// WithPrompt sets the transcription prompt, usually a vocabulary list.
func WithPrompt(prompt string) Option {
	return func(e *Engine) { e.prompt = strings.TrimSpace(prompt) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) { e.httpClient = client }
}

// Engine uploads each segment as a WAV file.
type Engine struct {
	client     oai.Client
	model      string
	baseURL    string
	prompt     string
	httpClient *http.Client
}

var _ transcribe.Engine = (*Engine)(nil)

func New(apiKey string, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	e := &Engine{model: defaultModel}
	for _, opt := range opts {
		opt(e)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if e.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
	}
	if e.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(e.httpClient))
	}
	// retries are owned by the gate
	clientOpts = append(clientOpts, option.WithMaxRetries(0))
	e.client = oai.NewClient(clientOpts...)
	return e, nil
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	wav := transcribe.EncodeWAV(req.Samples, req.SampleRate)
	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:          oai.AudioModel(e.model),
		ResponseFormat: oai.AudioResponseFormatJSON,
		Temperature:    oai.Float(0),
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}
	if e.prompt != "" {
		params.Prompt = oai.String(e.prompt)
	}
	// whisper-1 rejects chunking_strategy; newer transcribe models accept server VAD.
	if req.VADFilter && e.model != defaultModel {
		vad := &oai.AudioTranscriptionNewParamsChunkingStrategyVadConfig{Type: "server_vad"}
		if req.MinSilenceDurationMS > 0 {
			vad.SilenceDurationMs = oai.Int(int64(req.MinSilenceDurationMS))
		}
		params.ChunkingStrategy = oai.AudioTranscriptionNewParamsChunkingStrategyUnion{
			OfAudioTranscriptionNewsChunkingStrategyVadConfig: vad,
		}
	}

	resp, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai: transcription: %w", err)
	}
	return transcribe.Result{Text: resp.Text, Language: req.Language}, nil
}
