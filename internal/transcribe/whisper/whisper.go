// Package whisper is a speech engine backed by a whisper.cpp server
// (POST /inference with a multipart WAV upload).
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/livesub/internal/transcribe"
)

// Option configures an Engine.
type Option func(*Engine)

// WithModel forwards a model name to the server. Empty uses whatever model
// the server was started with.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = strings.TrimSpace(model) }
}

// WithPrompt primes decoding with vocabulary the audio is likely to contain.
func WithPrompt(prompt string) Option {
	return func(e *Engine) { e.prompt = strings.TrimSpace(prompt) }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// Engine posts each segment to the server and returns its text.
type Engine struct {
	serverURL  string
	model      string
	prompt     string
	httpClient *http.Client
}

var _ transcribe.Engine = (*Engine)(nil)

func New(serverURL string, opts ...Option) (*Engine, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, errors.New("whisper: server url must not be empty")
	}
	e := &Engine{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Name() string { return "whisper" }

func (e *Engine) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(transcribe.EncodeWAV(req.Samples, req.SampleRate)); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "json"},
		{"temperature", "0"},
	}
	if req.Language != "" {
		fields = append(fields, [2]string{"language", req.Language})
	}
	if e.model != "" {
		fields = append(fields, [2]string{"model", e.model})
	}
	if e.prompt != "" {
		fields = append(fields, [2]string{"prompt", e.prompt})
	}
	if req.VADFilter {
		fields = append(fields, [2]string{"vad", "true"})
		if req.MinSilenceDurationMS > 0 {
			fields = append(fields, [2]string{"vad_min_silence_duration_ms", strconv.Itoa(req.MinSilenceDurationMS)})
		}
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return transcribe.Result{}, fmt.Errorf("whisper: write %s field: %w", field[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return transcribe.Result{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	if result.Error != "" {
		return transcribe.Result{}, fmt.Errorf("whisper: server error: %s", result.Error)
	}
	return transcribe.Result{Text: result.Text, Language: req.Language}, nil
}

// Ping checks that the server answers HTTP at all.
func (e *Engine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: server unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	return nil
}
