// Package translate streams finished subtitle lines through an
// OpenAI-compatible chat model and forwards the translations to displays.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rbright/livesub/internal/observe"
	"github.com/rbright/livesub/internal/queue"
	"github.com/rbright/livesub/internal/transcript"
)

const (
	DefaultModel = "gpt-4o-mini"

	DefaultSystemPrompt = "You are a professional simultaneous interpreter. " +
		"Translate the following English text into concise, natural Chinese. " +
		"Do NOT explain. Only output the translation."
)

// Result is one translated line.
type Result struct {
	LineID  string        `json:"line_id"`
	Source  string        `json:"source"`
	Text    string        `json:"text"`
	At      time.Time     `json:"at"`
	Latency time.Duration `json:"latency_ns"`
}

// Display shows translations next to the original subtitle.
type Display interface {
	ShowTranslation(ctx context.Context, result Result) error
}

// Config configures the chat completion client.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	// Timeout bounds one translation request. Zero means no per-request limit.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Translator is a pipeline sink. Emit only queues the line; a single worker
// translates lines in order.
type Translator struct {
	cfg      Config
	client   oai.Client
	displays []Display
	logger   *slog.Logger
	metrics  *observe.Metrics

	disabled bool
	lines    *queue.Queue[transcript.Line]

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	delivered int
	failed    int
}

// New builds a Translator and starts its worker. Without an API key the
// translator is disabled: it logs once and drops every line.
func New(cfg Config, displays []Display, logger *slog.Logger, metrics *observe.Metrics) *Translator {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	t := &Translator{
		cfg:      cfg,
		displays: displays,
		logger:   logger,
		metrics:  metrics,
		lines:    queue.New[transcript.Line](),
		done:     make(chan struct{}),
	}

	if cfg.APIKey == "" {
		t.disabled = true
		t.lines.Close()
		close(t.done)
		t.log(slog.LevelWarn, "translation disabled: no api key configured")
		return t
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	t.client = oai.NewClient(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx)

	t.log(slog.LevelInfo, "translation enabled", "model", cfg.Model, "base_url", cfg.BaseURL)
	return t
}

func (t *Translator) Name() string { return "translate" }

// Enabled reports whether lines are being translated.
func (t *Translator) Enabled() bool { return !t.disabled }

// Emit queues line for translation and never blocks.
func (t *Translator) Emit(_ context.Context, line transcript.Line) error {
	if t.disabled || strings.TrimSpace(line.Text) == "" {
		return nil
	}
	if !t.lines.Push(line) {
		return errors.New("translator is closed")
	}
	return nil
}

// Drain stops accepting lines and waits for queued lines to finish. When ctx
// expires first, in-flight work is cancelled and the remainder dropped.
func (t *Translator) Drain(ctx context.Context) error {
	t.lines.Close()
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		dropped := t.lines.Len()
		if t.cancel != nil {
			t.cancel()
		}
		<-t.done
		t.log(slog.LevelWarn, "translation drain timed out", "dropped", dropped)
		return fmt.Errorf("drain translator: %w", ctx.Err())
	}
}

// Counts reports delivered and failed translations.
func (t *Translator) Counts() (delivered int, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delivered, t.failed
}

func (t *Translator) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	for {
		line, err := t.lines.Pop(ctx, 0)
		if err != nil {
			return
		}
		t.handle(ctx, line)
	}
}

func (t *Translator) handle(ctx context.Context, line transcript.Line) {
	start := time.Now()
	text, err := t.Translate(ctx, line.Text)
	latency := time.Since(start)
	t.metrics.RecordTranslation(ctx, latency, err)

	if err != nil {
		t.mu.Lock()
		t.failed++
		t.mu.Unlock()
		t.log(slog.LevelWarn, "translation failed", "line_id", line.ID, "error", err.Error())
		return
	}
	if text == "" {
		return
	}

	result := Result{
		LineID:  line.ID,
		Source:  line.Text,
		Text:    text,
		At:      time.Now(),
		Latency: latency,
	}
	for _, display := range t.displays {
		if err := display.ShowTranslation(ctx, result); err != nil {
			t.log(slog.LevelWarn, "translation display failed", "line_id", line.ID, "error", err.Error())
		}
	}

	t.mu.Lock()
	t.delivered++
	t.mu.Unlock()
	t.log(slog.LevelDebug, "line translated", "line_id", line.ID, "latency_ms", latency.Milliseconds())
}

// Translate streams one chat completion and returns the accumulated text.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if t.disabled {
		return "", errors.New("translator is disabled")
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	stream := t.client.Chat.Completions.NewStreaming(ctx, oai.ChatCompletionNewParams{
		Model: t.cfg.Model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(t.cfg.SystemPrompt),
			oai.UserMessage(text),
		},
	})
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("translate stream: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (t *Translator) log(level slog.Level, msg string, args ...any) {
	if t.logger == nil {
		return
	}
	t.logger.Log(context.Background(), level, msg, args...)
}
