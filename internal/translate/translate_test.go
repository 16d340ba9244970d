package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/livesub/internal/transcript"
)

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func writeChunk(w http.ResponseWriter, content string) {
	chunk := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": nil,
		}},
	}
	payload, _ := json.Marshal(chunk)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
}

func newChatServer(t *testing.T, reply func(req chatRequest) []string) (*httptest.Server, *[]chatRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []chatRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range reply(req) {
			writeChunk(w, part)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

type recordingDisplay struct {
	mu      sync.Mutex
	results []Result
}

func (d *recordingDisplay) ShowTranslation(_ context.Context, result Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, result)
	return nil
}

func (d *recordingDisplay) all() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Result(nil), d.results...)
}

func TestTranslateAccumulatesStreamedDeltas(t *testing.T) {
	t.Parallel()

	server, requests := newChatServer(t, func(chatRequest) []string {
		return []string{"你好", "，", "世界。 "}
	})
	tr := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"}, nil, nil, nil)
	t.Cleanup(func() { _ = tr.Drain(context.Background()) })

	text, err := tr.Translate(context.Background(), "Hello, world.")
	require.NoError(t, err)
	require.Equal(t, "你好，世界。", text)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.True(t, req.Stream)
	require.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 2)
	require.Equal(t, "system", req.Messages[0].Role)
	require.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)
	require.Equal(t, "user", req.Messages[1].Role)
	require.Equal(t, "Hello, world.", req.Messages[1].Content)
}

func TestEmitTranslatesLinesInOrderAndDrainWaits(t *testing.T) {
	t.Parallel()

	server, _ := newChatServer(t, func(req chatRequest) []string {
		return []string{"<" + req.Messages[1].Content + ">"}
	})
	display := &recordingDisplay{}
	tr := New(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL + "/v1",
		Model:        "qwen3:4b",
		SystemPrompt: "translate",
	}, []Display{display}, nil, nil)
	require.True(t, tr.Enabled())
	require.Equal(t, "translate", tr.Name())

	for i, text := range []string{"one.", "two.", "three."} {
		require.NoError(t, tr.Emit(context.Background(), transcript.Line{ID: fmt.Sprint(i), Text: text}))
	}
	require.NoError(t, tr.Emit(context.Background(), transcript.Line{ID: "blank", Text: "  "}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Drain(ctx))

	results := display.all()
	require.Len(t, results, 3)
	require.Equal(t, "<one.>", results[0].Text)
	require.Equal(t, "two.", results[1].Source)
	require.Equal(t, "2", results[2].LineID)

	delivered, failed := tr.Counts()
	require.Equal(t, 3, delivered)
	require.Zero(t, failed)

	require.Error(t, tr.Emit(context.Background(), transcript.Line{Text: "late"}))
}

func TestTranslationFailureIsCountedAndSkipped(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(server.Close)

	display := &recordingDisplay{}
	tr := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"}, []Display{display}, nil, nil)
	require.NoError(t, tr.Emit(context.Background(), transcript.Line{ID: "a", Text: "Hello."}))
	require.NoError(t, tr.Drain(context.Background()))

	require.Empty(t, display.all())
	delivered, failed := tr.Counts()
	require.Zero(t, delivered)
	require.Equal(t, 1, failed)
}

func TestMissingAPIKeyDisablesTranslation(t *testing.T) {
	t.Parallel()

	display := &recordingDisplay{}
	tr := New(Config{APIKey: "   "}, []Display{display}, nil, nil)
	require.False(t, tr.Enabled())
	require.NoError(t, tr.Emit(context.Background(), transcript.Line{Text: "Hello."}))
	require.NoError(t, tr.Drain(context.Background()))
	require.Empty(t, display.all())

	_, err := tr.Translate(context.Background(), "Hello.")
	require.ErrorContains(t, err, "disabled")
}

func TestDrainCancelsSlowTranslationAtDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	tr := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"}, nil, nil, nil)
	require.NoError(t, tr.Emit(context.Background(), transcript.Line{Text: "slow"}))
	require.NoError(t, tr.Emit(context.Background(), transcript.Line{Text: "queued"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.Drain(ctx)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), context.DeadlineExceeded.Error()))
}
