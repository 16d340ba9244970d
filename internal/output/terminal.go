package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rbright/livesub/internal/translate"
	"github.com/rbright/livesub/internal/transcript"
)

// Format selects how the terminal renders lines.
type Format string

const (
	FormatText  Format = "text"
	FormatJSONL Format = "jsonl"
)

// DefaultMaxChars caps displayed subtitle text.
const DefaultMaxChars = 120

const ellipsis = "…"

// Truncate shortens text to at most maxChars runes, ending with an ellipsis
// when anything was cut. A non-positive maxChars disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	if maxChars == 1 {
		return ellipsis
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:maxChars-1]), " ") + ellipsis
}

// Terminal writes subtitles and translations to w, one record per line.
type Terminal struct {
	w        io.Writer
	format   Format
	maxChars int

	mu sync.Mutex
}

var _ translate.Display = (*Terminal)(nil)

// NewTerminal builds a Terminal sink. Unknown formats fall back to text.
func NewTerminal(w io.Writer, format Format, maxChars int) *Terminal {
	if format != FormatJSONL {
		format = FormatText
	}
	return &Terminal{w: w, format: format, maxChars: maxChars}
}

func (t *Terminal) Name() string { return "terminal" }

type terminalRecord struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
	Reason    string    `json:"reason,omitempty"`
	Fragments int       `json:"fragments,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
}

func (t *Terminal) Emit(_ context.Context, line transcript.Line) error {
	if t.format == FormatJSONL {
		return t.writeJSON(terminalRecord{
			Type:      "line",
			ID:        line.ID,
			Text:      line.Text,
			At:        line.At,
			Reason:    string(line.Reason),
			Fragments: line.Fragments,
		})
	}
	return t.writeText(fmt.Sprintf("[%s] %s\n", line.At.Format("15:04:05"), Truncate(line.Text, t.maxChars)))
}

// ShowTranslation prints a translation below its source line.
func (t *Terminal) ShowTranslation(_ context.Context, result translate.Result) error {
	if t.format == FormatJSONL {
		return t.writeJSON(terminalRecord{
			Type:      "translation",
			ID:        result.LineID,
			Text:      result.Text,
			Source:    result.Source,
			At:        result.At,
			LatencyMS: result.Latency.Milliseconds(),
		})
	}
	return t.writeText(fmt.Sprintf("           %s\n", Truncate(result.Text, t.maxChars)))
}

func (t *Terminal) writeJSON(record terminalRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", record.Type, err)
	}
	return t.writeText(string(payload) + "\n")
}

func (t *Terminal) writeText(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, s); err != nil {
		return fmt.Errorf("write terminal output: %w", err)
	}
	return nil
}
