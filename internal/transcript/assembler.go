// Package transcript merges transcribed fragments into finished subtitle lines.
package transcript

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultTerminators end a sentence in the languages we transcribe.
const DefaultTerminators = `.!?。！？"'`

// Reason names why a line was emitted.
type Reason string

const (
	ReasonComplete Reason = "complete"
	ReasonGap      Reason = "gap"
	ReasonLength   Reason = "length"
	ReasonExpired  Reason = "expired"
	ReasonShutdown Reason = "shutdown"
)

// Options controls when fragments are merged.
type Options struct {
	// Gap is the idle time after which the next fragment closes the line.
	Gap time.Duration
	// MaxPendingRunes caps a pending line.
	MaxPendingRunes int
	// Terminators lists runes that mark a line as complete.
	Terminators string
	// SentenceCase capitalizes sentence starts and the pronoun "i" in emitted lines.
	SentenceCase bool
}

func DefaultOptions() Options {
	return Options{
		Gap:             2 * time.Second,
		MaxPendingRunes: 80,
		Terminators:     DefaultTerminators,
	}
}

// Line is a finished subtitle line.
type Line struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
	Fragments int       `json:"fragments"`
	Reason    Reason    `json:"reason"`
}

// Assembler accumulates fragments into a pending line and decides when the
// line is finished. It is owned by a single worker.
type Assembler struct {
	opts Options

	pending   string
	fragments int
	lastEmit  time.Time
	started   bool
	// atSentenceStart is false after a line that was cut mid-sentence.
	atSentenceStart bool
}

func NewAssembler(opts Options) *Assembler {
	defaults := DefaultOptions()
	if opts.Gap <= 0 {
		opts.Gap = defaults.Gap
	}
	if opts.MaxPendingRunes <= 0 {
		opts.MaxPendingRunes = defaults.MaxPendingRunes
	}
	if opts.Terminators == "" {
		opts.Terminators = defaults.Terminators
	}
	return &Assembler{opts: opts, atSentenceStart: true}
}

// Absorb merges fragment into the pending line and returns a finished line
// when the merged text is complete, too long, or arrives after the gap.
func (a *Assembler) Absorb(fragment string, now time.Time) (Line, bool) {
	fragment = normalize(fragment)
	if fragment == "" {
		return Line{}, false
	}
	if !a.started {
		a.started = true
		a.lastEmit = now
	}

	candidate := join(a.pending, fragment)
	gap := now.Sub(a.lastEmit)
	complete := a.LooksComplete(candidate)
	long := utf8.RuneCountInString(candidate) >= a.opts.MaxPendingRunes

	if gap < a.opts.Gap && !complete && !long {
		a.pending = candidate
		a.fragments++
		return Line{}, false
	}

	reason := ReasonComplete
	switch {
	case gap >= a.opts.Gap:
		reason = ReasonGap
	case long && !complete:
		reason = ReasonLength
	}

	a.pending = candidate
	a.fragments++
	return a.emit(now, reason), true
}

// Expire flushes a pending line that has waited at least the gap.
func (a *Assembler) Expire(now time.Time) (Line, bool) {
	if a.pending == "" || now.Sub(a.lastEmit) < a.opts.Gap {
		return Line{}, false
	}
	return a.emit(now, ReasonExpired), true
}

// Flush emits any pending line unconditionally. It is used at shutdown.
func (a *Assembler) Flush(now time.Time) (Line, bool) {
	if a.pending == "" {
		return Line{}, false
	}
	return a.emit(now, ReasonShutdown), true
}

// Pending returns the text waiting to be emitted.
func (a *Assembler) Pending() string { return a.pending }

// LooksComplete reports whether text ends with a terminator. Empty text is
// complete.
func (a *Assembler) LooksComplete(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(a.opts.Terminators, last)
}

func (a *Assembler) emit(now time.Time, reason Reason) Line {
	text := a.pending
	if a.opts.SentenceCase {
		text = sentenceCase(text, a.atSentenceStart)
	}
	a.atSentenceStart = a.LooksComplete(a.pending)

	line := Line{
		ID:        uuid.NewString(),
		Text:      text,
		At:        now,
		Fragments: a.fragments,
		Reason:    reason,
	}
	a.pending = ""
	a.fragments = 0
	a.lastEmit = now
	return line
}

func join(pending, fragment string) string {
	if pending == "" {
		return fragment
	}
	return pending + " " + fragment
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
