package output

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/livesub/internal/translate"
	"github.com/rbright/livesub/internal/transcript"
)

// NotifierOptions configures desktop notifications.
type NotifierOptions struct {
	AppName   string
	TimeoutMS int
	MaxChars  int
}

// Notifier shows the latest subtitle as a freedesktop notification. Each new
// line replaces the previous bubble, and a translation is added to the body
// of the bubble it belongs to.
type Notifier struct {
	opts NotifierOptions

	mu       sync.Mutex
	id       uint32
	lineID   string
	lineText string
}

var _ translate.Display = (*Notifier)(nil)

func NewNotifier(opts NotifierOptions) *Notifier {
	if strings.TrimSpace(opts.AppName) == "" {
		opts.AppName = "livesub"
	}
	if opts.TimeoutMS <= 0 {
		opts.TimeoutMS = 6000
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	return &Notifier{opts: opts}
}

func (n *Notifier) Name() string { return "notify" }

func (n *Notifier) Emit(ctx context.Context, line transcript.Line) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	summary := Truncate(line.Text, n.opts.MaxChars)
	if err := n.show(ctx, summary, ""); err != nil {
		return err
	}
	n.lineID = line.ID
	n.lineText = summary
	return nil
}

// ShowTranslation updates the bubble when it still shows the source line.
func (n *Notifier) ShowTranslation(ctx context.Context, result translate.Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if result.LineID != n.lineID {
		return nil
	}
	return n.show(ctx, n.lineText, Truncate(result.Text, n.opts.MaxChars))
}

// Drain closes the bubble at shutdown.
func (n *Notifier) Drain(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.id == 0 {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := desktopDismiss(callCtx, n.id)
	n.id = 0
	return err
}

func (n *Notifier) show(ctx context.Context, summary string, body string) error {
	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	id, err := desktopNotify(callCtx, n.opts.AppName, n.id, summary, body, n.opts.TimeoutMS)
	if err != nil {
		return err
	}
	n.id = id
	return nil
}

// desktopNotify sends a freedesktop notification over DBus via busctl.
// It returns the notification ID assigned by the server.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, body string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		summary,
		body,
		"0", // actions array length
		"0", // hints map length
		strconv.Itoa(timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

// desktopDismiss requests explicit close by notification ID.
func desktopDismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"CloseNotification",
		"u",
		strconv.FormatUint(uint64(id), 10),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("desktop dismiss failed: %w", err)
		}
		return fmt.Errorf("desktop dismiss failed: %w (%s)", err, trimmed)
	}
	return nil
}
