// Package output delivers finished subtitle lines to the terminal, desktop
// notifications, and external commands.
package output

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rbright/livesub/internal/transcript"
)

const defaultCommandTimeout = 2 * time.Second

// Command pipes each line to an external program on stdin.
type Command struct {
	argv    []string
	timeout time.Duration
}

// NewCommand builds a Command sink. A non-positive timeout uses 2s.
func NewCommand(argv []string, timeout time.Duration) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command argv cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Command{argv: append([]string(nil), argv...), timeout: timeout}, nil
}

func (c *Command) Name() string { return "command" }

// Emit runs the command with the line text and a trailing newline on stdin.
func (c *Command) Emit(ctx context.Context, line transcript.Line) error {
	if line.Text == "" {
		return nil
	}
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := runCommandWithInput(cmdCtx, c.argv, line.Text+"\n"); err != nil {
		return fmt.Errorf("run line command: %w", err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
