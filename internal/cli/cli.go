// Package cli parses the livesub command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStop    Command = "stop"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commands lists every subcommand in help order.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandRun, "Capture system audio and print live subtitles until stopped"},
	{CommandStop, "Stop the running session after draining pending audio and text"},
	{CommandStatus, "Print the running session's state and counters"},
	{CommandDevices, "List available audio sources (monitor sources are loopback)"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

func lookup(name string) (Command, bool) {
	for _, c := range commands {
		if string(c.name) == name {
			return c.name, true
		}
	}
	return "", false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

// Parse accepts global flags followed by at most one trailing subcommand.
// With no subcommand it falls back to help.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if value, ok := strings.CutPrefix(arg, "--config="); ok {
			if strings.TrimSpace(value) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = value
			continue
		}

		switch arg {
		case "-h", "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
			continue
		case "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
			continue
		case "--config":
			if i+1 >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			i++
			parsed.ConfigPath = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		}
		cmd, ok := lookup(arg)
		if !ok {
			return Parsed{}, fmt.Errorf("unknown command: %s", arg)
		}
		if rest := args[i+1:]; len(rest) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q: %s", arg, strings.Join(rest, " "))
		}
		parsed.Command, parsed.ShowHelp = cmd, cmd == CommandHelp
	}

	return parsed, nil
}

// HelpText renders usage for binaryName.
func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command>\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/livesub/config.jsonc)
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}
