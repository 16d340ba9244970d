package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// argvToken accumulates one word. bare is true while no quote or escape has
// touched it, which is when a leading "~" may expand to the home directory.
type argvToken struct {
	text    strings.Builder
	started bool
	bare    bool
}

func (t *argvToken) add(r rune, quoted bool) {
	if !t.started {
		t.started, t.bare = true, true
	}
	if quoted {
		t.bare = false
	}
	t.text.WriteRune(r)
}

// parseArgv splits an output.command value into argv words. Single and
// double quotes group words, backslash escapes the next rune, and a value
// starting with "#" disables the command.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv  []string
		tok   argvToken
		quote rune
	)
	escaped := false

	emit := func() {
		if !tok.started {
			return
		}
		word := tok.text.String()
		if tok.bare {
			word = expandHome(word)
		}
		argv = append(argv, word)
		tok = argvToken{}
	}

	for _, r := range input {
		if escaped {
			tok.add(r, true)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if quote != 0 {
			if r == quote {
				quote = 0
			} else {
				tok.add(r, true)
			}
			continue
		}

		switch {
		case r == '\'' || r == '"':
			quote = r
			if !tok.started {
				tok.started = true
			}
			tok.bare = false
		case unicode.IsSpace(r):
			emit()
		default:
			tok.add(r, false)
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	emit()
	return argv, nil
}

func expandHome(word string) string {
	if word != "~" && !strings.HasPrefix(word, "~/") {
		return word
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return word
	}
	return filepath.Join(home, strings.TrimPrefix(word, "~"))
}
