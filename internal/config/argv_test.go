package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "  ", want: nil},
		{name: "disabled by comment", input: `# tee -a subs.txt`, want: nil},
		{name: "plain words", input: "logger -t livesub", want: []string{"logger", "-t", "livesub"}},
		{name: "double quotes", input: `tee -a "/tmp/live subs.txt"`, want: []string{"tee", "-a", "/tmp/live subs.txt"}},
		{name: "single quotes", input: `sh -c 'cat >> out'`, want: []string{"sh", "-c", "cat >> out"}},
		{name: "escaped space", input: `tee live\ subs.txt`, want: []string{"tee", "live subs.txt"}},
		{name: "empty quoted word", input: `printf "" x`, want: []string{"printf", "", "x"}},
		{name: "tilde expands", input: `tee -a ~/subs.txt`, want: []string{"tee", "-a", filepath.Join(home, "subs.txt")}},
		{name: "quoted tilde kept", input: `tee -a "~/subs.txt"`, want: []string{"tee", "-a", "~/subs.txt"}},
		{name: "tilde user kept", input: `ls ~root`, want: []string{"ls", "~root"}},
		{name: "unterminated quote", input: `tee "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `tee oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
