package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/livesub/internal/segment"
	"github.com/rbright/livesub/internal/transcribe"
)

// DebugDir returns the directory for segment WAV dumps under the XDG state home.
func DebugDir() (string, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "livesub", "debug"), nil
}

// resolveStateDir returns XDG_STATE_HOME fallback path for debug artifacts.
func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

// dumpSegment writes seg as a WAV file when dumping is enabled. Failures are
// logged and otherwise ignored.
func (p *Pipeline) dumpSegment(seg segment.Segment) {
	if p.opts.DumpDir == "" || len(seg.Samples) == 0 {
		return
	}
	if err := writeSegmentWAV(p.opts.DumpDir, seg); err != nil {
		p.log(slog.LevelWarn, "debug audio dump failed", "seq", seg.Seq, "error", err.Error())
	}
}

func writeSegmentWAV(dir string, seg segment.Segment) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}

	started := seg.StartedAt.Format("20060102-150405.000")
	path := filepath.Join(dir, fmt.Sprintf("segment-%s-%06d-%s.wav", started, seg.Seq, seg.Reason))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open debug file %q: %w", path, err)
	}

	werr := transcribe.WriteWAV(file, transcribe.PCM16LE(seg.Samples), seg.SampleRate, 1)
	cerr := file.Close()
	if werr != nil {
		return fmt.Errorf("write debug wav %q: %w", path, werr)
	}
	return cerr
}
