package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/livesub/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return v != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "output.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-bin", "--arg"}, "output.command")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "output.command command is available")
}

func TestCheckEngineRivaReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health/ready", r.URL.Path)
		_, _ = w.Write([]byte("ready"))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Transcribe.Engine = config.EngineRiva
	cfg.Transcribe.Riva.HTTP = strings.TrimPrefix(server.URL, "http://")

	check := checkEngine(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Equal(t, "transcribe.riva", check.Name)
	require.Contains(t, check.Message, "ready at")
}

func TestCheckEngineRivaFailureStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Transcribe.Engine = config.EngineRiva
	cfg.Transcribe.Riva.HTTP = server.URL

	check := checkEngine(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 503")
}

func TestCheckEngineWhisperPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Transcribe.Whisper.ServerURL = server.URL

	check := checkEngine(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, server.URL)

	server.Close()
	check = checkEngine(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unreachable")
}

func TestCheckEngineOpenAIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Transcribe.Engine = config.EngineOpenAI

	check := checkEngine(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "OPENAI_API_KEY")

	cfg.Transcribe.OpenAI.APIKey = "sk-test"
	check = checkEngine(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "whisper-1")
}

func TestCheckTranslationKey(t *testing.T) {
	cfg := config.Default()
	require.False(t, checkTranslationKey(cfg).Pass)

	cfg.Translate.APIKey = "sk-test"
	check := checkTranslationKey(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "gpt-4o-mini")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestRunIncludesOptionalChecksOnlyWhenEnabled(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "fake-sink"), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Translate.Enable = false
	cfg.Transcribe.Whisper.ServerURL = "http://127.0.0.1:1"

	names := func(report Report) map[string]bool {
		out := map[string]bool{}
		for _, check := range report.Checks {
			out[check.Name] = true
		}
		return out
	}

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	seen := names(report)
	require.True(t, seen["config"])
	require.True(t, seen["XDG_RUNTIME_DIR"])
	require.True(t, seen["audio.device"])
	require.True(t, seen["transcribe.whisper"])
	require.False(t, seen["translate"])
	require.False(t, seen["fake-sink"])
	require.False(t, report.OK())

	cfg.Translate.Enable = true
	cfg.Output.Command = config.CommandConfig{Raw: "fake-sink", Argv: []string{"fake-sink"}}
	report = Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Exists: true, Config: cfg})
	seen = names(report)
	require.True(t, seen["translate"])
	require.True(t, seen["fake-sink"])
	require.Contains(t, report.String(), `loaded "/tmp/config.jsonc"`)
}
