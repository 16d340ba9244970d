// Package doctor runs readiness diagnostics for config, audio, speech engines,
// translation, and output tools.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/livesub/internal/audio"
	"github.com/rbright/livesub/internal/config"
	"github.com/rbright/livesub/internal/riva"
	"github.com/rbright/livesub/internal/transcribe/whisper"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	checks := []Check{{Name: "config", Pass: true, Message: message}}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory is set", "XDG_RUNTIME_DIR is empty; stop/status are unavailable"))

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkEngine(ctx, cfg.Config))

	if cfg.Config.Translate.Enable {
		checks = append(checks, checkTranslationKey(cfg.Config))
	}
	if cfg.Config.Output.Notify.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}
	if cfg.Config.Output.Command.Raw != "" {
		checks = append(checks, checkCommand(cfg.Config.Output.Command.Argv, "output.command"))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live source selection to surface loopback/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEngine probes whichever speech engine is configured.
func checkEngine(ctx context.Context, cfg config.Config) Check {
	name := "transcribe." + cfg.Transcribe.Engine
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	switch cfg.Transcribe.Engine {
	case config.EngineWhisper:
		engine, err := whisper.New(cfg.Transcribe.Whisper.ServerURL)
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		if err := engine.Ping(probeCtx); err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("server answering at %s", cfg.Transcribe.Whisper.ServerURL)}

	case config.EngineOpenAI:
		if strings.TrimSpace(cfg.Transcribe.OpenAI.APIKey) == "" {
			return Check{Name: name, Pass: false, Message: "OPENAI_API_KEY is not set"}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("api key present (model %s)", cfg.Transcribe.OpenAI.Model)}

	case config.EngineRiva:
		url, err := riva.CheckHTTPReady(probeCtx, cfg.Transcribe.Riva.HTTP, cfg.Transcribe.Riva.HealthPath)
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("ready at %s", url)}

	default:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("unknown engine %q", cfg.Transcribe.Engine)}
	}
}

// checkTranslationKey reports whether the translation sink can authenticate.
func checkTranslationKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.Translate.APIKey) == "" {
		return Check{Name: "translate", Pass: false, Message: "OPENAI_API_KEY is not set; translation is disabled"}
	}
	return Check{Name: "translate", Pass: true, Message: fmt.Sprintf("api key present (model %s)", cfg.Translate.Model)}
}
