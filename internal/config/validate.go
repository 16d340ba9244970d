package config

import (
	"fmt"
	"strings"
)

// Supported speech engines.
const (
	EngineWhisper = "whisper"
	EngineOpenAI  = "openai"
	EngineRiva    = "riva"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	if cfg.Audio.FrameMS <= 0 || cfg.Audio.FrameMS > 1000 {
		return nil, fmt.Errorf("audio.frame_ms must be in (0, 1000]")
	}

	seg := cfg.Segment
	if seg.SilenceThreshold <= 0 || seg.SilenceThreshold >= 1 {
		return nil, fmt.Errorf("segment.silence_threshold must be in (0, 1)")
	}
	if seg.MinSilenceMS <= 0 {
		return nil, fmt.Errorf("segment.min_silence_ms must be > 0")
	}
	if seg.MinChunkSeconds <= 0 {
		return nil, fmt.Errorf("segment.min_chunk_seconds must be > 0")
	}
	if seg.MaxBufferSeconds < seg.MinChunkSeconds {
		return nil, fmt.Errorf("segment.max_buffer_seconds must be >= segment.min_chunk_seconds")
	}
	if seg.StarvationAgeRatio <= 0 || seg.StarvationAgeRatio > 1 {
		return nil, fmt.Errorf("segment.starvation_age_ratio must be in (0, 1]")
	}
	if seg.StarvationMinRatio <= 0 || seg.StarvationMinRatio > 1 {
		return nil, fmt.Errorf("segment.starvation_min_ratio must be in (0, 1]")
	}

	if cfg.Assembly.GapSeconds <= 0 {
		return nil, fmt.Errorf("assembly.gap_seconds must be > 0")
	}
	if cfg.Assembly.MaxPendingChars <= 0 {
		return nil, fmt.Errorf("assembly.max_pending_chars must be > 0")
	}
	if cfg.Assembly.Terminators == "" {
		return nil, fmt.Errorf("assembly.terminators must not be empty")
	}

	if cfg.Pipeline.ReceiveTimeoutMS <= 0 {
		return nil, fmt.Errorf("pipeline.receive_timeout_ms must be > 0")
	}
	if cfg.Pipeline.ShutdownTimeoutMS <= 0 {
		return nil, fmt.Errorf("pipeline.shutdown_timeout_ms must be > 0")
	}

	if err := validateTranscribe(cfg.Transcribe); err != nil {
		return nil, err
	}

	if cfg.Translate.Enable && strings.TrimSpace(cfg.Translate.Model) == "" {
		return nil, fmt.Errorf("translate.model must not be empty when translate.enable=true")
	}
	if cfg.Translate.TimeoutMS < 0 {
		return nil, fmt.Errorf("translate.timeout_ms must be >= 0")
	}

	switch cfg.Output.Format {
	case "text", "jsonl":
	default:
		return nil, fmt.Errorf("output.format must be one of: text, jsonl")
	}
	if cfg.Output.MaxChars < 0 {
		return nil, fmt.Errorf("output.max_chars must be >= 0")
	}
	if cfg.Output.Notify.Enable && strings.TrimSpace(cfg.Output.Notify.AppName) == "" {
		return nil, fmt.Errorf("output.notify.app_name must not be empty when output.notify.enable=true")
	}
	if cfg.Output.Notify.TimeoutMS < 0 {
		return nil, fmt.Errorf("output.notify.timeout_ms must be >= 0")
	}
	if cfg.Output.Command.Raw != "" && len(cfg.Output.Command.Argv) == 0 {
		return nil, fmt.Errorf("output.command is configured but empty")
	}

	switch cfg.Debug.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("debug.log_level must be one of: debug, info, warn, error")
	}
	if cfg.Debug.StatsEvery < 0 {
		return nil, fmt.Errorf("debug.stats_every must be >= 0")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	if cfg.Segment.MinSilenceMS < cfg.Audio.FrameMS {
		warnings = append(warnings, Warning{Message: "segment.min_silence_ms is shorter than one audio frame"})
	}

	return warnings, nil
}

func validateTranscribe(t TranscribeConfig) error {
	if t.TimeoutMS <= 0 {
		return fmt.Errorf("transcribe.timeout_ms must be > 0")
	}
	if t.Retries < 0 {
		return fmt.Errorf("transcribe.retries must be >= 0")
	}
	if t.RetryBackoffMS < 0 {
		return fmt.Errorf("transcribe.retry_backoff_ms must be >= 0")
	}

	switch t.Engine {
	case EngineWhisper:
		if strings.TrimSpace(t.Whisper.ServerURL) == "" {
			return fmt.Errorf("transcribe.whisper.server_url must not be empty")
		}
	case EngineOpenAI:
		if strings.TrimSpace(t.OpenAI.Model) == "" {
			return fmt.Errorf("transcribe.openai.model must not be empty")
		}
	case EngineRiva:
		r := t.Riva
		if strings.TrimSpace(r.GRPC) == "" {
			return fmt.Errorf("transcribe.riva.grpc must not be empty")
		}
		if strings.TrimSpace(r.HTTP) == "" {
			return fmt.Errorf("transcribe.riva.http must not be empty")
		}
		if !strings.HasPrefix(strings.TrimSpace(r.HealthPath), "/") {
			return fmt.Errorf("transcribe.riva.health_path must start with '/'")
		}
		if strings.TrimSpace(r.LanguageCode) == "" {
			return fmt.Errorf("transcribe.riva.language_code must not be empty")
		}
	default:
		return fmt.Errorf("transcribe.engine must be one of: %s, %s, %s", EngineWhisper, EngineOpenAI, EngineRiva)
	}
	return nil
}
