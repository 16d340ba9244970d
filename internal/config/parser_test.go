package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	input := `
{
  // capture from whatever is playing
  "audio": {"input": "loopback", "fallback": "default", "frame_ms": 50},
  "segment": {
    "silence_threshold": 0.02,
    "min_silence_ms": 600,
    "min_chunk_seconds": 2,
    "max_buffer_seconds": 6,
    "starvation_age_ratio": 0.75,
    "starvation_min_ratio": 0.25,
  },
  "assembly": {"gap_seconds": 1.5, "max_pending_chars": 100, "terminators": ".?!", "sentence_case": true},
  "pipeline": {"receive_timeout_ms": 250, "shutdown_timeout_ms": 3000},
  "transcribe": {
    "engine": "openai",
    "language": "de",
    "vad_filter": false,
    "timeout_ms": 9000,
    "retries": 2,
    "retry_backoff_ms": 100,
    "openai": {"model": "gpt-4o-mini-transcribe", "base_url": "http://127.0.0.1:8000/v1", "api_key": "sk-file"},
  },
  "translate": {"enable": true, "model": "qwen3:4b", "system_prompt": "Translate to German.", "timeout_ms": 0},
  "output": {
    "format": "jsonl",
    "max_chars": 0,
    "command": "tee -a '/tmp/live subs.txt'",
    "notify": {"enable": true, "timeout_ms": 2500},
  },
  "metrics": {"addr": "127.0.0.1:9464"},
  "vocab": {
    "global": ["core", "team"],
    "sets": {
      "core": {"boost": 14, "phrases": ["livesub", "Hyprland"]},
      "team": {"boost": 18, "phrases": ["livesub", "Riva"]},
    },
  },
  "debug": {"log_level": "debug", "stats_every": 10, "audio_dump": true},
}
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)

	require.Equal(t, 50, cfg.Audio.FrameMS)
	require.Equal(t, SegmentConfig{
		SilenceThreshold:   0.02,
		MinSilenceMS:       600,
		MinChunkSeconds:    2,
		MaxBufferSeconds:   6,
		StarvationAgeRatio: 0.75,
		StarvationMinRatio: 0.25,
	}, cfg.Segment)
	require.Equal(t, AssemblyConfig{GapSeconds: 1.5, MaxPendingChars: 100, Terminators: ".?!", SentenceCase: true}, cfg.Assembly)
	require.Equal(t, PipelineConfig{ReceiveTimeoutMS: 250, ShutdownTimeoutMS: 3000}, cfg.Pipeline)

	require.Equal(t, EngineOpenAI, cfg.Transcribe.Engine)
	require.Equal(t, "de", cfg.Transcribe.Language)
	require.False(t, cfg.Transcribe.VADFilter)
	require.Equal(t, 2, cfg.Transcribe.Retries)
	require.Equal(t, "gpt-4o-mini-transcribe", cfg.Transcribe.OpenAI.Model)
	require.Equal(t, "sk-file", cfg.Transcribe.OpenAI.APIKey)
	require.Equal(t, "http://127.0.0.1:8000/v1", cfg.Transcribe.OpenAI.BaseURL)

	require.Equal(t, "qwen3:4b", cfg.Translate.Model)
	require.Equal(t, "Translate to German.", cfg.Translate.SystemPrompt)
	require.Zero(t, cfg.Translate.TimeoutMS)

	require.Equal(t, "jsonl", cfg.Output.Format)
	require.Zero(t, cfg.Output.MaxChars)
	require.Equal(t, []string{"tee", "-a", "/tmp/live subs.txt"}, cfg.Output.Command.Argv)
	require.True(t, cfg.Output.Notify.Enable)
	require.Equal(t, "livesub", cfg.Output.Notify.AppName)
	require.Equal(t, 2500, cfg.Output.Notify.TimeoutMS)

	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	require.Equal(t, DebugConfig{LogLevel: "debug", StatsEvery: 10, AudioDump: true}, cfg.Debug)

	require.Len(t, warnings, 1, "duplicate phrase across sets")
	phrases, _, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Len(t, phrases, 3)
	for _, p := range phrases {
		if p.Phrase == "livesub" {
			require.Equal(t, float32(18), p.Boost)
		}
	}
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"paste": {"enable": true}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseRejectsNonObjectContent(t *testing.T) {
	_, _, err := Parse("// legacy\ntranscribe.engine = riva\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseLineNumberOnError(t *testing.T) {
	_, _, err := Parse("{\n\n  \"audio\": {\"input\": }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseValidatesResult(t *testing.T) {
	_, _, err := Parse(`{"transcribe": {"engine": "vosk"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "transcribe.engine")
}
