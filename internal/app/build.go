package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/livesub/internal/audio"
	"github.com/rbright/livesub/internal/config"
	"github.com/rbright/livesub/internal/observe"
	"github.com/rbright/livesub/internal/output"
	"github.com/rbright/livesub/internal/pipeline"
	"github.com/rbright/livesub/internal/riva"
	"github.com/rbright/livesub/internal/segment"
	"github.com/rbright/livesub/internal/transcribe"
	"github.com/rbright/livesub/internal/transcribe/openai"
	"github.com/rbright/livesub/internal/transcribe/whisper"
	"github.com/rbright/livesub/internal/transcript"
	"github.com/rbright/livesub/internal/translate"
	"github.com/rbright/livesub/internal/version"
)

// stack holds everything one `run` invocation builds from config.
type stack struct {
	pipeline   *pipeline.Pipeline
	translator *translate.Translator
	metrics    *observe.Metrics
	checkers   []observe.Checker
	closers    []func() error
}

func (rt *stack) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// buildRuntime wires metrics, the speech engine, sinks, and the pipeline.
// capture may be nil, in which case Pulse loopback capture is used.
func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer, capture pipeline.CaptureFunc) (*stack, error) {
	rt := &stack{}

	if cfg.Metrics.Addr != "" {
		mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version.Version})
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		rt.closers = append(rt.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
		if rt.metrics, err = observe.NewMetrics(mp); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}

	engine, err := buildEngine(cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	logger.Info("speech engine ready", "engine", engine.Name(), "language", cfg.Transcribe.Language)

	gate := transcribe.NewGate(engine, transcribe.GateConfig{
		Language:     cfg.Transcribe.Language,
		VADFilter:    cfg.Transcribe.VADFilter,
		MinSilenceMS: cfg.Segment.MinSilenceMS,
		Timeout:      millis(cfg.Transcribe.TimeoutMS),
		Retries:      cfg.Transcribe.Retries,
		RetryBackoff: millis(cfg.Transcribe.RetryBackoffMS),
	}, logger, rt.metrics)

	sinks, err := buildSinks(cfg, logger, stdout, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	opts := pipelineOptions(cfg)
	if cfg.Debug.AudioDump {
		dir, err := pipeline.DebugDir()
		if err != nil {
			logger.Warn("audio dump disabled", "error", err.Error())
		} else {
			opts.DumpDir = dir
		}
	}

	if capture == nil {
		capture = pulseCapture(cfg, logger)
	}
	rt.pipeline = pipeline.New(opts, capture, gate, sinks, logger, rt.metrics)
	return rt, nil
}

// buildEngine constructs the configured speech engine.
func buildEngine(cfg config.Config, rt *stack) (transcribe.Engine, error) {
	phrases, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}
	prompt := config.VocabPrompt(phrases)

	switch cfg.Transcribe.Engine {
	case config.EngineWhisper:
		engine, err := whisper.New(cfg.Transcribe.Whisper.ServerURL,
			whisper.WithModel(cfg.Transcribe.Whisper.Model),
			whisper.WithPrompt(prompt),
		)
		if err != nil {
			return nil, err
		}
		rt.checkers = append(rt.checkers, observe.Checker{Name: "whisper", Check: engine.Ping})
		return engine, nil

	case config.EngineOpenAI:
		return openai.New(cfg.Transcribe.OpenAI.APIKey,
			openai.WithModel(cfg.Transcribe.OpenAI.Model),
			openai.WithBaseURL(cfg.Transcribe.OpenAI.BaseURL),
			openai.WithPrompt(prompt),
		)

	case config.EngineRiva:
		rivaPhrases := make([]riva.SpeechPhrase, 0, len(phrases))
		for _, p := range phrases {
			rivaPhrases = append(rivaPhrases, riva.SpeechPhrase{Phrase: p.Phrase, Boost: p.Boost})
		}
		client, err := riva.NewClient(riva.Config{
			Endpoint:             cfg.Transcribe.Riva.GRPC,
			LanguageCode:         cfg.Transcribe.Riva.LanguageCode,
			Model:                cfg.Transcribe.Riva.Model,
			AutomaticPunctuation: cfg.Transcribe.Riva.AutomaticPunctuation,
			SpeechPhrases:        rivaPhrases,
		})
		if err != nil {
			return nil, err
		}
		engine := riva.NewEngine(client)
		rt.closers = append(rt.closers, engine.Close)
		rt.checkers = append(rt.checkers, observe.Checker{Name: "riva", Check: engine.Ready})
		return engine, nil

	default:
		return nil, fmt.Errorf("unsupported transcribe.engine %q", cfg.Transcribe.Engine)
	}
}

// buildSinks returns the sinks in delivery order. The translator comes last
// so display sinks have already shown the source line when its result lands.
func buildSinks(cfg config.Config, logger *slog.Logger, stdout io.Writer, rt *stack) ([]pipeline.Sink, error) {
	terminal := output.NewTerminal(stdout, output.Format(cfg.Output.Format), cfg.Output.MaxChars)
	sinks := []pipeline.Sink{terminal}
	displays := []translate.Display{terminal}

	if cfg.Output.Notify.Enable {
		notifier := output.NewNotifier(output.NotifierOptions{
			AppName:   cfg.Output.Notify.AppName,
			TimeoutMS: cfg.Output.Notify.TimeoutMS,
			MaxChars:  cfg.Output.MaxChars,
		})
		sinks = append(sinks, notifier)
		displays = append(displays, notifier)
	}

	if len(cfg.Output.Command.Argv) > 0 {
		command, err := output.NewCommand(cfg.Output.Command.Argv, millis(cfg.Output.CommandTimeoutMS))
		if err != nil {
			return nil, fmt.Errorf("output.command: %w", err)
		}
		sinks = append(sinks, command)
	}

	if cfg.Translate.Enable {
		rt.translator = translate.New(translate.Config{
			APIKey:       cfg.Translate.APIKey,
			BaseURL:      cfg.Translate.BaseURL,
			Model:        cfg.Translate.Model,
			SystemPrompt: cfg.Translate.SystemPrompt,
			Timeout:      millis(cfg.Translate.TimeoutMS),
		}, displays, logger, rt.metrics)
		sinks = append(sinks, rt.translator)
	}

	return sinks, nil
}

func pipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Policy: segment.Policy{
			SampleRate:         audio.SampleRate,
			SilenceThreshold:   cfg.Segment.SilenceThreshold,
			MinSilence:         millis(cfg.Segment.MinSilenceMS),
			MinChunk:           seconds(cfg.Segment.MinChunkSeconds),
			MaxBuffer:          seconds(cfg.Segment.MaxBufferSeconds),
			StarvationAgeRatio: cfg.Segment.StarvationAgeRatio,
			StarvationMinRatio: cfg.Segment.StarvationMinRatio,
		},
		Assembly: transcript.Options{
			Gap:             seconds(cfg.Assembly.GapSeconds),
			MaxPendingRunes: cfg.Assembly.MaxPendingChars,
			Terminators:     cfg.Assembly.Terminators,
			SentenceCase:    cfg.Assembly.SentenceCase,
		},
		ReceiveTimeout:  millis(cfg.Pipeline.ReceiveTimeoutMS),
		ShutdownTimeout: millis(cfg.Pipeline.ShutdownTimeoutMS),
		StatsEvery:      cfg.Debug.StatsEvery,
	}
}

// pulseCapture selects the configured source and records it at call time.
func pulseCapture(cfg config.Config, logger *slog.Logger) pipeline.CaptureFunc {
	return func(ctx context.Context, emit func(audio.Frame)) (pipeline.Stopper, error) {
		selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
		if err != nil {
			return nil, err
		}
		if selection.Warning != "" {
			logger.Warn("audio source fallback", "warning", selection.Warning)
		}
		capture, err := audio.StartCapture(ctx, selection.Device, audio.CaptureOptions{
			FrameDuration: millis(cfg.Audio.FrameMS),
			Emit:          emit,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return capture, nil
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
