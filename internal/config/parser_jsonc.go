package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio      *jsoncAudio      `json:"audio"`
	Segment    *jsoncSegment    `json:"segment"`
	Assembly   *jsoncAssembly   `json:"assembly"`
	Pipeline   *jsoncPipeline   `json:"pipeline"`
	Transcribe *jsoncTranscribe `json:"transcribe"`
	Translate  *jsoncTranslate  `json:"translate"`
	Output     *jsoncOutput     `json:"output"`
	Metrics    *jsoncMetrics    `json:"metrics"`
	Vocab      *jsoncVocab      `json:"vocab"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
	FrameMS  *int    `json:"frame_ms"`
}

type jsoncSegment struct {
	SilenceThreshold   *float64 `json:"silence_threshold"`
	MinSilenceMS       *int     `json:"min_silence_ms"`
	MinChunkSeconds    *float64 `json:"min_chunk_seconds"`
	MaxBufferSeconds   *float64 `json:"max_buffer_seconds"`
	StarvationAgeRatio *float64 `json:"starvation_age_ratio"`
	StarvationMinRatio *float64 `json:"starvation_min_ratio"`
}

type jsoncAssembly struct {
	GapSeconds      *float64 `json:"gap_seconds"`
	MaxPendingChars *int     `json:"max_pending_chars"`
	Terminators     *string  `json:"terminators"`
	SentenceCase    *bool    `json:"sentence_case"`
}

type jsoncPipeline struct {
	ReceiveTimeoutMS  *int `json:"receive_timeout_ms"`
	ShutdownTimeoutMS *int `json:"shutdown_timeout_ms"`
}

type jsoncTranscribe struct {
	Engine         *string       `json:"engine"`
	Language       *string       `json:"language"`
	VADFilter      *bool         `json:"vad_filter"`
	TimeoutMS      *int          `json:"timeout_ms"`
	Retries        *int          `json:"retries"`
	RetryBackoffMS *int          `json:"retry_backoff_ms"`
	Whisper        *jsoncWhisper `json:"whisper"`
	OpenAI         *jsoncOpenAI  `json:"openai"`
	Riva           *jsoncRiva    `json:"riva"`
}

type jsoncWhisper struct {
	ServerURL *string `json:"server_url"`
	Model     *string `json:"model"`
}

type jsoncOpenAI struct {
	APIKey  *string `json:"api_key"`
	BaseURL *string `json:"base_url"`
	Model   *string `json:"model"`
}

type jsoncRiva struct {
	GRPC                 *string `json:"grpc"`
	HTTP                 *string `json:"http"`
	HealthPath           *string `json:"health_path"`
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
}

type jsoncTranslate struct {
	Enable       *bool   `json:"enable"`
	APIKey       *string `json:"api_key"`
	BaseURL      *string `json:"base_url"`
	Model        *string `json:"model"`
	SystemPrompt *string `json:"system_prompt"`
	TimeoutMS    *int    `json:"timeout_ms"`
}

type jsoncOutput struct {
	Format           *string      `json:"format"`
	MaxChars         *int         `json:"max_chars"`
	Notify           *jsoncNotify `json:"notify"`
	Command          *string      `json:"command"`
	CommandTimeoutMS *int         `json:"command_timeout_ms"`
}

type jsoncNotify struct {
	Enable    *bool   `json:"enable"`
	AppName   *string `json:"app_name"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncMetrics struct {
	Addr *string `json:"addr"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncDebug struct {
	LogLevel   *string `json:"log_level"`
	StatsEvery *int    `json:"stats_every"`
	AudioDump  *bool   `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	cfg.Vocab.Sets = cloneVocabSets(base.Vocab.Sets)
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// set copies *src into dst when the field was present in the file.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if a := payload.Audio; a != nil {
		setTrimmed(&cfg.Audio.Input, a.Input)
		setTrimmed(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.FrameMS, a.FrameMS)
	}

	if s := payload.Segment; s != nil {
		set(&cfg.Segment.SilenceThreshold, s.SilenceThreshold)
		set(&cfg.Segment.MinSilenceMS, s.MinSilenceMS)
		set(&cfg.Segment.MinChunkSeconds, s.MinChunkSeconds)
		set(&cfg.Segment.MaxBufferSeconds, s.MaxBufferSeconds)
		set(&cfg.Segment.StarvationAgeRatio, s.StarvationAgeRatio)
		set(&cfg.Segment.StarvationMinRatio, s.StarvationMinRatio)
	}

	if a := payload.Assembly; a != nil {
		set(&cfg.Assembly.GapSeconds, a.GapSeconds)
		set(&cfg.Assembly.MaxPendingChars, a.MaxPendingChars)
		set(&cfg.Assembly.Terminators, a.Terminators)
		set(&cfg.Assembly.SentenceCase, a.SentenceCase)
	}

	if p := payload.Pipeline; p != nil {
		set(&cfg.Pipeline.ReceiveTimeoutMS, p.ReceiveTimeoutMS)
		set(&cfg.Pipeline.ShutdownTimeoutMS, p.ShutdownTimeoutMS)
	}

	if t := payload.Transcribe; t != nil {
		if t.Engine != nil {
			cfg.Transcribe.Engine = strings.ToLower(strings.TrimSpace(*t.Engine))
		}
		setTrimmed(&cfg.Transcribe.Language, t.Language)
		set(&cfg.Transcribe.VADFilter, t.VADFilter)
		set(&cfg.Transcribe.TimeoutMS, t.TimeoutMS)
		set(&cfg.Transcribe.Retries, t.Retries)
		set(&cfg.Transcribe.RetryBackoffMS, t.RetryBackoffMS)

		if w := t.Whisper; w != nil {
			setTrimmed(&cfg.Transcribe.Whisper.ServerURL, w.ServerURL)
			setTrimmed(&cfg.Transcribe.Whisper.Model, w.Model)
		}
		if o := t.OpenAI; o != nil {
			setTrimmed(&cfg.Transcribe.OpenAI.APIKey, o.APIKey)
			setTrimmed(&cfg.Transcribe.OpenAI.BaseURL, o.BaseURL)
			setTrimmed(&cfg.Transcribe.OpenAI.Model, o.Model)
		}
		if r := t.Riva; r != nil {
			setTrimmed(&cfg.Transcribe.Riva.GRPC, r.GRPC)
			setTrimmed(&cfg.Transcribe.Riva.HTTP, r.HTTP)
			setTrimmed(&cfg.Transcribe.Riva.HealthPath, r.HealthPath)
			setTrimmed(&cfg.Transcribe.Riva.LanguageCode, r.LanguageCode)
			setTrimmed(&cfg.Transcribe.Riva.Model, r.Model)
			set(&cfg.Transcribe.Riva.AutomaticPunctuation, r.AutomaticPunctuation)
		}
	}

	if t := payload.Translate; t != nil {
		set(&cfg.Translate.Enable, t.Enable)
		setTrimmed(&cfg.Translate.APIKey, t.APIKey)
		setTrimmed(&cfg.Translate.BaseURL, t.BaseURL)
		setTrimmed(&cfg.Translate.Model, t.Model)
		set(&cfg.Translate.SystemPrompt, t.SystemPrompt)
		set(&cfg.Translate.TimeoutMS, t.TimeoutMS)
	}

	if o := payload.Output; o != nil {
		if o.Format != nil {
			cfg.Output.Format = strings.ToLower(strings.TrimSpace(*o.Format))
		}
		set(&cfg.Output.MaxChars, o.MaxChars)
		set(&cfg.Output.CommandTimeoutMS, o.CommandTimeoutMS)
		if n := o.Notify; n != nil {
			set(&cfg.Output.Notify.Enable, n.Enable)
			setTrimmed(&cfg.Output.Notify.AppName, n.AppName)
			set(&cfg.Output.Notify.TimeoutMS, n.TimeoutMS)
		}
		if o.Command != nil {
			raw := *o.Command
			argv, err := parseArgv(raw)
			if err != nil {
				return fmt.Errorf("invalid output.command: %w", err)
			}
			cfg.Output.Command = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if m := payload.Metrics; m != nil {
		setTrimmed(&cfg.Metrics.Addr, m.Addr)
	}

	if payload.Vocab != nil {
		if payload.Vocab.Global != nil {
			cfg.Vocab.GlobalSets = nil
			for _, name := range *payload.Vocab.Global {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
			}
		}
		set(&cfg.Vocab.MaxPhrases, payload.Vocab.MaxPhrases)
		if payload.Vocab.Sets != nil {
			if cfg.Vocab.Sets == nil {
				cfg.Vocab.Sets = make(map[string]VocabSet)
			}
			for name, vs := range payload.Vocab.Sets {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return fmt.Errorf("vocab.sets contains an empty set name")
				}

				entry := VocabSet{Name: trimmedName, Phrases: append([]string(nil), vs.Phrases...)}
				if vs.Boost != nil {
					entry.Boost = *vs.Boost
				}
				cfg.Vocab.Sets[trimmedName] = entry
			}
		}
	}

	if d := payload.Debug; d != nil {
		if d.LogLevel != nil {
			cfg.Debug.LogLevel = strings.ToLower(strings.TrimSpace(*d.LogLevel))
		}
		set(&cfg.Debug.StatsEvery, d.StatsEvery)
		set(&cfg.Debug.AudioDump, d.AudioDump)
	}

	return nil
}

func cloneVocabSets(sets map[string]VocabSet) map[string]VocabSet {
	out := make(map[string]VocabSet, len(sets))
	for name, vs := range sets {
		out[name] = vs
	}
	return out
}

// normalizeJSONC rewrites JSONC into strict JSON. Comments become spaces so
// decoder offsets still map to the original line and column.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

// copyJSONString copies the string literal opening at content[start] and
// returns the index just past its closing quote.
func copyJSONString(out *strings.Builder, content string, start int) int {
	out.WriteByte(content[start])
	for i := start + 1; i < len(content); i++ {
		ch := content[i]
		out.WriteByte(ch)
		switch ch {
		case '\\':
			if i+1 < len(content) {
				i++
				out.WriteByte(content[i])
			}
		case '"':
			return i + 1
		}
	}
	return len(content)
}

// blankPreservingLayout keeps line breaks and tabs so positions survive.
func blankPreservingLayout(ch byte) byte {
	if ch == '\n' || ch == '\r' || ch == '\t' {
		return ch
	}
	return ' '
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	for i := 0; i < len(content); {
		ch := content[i]
		switch {
		case ch == '"':
			i = copyJSONString(&out, content, i)
		case strings.HasPrefix(content[i:], "//"):
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				out.WriteByte(' ')
				i++
			}
		case strings.HasPrefix(content[i:], "/*"):
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				out.WriteByte(blankPreservingLayout(content[i]))
			}
		default:
			out.WriteByte(ch)
			i++
		}
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	for i := 0; i < len(content); {
		ch := content[i]
		if ch == '"' {
			i = copyJSONString(&out, content, i)
			continue
		}
		if ch == ',' {
			rest := strings.TrimLeft(content[i+1:], " \n\r\t")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				out.WriteByte(' ')
				i++
				continue
			}
		}
		out.WriteByte(ch)
		i++
	}

	return out.String()
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
