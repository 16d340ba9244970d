// Package config resolves, parses, validates, and defaults livesub configuration.
package config

// Config is the fully materialized runtime configuration used by livesub.
type Config struct {
	Audio      AudioConfig
	Segment    SegmentConfig
	Assembly   AssemblyConfig
	Pipeline   PipelineConfig
	Transcribe TranscribeConfig
	Translate  TranslateConfig
	Output     OutputConfig
	Metrics    MetricsConfig
	Vocab      VocabConfig
	Debug      DebugConfig
}

// AudioConfig controls loopback source selection and frame size.
type AudioConfig struct {
	// Input is "loopback", "default", or a substring of a source ID/description.
	Input    string
	Fallback string
	FrameMS  int
}

// SegmentConfig holds the segmentation thresholds.
type SegmentConfig struct {
	SilenceThreshold   float64
	MinSilenceMS       int
	MinChunkSeconds    float64
	MaxBufferSeconds   float64
	StarvationAgeRatio float64
	StarvationMinRatio float64
}

// AssemblyConfig controls when fragments merge into one line.
type AssemblyConfig struct {
	GapSeconds      float64
	MaxPendingChars int
	Terminators     string
	SentenceCase    bool
}

// PipelineConfig controls worker timing.
type PipelineConfig struct {
	ReceiveTimeoutMS  int
	ShutdownTimeoutMS int
}

// TranscribeConfig selects and configures the speech engine.
type TranscribeConfig struct {
	Engine         string
	Language       string
	VADFilter      bool
	TimeoutMS      int
	Retries        int
	RetryBackoffMS int
	Whisper        WhisperConfig
	OpenAI         OpenAIConfig
	Riva           RivaConfig
}

// WhisperConfig points at a whisper.cpp server.
type WhisperConfig struct {
	ServerURL string
	Model     string
}

// OpenAIConfig configures the OpenAI-compatible transcription endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RivaConfig configures the Riva gRPC engine.
type RivaConfig struct {
	GRPC                 string
	HTTP                 string
	HealthPath           string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
}

// TranslateConfig configures the streaming translation sink.
type TranslateConfig struct {
	Enable       bool
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	TimeoutMS    int
}

// OutputConfig controls display sinks.
type OutputConfig struct {
	Format           string
	MaxChars         int
	Notify           NotifyConfig
	Command          CommandConfig
	CommandTimeoutMS int
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enable    bool
	AppName   string
	TimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// MetricsConfig controls the metrics/health HTTP listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls logging verbosity and debug artifacts.
type DebugConfig struct {
	LogLevel   string
	StatsEvery int
	AudioDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to ASR adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
