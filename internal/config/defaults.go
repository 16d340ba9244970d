package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:    "loopback",
			Fallback: "default",
			FrameMS:  100,
		},
		Segment: SegmentConfig{
			SilenceThreshold:   0.01,
			MinSilenceMS:       800,
			MinChunkSeconds:    2.5,
			MaxBufferSeconds:   8.0,
			StarvationAgeRatio: 0.5,
			StarvationMinRatio: 0.5,
		},
		Assembly: AssemblyConfig{
			GapSeconds:      2.0,
			MaxPendingChars: 80,
			Terminators:     `.!?。！？"'`,
		},
		Pipeline: PipelineConfig{
			ReceiveTimeoutMS:  500,
			ShutdownTimeoutMS: 5000,
		},
		Transcribe: TranscribeConfig{
			Engine:         "whisper",
			Language:       "en",
			VADFilter:      true,
			TimeoutMS:      15000,
			Retries:        1,
			RetryBackoffMS: 250,
			Whisper: WhisperConfig{
				ServerURL: "http://127.0.0.1:8080",
			},
			OpenAI: OpenAIConfig{
				Model: "whisper-1",
			},
			Riva: RivaConfig{
				GRPC:                 "127.0.0.1:50051",
				HTTP:                 "127.0.0.1:9000",
				HealthPath:           "/v1/health/ready",
				LanguageCode:         "en-US",
				AutomaticPunctuation: true,
			},
		},
		Translate: TranslateConfig{
			Enable: true,
			Model:  "gpt-4o-mini",
			SystemPrompt: "You are a professional simultaneous interpreter. " +
				"Translate the following English text into concise, natural Chinese. " +
				"Do NOT explain. Only output the translation.",
			TimeoutMS: 20000,
		},
		Output: OutputConfig{
			Format:   "text",
			MaxChars: 120,
			Notify: NotifyConfig{
				Enable:    false,
				AppName:   "livesub",
				TimeoutMS: 6000,
			},
			CommandTimeoutMS: 2000,
		},
		Metrics: MetricsConfig{},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Debug: DebugConfig{
			LogLevel:   "info",
			StatsEvery: 0,
		},
	}
}
