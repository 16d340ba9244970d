package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envAPIKey  = "OPENAI_API_KEY"
	envBaseURL = "OPENAI_BASE_URL"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Secrets left empty in the file are filled from the environment, after
// loading any .env file found next to the config or in the working directory.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env"); err != nil {
		return Loaded{}, err
	}

	loaded, err := loadFile(resolvedPath)
	if err != nil {
		return Loaded{}, err
	}

	ApplyEnv(&loaded.Config, os.LookupEnv)
	loaded.Warnings = append(loaded.Warnings, secretWarnings(loaded.Config)...)
	return loaded, nil
}

func loadFile(resolvedPath string) (Loaded, error) {
	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// loadDotEnv loads each existing file into the process environment without
// overriding variables that are already set.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv fills empty OpenAI credentials from lookup. Values set in the
// config file win.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		if value, ok := lookup(key); ok {
			*dst = strings.TrimSpace(value)
		}
	}

	fill(&cfg.Transcribe.OpenAI.APIKey, envAPIKey)
	fill(&cfg.Transcribe.OpenAI.BaseURL, envBaseURL)
	fill(&cfg.Translate.APIKey, envAPIKey)
	fill(&cfg.Translate.BaseURL, envBaseURL)
}

func secretWarnings(cfg Config) []Warning {
	var warnings []Warning
	if cfg.Transcribe.Engine == EngineOpenAI && cfg.Transcribe.OpenAI.APIKey == "" {
		warnings = append(warnings, Warning{Message: "transcribe.engine=openai but no api key is configured (set " + envAPIKey + ")"})
	}
	if cfg.Translate.Enable && cfg.Translate.APIKey == "" {
		warnings = append(warnings, Warning{Message: "translate.enable=true but no api key is configured; translation is disabled"})
	}
	return warnings
}
