package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// clearOpenAIEnv unsets the OpenAI variables for the duration of the test.
func clearOpenAIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envAPIKey, envBaseURL} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "livesub", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "livesub", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	clearOpenAIEnv(t)
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Len(t, loaded.Warnings, 2)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
	require.Contains(t, loaded.Warnings[1].Message, "translation is disabled")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	clearOpenAIEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "transcribe": {
    "engine": "riva",
    "riva": {"grpc": "127.0.0.1:50051", "http": "127.0.0.1:9000"}
  },
  "translate": {"enable": false}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, EngineRiva, loaded.Config.Transcribe.Engine)
	require.Equal(t, "127.0.0.1:50051", loaded.Config.Transcribe.Riva.GRPC)
	require.False(t, loaded.Config.Translate.Enable)
	require.Empty(t, loaded.Warnings)
}

func TestLoadReadsSecretsFromDotEnvNextToConfig(t *testing.T) {
	clearOpenAIEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"transcribe": {"engine": "openai"}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\nOPENAI_BASE_URL=http://127.0.0.1:11434/v1\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-dotenv", loaded.Config.Transcribe.OpenAI.APIKey)
	require.Equal(t, "sk-dotenv", loaded.Config.Translate.APIKey)
	require.Equal(t, "http://127.0.0.1:11434/v1", loaded.Config.Translate.BaseURL)
	require.Empty(t, loaded.Warnings)
}

func TestLoadConfigSecretsOverrideEnvironment(t *testing.T) {
	t.Setenv(envAPIKey, "sk-env")
	t.Setenv(envBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"translate": {"api_key": "sk-file"}}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-file", loaded.Config.Translate.APIKey)
	require.Equal(t, "sk-env", loaded.Config.Transcribe.OpenAI.APIKey)
}

func TestLoadWarnsWhenOpenAIEngineHasNoKey(t *testing.T) {
	clearOpenAIEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"transcribe": {"engine": "openai"}, "translate": {"enable": false}}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "transcribe.engine=openai")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestApplyEnvFillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Transcribe.OpenAI.BaseURL = "http://file"
	env := map[string]string{envAPIKey: " sk-lookup ", envBaseURL: "http://env"}
	ApplyEnv(&cfg, func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})

	require.Equal(t, "sk-lookup", cfg.Transcribe.OpenAI.APIKey)
	require.Equal(t, "http://file", cfg.Transcribe.OpenAI.BaseURL)
	require.Equal(t, "http://env", cfg.Translate.BaseURL)
}
