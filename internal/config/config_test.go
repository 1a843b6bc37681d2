package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, 16000, cfg.Voice.SampleRate)
	assert.Equal(t, "linear16", cfg.Voice.Encoding)
	assert.Equal(t, "flux-general-en", cfg.STT.Model)
	assert.Equal(t, "pNInz6obpgDQGcFmaJgB", cfg.TTS.VoiceID)
	assert.Equal(t, "mp3_22050_32", cfg.TTS.OutputFormat)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Memory.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "10ms", cfg.Voice.PollInterval().String())
	assert.Equal(t, "2m0s", cfg.Voice.TurnTimeout().String())
	assert.Equal(t, "30s", cfg.TTS.Timeout().String())
	assert.Equal(t, "10m0s", cfg.Places.CacheTTL().String())
	assert.Equal(t, "10m0s", cfg.Executor.Timeout().String())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
gateway:
  port: 9999
  bind: lan
  auth:
    token: secret123
voice:
  sampleRate: 24000
tts:
  voiceId: custom-voice
llm:
  provider: anthropic
  model: claude-sonnet-4-5
  fallbacks: [backup]
  providers:
    backup:
      api: openai-completions
      model: gpt-4o-mini
places:
  location:
    lat: 40.7128
    lng: -74.006
logging:
  level: debug
  consoleStyle: json
hooks:
  order_confirmed:
    - command: "echo confirmed"
      timeout: 500
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "secret123", cfg.Gateway.Auth.Token)
	assert.Equal(t, 24000, cfg.Voice.SampleRate)
	assert.Equal(t, "linear16", cfg.Voice.Encoding)
	assert.Equal(t, "custom-voice", cfg.TTS.VoiceID)
	assert.Equal(t, "eleven_multilingual_v2", cfg.TTS.ModelID)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, []string{"backup"}, cfg.LLM.Fallbacks)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Providers["backup"].Model)
	assert.InDelta(t, 40.7128, cfg.Places.Location.Lat, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	require.Len(t, cfg.Hooks["order_confirmed"], 1)
	assert.Equal(t, 500, cfg.Hooks["order_confirmed"][0].Timeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FOODVOICE_GATEWAY_PORT", "12345")
	t.Setenv("FOODVOICE_LOG_LEVEL", "TRACE")
	t.Setenv("FOODVOICE_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, "dg-key", cfg.STT.APIKey)
}

func TestLoadFileCredentialWinsOverEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tts:\n  apiKey: from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TTS.APIKey)
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("MY_PLACES_KEY", "places-123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("places:\n  apiKey: ${MY_PLACES_KEY}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "places-123", cfg.Places.APIKey)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FV_TEST_SET", "value")
	assert.Equal(t, "value", expandEnvVars("${FV_TEST_SET}"))
	assert.Equal(t, "pre-value-post", expandEnvVars("pre-${FV_TEST_SET}-post"))
	assert.Equal(t, "${FV_TEST_UNSET_XYZ}", expandEnvVars("${FV_TEST_UNSET_XYZ}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestMarshalMasksCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.TTS.APIKey = "sk-elevenlabs-secret"
	cfg.Gateway.Auth.Token = "short"
	cfg.LLM.Providers = map[string]ProviderConfig{
		"backup": {API: "openai-completions", Model: "m", APIKey: "provider-secret-key"},
	}

	data, err := Marshal(cfg)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "sk-elevenlabs-secret")
	assert.NotContains(t, out, "provider-secret-key")
	assert.Contains(t, out, "sk-e****")
	assert.NotContains(t, out, "short")
	assert.Equal(t, "provider-secret-key", cfg.LLM.Providers["backup"].APIKey, "original must not be mutated")
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	SetValueAtPath(raw, []string{"tts", "voiceId"}, "abc")
	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)
	v, ok := GetValueAtPath(loaded, []string{"tts", "voiceId"})
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestValidateValid(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateIssues(t *testing.T) {
	temp := 3.0
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"port", func(c *Config) { c.Gateway.Port = 99999 }, "gateway.port"},
		{"bind", func(c *Config) { c.Gateway.Bind = "everywhere" }, "gateway.bind"},
		{"tls", func(c *Config) { c.Gateway.TLS.Enabled = true }, "gateway.tls"},
		{"sample rate", func(c *Config) { c.Voice.SampleRate = 0 }, "voice.sampleRate"},
		{"encoding", func(c *Config) { c.Voice.Encoding = "opus" }, "voice.encoding"},
		{"poll interval", func(c *Config) { c.Voice.PollIntervalMs = 5000 }, "voice.pollIntervalMs"},
		{"provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
		{"model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"temperature", func(c *Config) { c.LLM.Temperature = &temp }, "llm.temperature"},
		{"latitude", func(c *Config) { c.Places.Location.Lat = 91 }, "places.location.lat"},
		{"max results", func(c *Config) { c.Places.MaxResults = 50 }, "places.maxResults"},
		{"memory driver", func(c *Config) { c.Memory.Driver = "pinecone" }, "memory.driver"},
		{"qdrant url", func(c *Config) { c.Memory.Driver = "qdrant" }, "memory.qdrant.url"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"hook command", func(c *Config) { c.Hooks = HooksConfig{"turn_end": {{}}} }, "hooks.turn_end[0].command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1)
			assert.Equal(t, tt.path, issues[0].Path)
			assert.Contains(t, issues[0].String(), tt.path)
		})
	}
}

func TestValidateProviderEntries(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers = map[string]ProviderConfig{"x": {API: "grpc"}}
	issues := Validate(&cfg)

	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.ElementsMatch(t, []string{"llm.providers.x.api", "llm.providers.x.model"}, paths)
}
