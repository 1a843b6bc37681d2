package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in credential fields.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.STT.APIKey = expandEnvVars(cfg.STT.APIKey)
	cfg.TTS.APIKey = expandEnvVars(cfg.TTS.APIKey)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Places.APIKey = expandEnvVars(cfg.Places.APIKey)
	cfg.Memory.Qdrant.APIKey = expandEnvVars(cfg.Memory.Qdrant.APIKey)
	cfg.Memory.Embedding.APIKey = expandEnvVars(cfg.Memory.Embedding.APIKey)
	cfg.Executor.APIKey = expandEnvVars(cfg.Executor.APIKey)
	cfg.Redis.URL = expandEnvVars(cfg.Redis.URL)
	for name, p := range cfg.LLM.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		cfg.LLM.Providers[name] = p
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Marshal renders the config as YAML with credentials masked.
func Marshal(cfg Config) ([]byte, error) {
	masked := cfg
	masked.Gateway.Auth.Token = mask(cfg.Gateway.Auth.Token)
	masked.STT.APIKey = mask(cfg.STT.APIKey)
	masked.TTS.APIKey = mask(cfg.TTS.APIKey)
	masked.LLM.APIKey = mask(cfg.LLM.APIKey)
	masked.Places.APIKey = mask(cfg.Places.APIKey)
	masked.Memory.Qdrant.APIKey = mask(cfg.Memory.Qdrant.APIKey)
	masked.Memory.Embedding.APIKey = mask(cfg.Memory.Embedding.APIKey)
	masked.Executor.APIKey = mask(cfg.Executor.APIKey)
	if len(cfg.LLM.Providers) > 0 {
		masked.LLM.Providers = make(map[string]ProviderConfig, len(cfg.LLM.Providers))
		for name, p := range cfg.LLM.Providers {
			p.APIKey = mask(p.APIKey)
			masked.LLM.Providers[name] = p
		}
	}
	return yaml.Marshal(masked)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Voice.SampleRate == 0 {
		cfg.Voice.SampleRate = d.Voice.SampleRate
	}
	if cfg.Voice.Encoding == "" {
		cfg.Voice.Encoding = d.Voice.Encoding
	}
	if cfg.Voice.PollIntervalMs == 0 {
		cfg.Voice.PollIntervalMs = d.Voice.PollIntervalMs
	}
	if cfg.Voice.TurnTimeoutSeconds == 0 {
		cfg.Voice.TurnTimeoutSeconds = d.Voice.TurnTimeoutSeconds
	}
	if cfg.Voice.MaxQueuedTurns == 0 {
		cfg.Voice.MaxQueuedTurns = d.Voice.MaxQueuedTurns
	}
	if cfg.STT.URL == "" {
		cfg.STT.URL = d.STT.URL
	}
	if cfg.STT.Model == "" {
		cfg.STT.Model = d.STT.Model
	}
	if cfg.TTS.BaseURL == "" {
		cfg.TTS.BaseURL = d.TTS.BaseURL
	}
	if cfg.TTS.VoiceID == "" {
		cfg.TTS.VoiceID = d.TTS.VoiceID
	}
	if cfg.TTS.ModelID == "" {
		cfg.TTS.ModelID = d.TTS.ModelID
	}
	if cfg.TTS.OutputFormat == "" {
		cfg.TTS.OutputFormat = d.TTS.OutputFormat
	}
	if cfg.TTS.TimeoutSeconds == 0 {
		cfg.TTS.TimeoutSeconds = d.TTS.TimeoutSeconds
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = d.LLM.Provider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if cfg.Places.RadiusMeters == 0 {
		cfg.Places.RadiusMeters = d.Places.RadiusMeters
	}
	if cfg.Places.MaxResults == 0 {
		cfg.Places.MaxResults = d.Places.MaxResults
	}
	if cfg.Places.CacheTTLMinutes == 0 {
		cfg.Places.CacheTTLMinutes = d.Places.CacheTTLMinutes
	}
	if cfg.Research.MaxTokens == 0 {
		cfg.Research.MaxTokens = d.Research.MaxTokens
	}
	if cfg.Memory.Driver == "" {
		cfg.Memory.Driver = d.Memory.Driver
	}
	if cfg.Memory.Qdrant.Collection == "" {
		cfg.Memory.Qdrant.Collection = d.Memory.Qdrant.Collection
	}
	if cfg.Memory.Embedding.Model == "" {
		cfg.Memory.Embedding.Model = d.Memory.Embedding.Model
	}
	if cfg.Memory.Embedding.Dimensions == 0 {
		cfg.Memory.Embedding.Dimensions = d.Memory.Embedding.Dimensions
	}
	if cfg.Executor.TimeoutSeconds == 0 {
		cfg.Executor.TimeoutSeconds = d.Executor.TimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads FOODVOICE_* and provider credential variables.
// Credentials from the environment only fill fields the file left empty.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOODVOICE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("FOODVOICE_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("FOODVOICE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FOODVOICE_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("FOODVOICE_EXECUTOR_URL"); v != "" {
		cfg.Executor.BaseURL = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Memory.Qdrant.URL = v
	}

	fillFromEnv(&cfg.Gateway.Auth.Token, "FOODVOICE_GATEWAY_TOKEN")
	fillFromEnv(&cfg.STT.APIKey, "DEEPGRAM_API_KEY")
	fillFromEnv(&cfg.TTS.APIKey, "ELEVENLABS_API_KEY")
	fillFromEnv(&cfg.Places.APIKey, "GOOGLE_PLACES_API_KEY")
	fillFromEnv(&cfg.Memory.Qdrant.APIKey, "QDRANT_API_KEY")
	switch cfg.LLM.Provider {
	case "anthropic":
		fillFromEnv(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	default:
		fillFromEnv(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	}
	fillFromEnv(&cfg.Memory.Embedding.APIKey, "OPENAI_API_KEY")
}

func fillFromEnv(field *string, name string) {
	if *field != "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		*field = v
	}
}
