package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	if cfg.Voice.SampleRate <= 0 {
		add("voice.sampleRate", "must be positive, got %d", cfg.Voice.SampleRate)
	}
	if cfg.Voice.Encoding != "" && cfg.Voice.Encoding != DefaultEncoding {
		add("voice.encoding", "only %q is supported, got %q", DefaultEncoding, cfg.Voice.Encoding)
	}
	if cfg.Voice.PollIntervalMs <= 0 || cfg.Voice.PollIntervalMs > 1000 {
		add("voice.pollIntervalMs", "must be 1-1000, got %d", cfg.Voice.PollIntervalMs)
	}
	if cfg.Voice.MaxQueuedTurns < 0 {
		add("voice.maxQueuedTurns", "must not be negative, got %d", cfg.Voice.MaxQueuedTurns)
	}

	validProviders := []string{"openai", "anthropic"}
	if !slices.Contains(validProviders, cfg.LLM.Provider) {
		add("llm.provider", "must be one of %v, got %q", validProviders, cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		add("llm.model", "required")
	}
	if cfg.LLM.Temperature != nil && (*cfg.LLM.Temperature < 0 || *cfg.LLM.Temperature > 2) {
		add("llm.temperature", "must be 0-2, got %v", *cfg.LLM.Temperature)
	}
	validAPIs := []string{"openai-completions", "anthropic-messages"}
	for name, p := range cfg.LLM.Providers {
		if !slices.Contains(validAPIs, p.API) {
			add("llm.providers."+name+".api", "must be one of %v, got %q", validAPIs, p.API)
		}
		if p.Model == "" {
			add("llm.providers."+name+".model", "required")
		}
	}

	if cfg.Places.Location.Lat < -90 || cfg.Places.Location.Lat > 90 {
		add("places.location.lat", "must be -90..90, got %v", cfg.Places.Location.Lat)
	}
	if cfg.Places.Location.Lng < -180 || cfg.Places.Location.Lng > 180 {
		add("places.location.lng", "must be -180..180, got %v", cfg.Places.Location.Lng)
	}
	if cfg.Places.MaxResults < 0 || cfg.Places.MaxResults > 20 {
		add("places.maxResults", "must be 0-20, got %d", cfg.Places.MaxResults)
	}

	validDrivers := []string{"sqlite", "qdrant", "none"}
	if !slices.Contains(validDrivers, cfg.Memory.Driver) {
		add("memory.driver", "must be one of %v, got %q", validDrivers, cfg.Memory.Driver)
	}
	if cfg.Memory.Driver == "qdrant" && cfg.Memory.Qdrant.URL == "" {
		add("memory.qdrant.url", "required when memory.driver is qdrant")
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	for event, entries := range cfg.Hooks {
		for i, h := range entries {
			if h.Command == "" {
				add(fmt.Sprintf("hooks.%s[%d].command", event, i), "required")
			}
		}
	}

	return issues
}
