// Package config loads and validates the foodvoice YAML configuration.
package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults for values that are swappable configuration rather than architecture.
const (
	DefaultPort          = 8000
	DefaultSampleRate    = 16000
	DefaultEncoding      = "linear16"
	DefaultSTTURL        = "wss://api.deepgram.com/v2/listen"
	DefaultSTTModel      = "flux-general-en"
	DefaultTTSBaseURL    = "https://api.elevenlabs.io/v1"
	DefaultVoiceID       = "pNInz6obpgDQGcFmaJgB"
	DefaultTTSModel      = "eleven_multilingual_v2"
	DefaultOutputFormat  = "mp3_22050_32"
	DefaultLLMProvider   = "openai"
	DefaultLLMModel      = "gpt-4o-mini"
	DefaultEmbedModel    = "text-embedding-3-small"
	DefaultQdrantCollect = "dietary_preferences"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port:           DefaultPort,
			Bind:           "loopback",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Voice: VoiceConfig{
			SampleRate:         DefaultSampleRate,
			Encoding:           DefaultEncoding,
			PollIntervalMs:     10,
			TurnTimeoutSeconds: 120,
			MaxQueuedTurns:     8,
		},
		STT: STTConfig{
			URL:   DefaultSTTURL,
			Model: DefaultSTTModel,
		},
		TTS: TTSConfig{
			BaseURL:        DefaultTTSBaseURL,
			VoiceID:        DefaultVoiceID,
			ModelID:        DefaultTTSModel,
			OutputFormat:   DefaultOutputFormat,
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			Provider:  DefaultLLMProvider,
			Model:     DefaultLLMModel,
			MaxTokens: 512,
		},
		Places: PlacesConfig{
			Location:        LatLng{Lat: 30.2672, Lng: -97.7431},
			RadiusMeters:    5000,
			MaxResults:      8,
			CacheTTLMinutes: 10,
			IncludedTypes:   []string{"restaurant"},
		},
		Research: ResearchConfig{
			MaxTokens: 1500,
		},
		Memory: MemoryConfig{
			Driver: "sqlite",
			Qdrant: QdrantConfig{Collection: DefaultQdrantCollect},
			Embedding: EmbeddingConfig{
				Model:      DefaultEmbedModel,
				Dimensions: 1536,
			},
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 600,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// PollInterval returns the audio drain interval as a duration.
func (v VoiceConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalMs) * time.Millisecond
}

// TurnTimeout bounds one engine run plus synthesis.
func (v VoiceConfig) TurnTimeout() time.Duration {
	return time.Duration(v.TurnTimeoutSeconds) * time.Second
}

// Timeout returns the TTS request timeout.
func (t TTSConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long place search results stay cached.
func (p PlacesConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLMinutes) * time.Minute
}

// Timeout returns the executor request timeout.
func (e ExecutorConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}
