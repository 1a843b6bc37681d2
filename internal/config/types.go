package config

// Config is the root configuration for foodvoice.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Voice    VoiceConfig    `yaml:"voice,omitempty"`
	STT      STTConfig      `yaml:"stt,omitempty"`
	TTS      TTSConfig      `yaml:"tts,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Places   PlacesConfig   `yaml:"places,omitempty"`
	Research ResearchConfig `yaml:"research,omitempty"`
	Memory   MemoryConfig   `yaml:"memory,omitempty"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Executor ExecutorConfig `yaml:"executor,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures the optional bearer token checked on websocket upgrade.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// VoiceConfig holds per-session defaults and turn-controller tuning.
type VoiceConfig struct {
	SampleRate         int    `yaml:"sampleRate,omitempty"`
	Encoding           string `yaml:"encoding,omitempty"`
	PollIntervalMs     int    `yaml:"pollIntervalMs,omitempty"`
	TurnTimeoutSeconds int    `yaml:"turnTimeoutSeconds,omitempty"`
	MaxQueuedTurns     int    `yaml:"maxQueuedTurns,omitempty"`
}

// STTConfig points at the streaming transcription service.
type STTConfig struct {
	URL    string `yaml:"url,omitempty"`
	Model  string `yaml:"model,omitempty"`
	APIKey string `yaml:"apiKey,omitempty"`
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
	VoiceID        string `yaml:"voiceId,omitempty"`
	ModelID        string `yaml:"modelId,omitempty"`
	OutputFormat   string `yaml:"outputFormat,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LLMConfig selects the chat model and its provider credentials.
type LLMConfig struct {
	Provider    string                    `yaml:"provider,omitempty"` // "openai" | "anthropic"
	Model       string                    `yaml:"model,omitempty"`
	Fallbacks   []string                  `yaml:"fallbacks,omitempty"`
	APIKey      string                    `yaml:"apiKey,omitempty"`
	BaseURL     string                    `yaml:"baseUrl,omitempty"`
	MaxTokens   int                       `yaml:"maxTokens,omitempty"`
	Temperature *float64                  `yaml:"temperature,omitempty"`
	Providers   map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// ProviderConfig defines an additional provider usable as a fallback.
type ProviderConfig struct {
	API     string   `yaml:"api"` // "openai-completions" | "anthropic-messages"
	BaseURL string   `yaml:"baseUrl,omitempty"`
	APIKey  string   `yaml:"apiKey,omitempty"`
	Model   string   `yaml:"model"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// PlacesConfig configures the restaurant search.
type PlacesConfig struct {
	APIKey          string   `yaml:"apiKey,omitempty"`
	CredentialsFile string   `yaml:"credentialsFile,omitempty"`
	Endpoint        string   `yaml:"endpoint,omitempty"`
	Location        LatLng   `yaml:"location,omitempty"`
	RadiusMeters    float64  `yaml:"radiusMeters,omitempty"`
	MaxResults      int      `yaml:"maxResults,omitempty"`
	CacheTTLMinutes int      `yaml:"cacheTtlMinutes,omitempty"`
	IncludedTypes   []string `yaml:"includedTypes,omitempty"`
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// ResearchConfig configures the menu/platform research step.
type ResearchConfig struct {
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"maxTokens,omitempty"`
}

// MemoryConfig configures the dietary preference memory.
type MemoryConfig struct {
	Driver    string          `yaml:"driver,omitempty"` // "sqlite" | "qdrant" | "none"
	Qdrant    QdrantConfig    `yaml:"qdrant,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
}

// QdrantConfig holds the vector store connection.
type QdrantConfig struct {
	URL        string `yaml:"url,omitempty"`
	APIKey     string `yaml:"apiKey,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"baseUrl,omitempty"`
	APIKey     string `yaml:"apiKey,omitempty"`
	Model      string `yaml:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// RedisConfig enables the shared search cache. Empty URL means in-process cache.
type RedisConfig struct {
	URL string `yaml:"url,omitempty"`
}

// ExecutorConfig points at the browser-automation service.
type ExecutorConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// StoreConfig locates the SQLite database. Empty path uses the data dir.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig maps lifecycle events to shell commands.
type HooksConfig map[string][]HookEntry

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
