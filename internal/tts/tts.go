// Package tts turns assistant replies into speech.
package tts

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned when the synthesizer has no credentials.
var ErrNoAPIKey = errors.New("tts: API key required")

// VoiceConfig selects the voice for one synthesis call. Empty fields fall
// back to the synthesizer's defaults.
type VoiceConfig struct {
	VoiceID string
	ModelID string
}

// Synthesizer converts text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
}

// APIError is a non-success response from a TTS API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports rate limiting and server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}
