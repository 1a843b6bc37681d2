package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/soyeahso/foodvoice/internal/config"
)

const providerElevenLabs = "elevenlabs"

// VoiceSettings are the ElevenLabs voice tuning knobs.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// DefaultVoiceSettings favor an expressive, close-to-source voice.
var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.0,
	SimilarityBoost: 1.0,
	Style:           0.0,
	UseSpeakerBoost: true,
	Speed:           1.0,
}

// ElevenLabs synthesizes speech with the ElevenLabs REST API.
type ElevenLabs struct {
	baseURL      string
	apiKey       string
	voiceID      string
	modelID      string
	outputFormat string
	settings     VoiceSettings
	client       *http.Client
}

// NewElevenLabs creates a synthesizer from the tts config section.
func NewElevenLabs(cfg config.TTSConfig) *ElevenLabs {
	return &ElevenLabs{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		settings:     DefaultVoiceSettings,
		client:       &http.Client{Timeout: cfg.Timeout()},
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize returns the complete encoded audio for text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	if e.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	voiceID := voice.VoiceID
	if voiceID == "" {
		voiceID = e.voiceID
	}
	modelID := voice.ModelID
	if modelID == "" {
		modelID = e.modelID
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voiceID), url.QueryEscape(e.outputFormat))

	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: modelID, VoiceSettings: e.settings})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
		} `json:"detail"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
	}
	return &APIError{Provider: providerElevenLabs, StatusCode: resp.StatusCode, Message: message}
}
