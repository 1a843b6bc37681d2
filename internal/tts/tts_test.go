package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/logging"
)

func testConfig(baseURL string) config.TTSConfig {
	cfg := config.Defaults().TTS
	cfg.BaseURL = baseURL
	cfg.APIKey = "xi-test"
	return cfg
}

func TestElevenLabs_Synthesize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text-to-speech/"+config.DefaultVoiceID, r.URL.Path)
		assert.Equal(t, "mp3_22050_32", r.URL.Query().Get("output_format"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xFF, 0xFB, 0x90})
	}))
	defer srv.Close()

	audio, err := NewElevenLabs(testConfig(srv.URL)).Synthesize(context.Background(), "Hello there", VoiceConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90}, audio)

	assert.Equal(t, "Hello there", got["text"])
	assert.Equal(t, "eleven_multilingual_v2", got["model_id"])
	assert.Equal(t, map[string]any{
		"stability":         0.0,
		"similarity_boost":  1.0,
		"style":             0.0,
		"use_speaker_boost": true,
		"speed":             1.0,
	}, got["voice_settings"])
}

func TestElevenLabs_VoiceOverride(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte{1})
	}))
	defer srv.Close()

	_, err := NewElevenLabs(testConfig(srv.URL)).Synthesize(context.Background(), "hi", VoiceConfig{VoiceID: "custom-voice"})
	require.NoError(t, err)
	assert.Equal(t, "/text-to-speech/custom-voice", path)
}

func TestElevenLabs_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":{"status":"too_many","message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewElevenLabs(testConfig(srv.URL)).Synthesize(context.Background(), "hi", VoiceConfig{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Message)
	assert.True(t, apiErr.IsRetryable())
}

func TestElevenLabs_NoAPIKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	_, err := NewElevenLabs(cfg).Synthesize(context.Background(), "hi", VoiceConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAPIError_IsRetryable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 503}).IsRetryable())
	assert.False(t, (&APIError{StatusCode: 401}).IsRetryable())
}

type synthFunc func(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)

func (f synthFunc) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	return f(ctx, text, voice)
}

func TestAdapter(t *testing.T) {
	log := logging.New(nil, "silent")

	tests := []struct {
		name  string
		synth Synthesizer
		text  string
		want  []byte
	}{
		{"success", synthFunc(func(context.Context, string, VoiceConfig) ([]byte, error) { return []byte("mp3"), nil }), "hi", []byte("mp3")},
		{"error", synthFunc(func(context.Context, string, VoiceConfig) ([]byte, error) { return nil, errors.New("boom") }), "hi", nil},
		{"empty audio", synthFunc(func(context.Context, string, VoiceConfig) ([]byte, error) { return []byte{}, nil }), "hi", nil},
		{"empty text", synthFunc(func(context.Context, string, VoiceConfig) ([]byte, error) { return []byte("x"), nil }), "", nil},
		{"nil synthesizer", nil, "hi", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.synth, time.Second, log)
			assert.Equal(t, tt.want, a.Synthesize(context.Background(), tt.text, VoiceConfig{}))
		})
	}
}

func TestAdapter_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := synthFunc(func(ctx context.Context, _ string, _ VoiceConfig) ([]byte, error) {
		<-block
		return []byte("late"), nil
	})

	a := NewAdapter(slow, 20*time.Millisecond, logging.New(nil, "silent"))
	start := time.Now()
	assert.Nil(t, a.Synthesize(context.Background(), "hi", VoiceConfig{}))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAdapter_NilReceiver(t *testing.T) {
	var a *Adapter
	assert.Nil(t, a.Synthesize(context.Background(), "hi", VoiceConfig{}))
}
