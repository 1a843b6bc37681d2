package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Session config keys as sent by the client.
const (
	KeySampleRate = "sample_rate"
	KeyLLMModel   = "llm_model"
	KeyTTSVoice   = "tts_voice"
	KeyTTSModel   = "tts_model"
	KeyEncoding   = "encoding"

	// KeyVoiceID is the older name for KeyTTSVoice, still accepted on input.
	KeyVoiceID = "elevenlabs_voice_id"
)

// MaxSampleRate bounds the sample_rate a client may request.
const MaxSampleRate = 192000

// SessionConfig is the per-session configuration. Keys the server does not
// interpret are kept in Extra and echoed back.
type SessionConfig struct {
	SampleRate int
	LLMModel   string
	TTSVoice   string
	TTSModel   string
	Encoding   string
	Extra      map[string]any
}

// Clone returns a copy that shares nothing with c.
func (c SessionConfig) Clone() SessionConfig {
	c.Extra = maps.Clone(c.Extra)
	return c
}

// MarshalJSON renders the config as one flat object.
func (c SessionConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+5)
	maps.Copy(out, c.Extra)
	out[KeySampleRate] = c.SampleRate
	out[KeyLLMModel] = c.LLMModel
	out[KeyTTSVoice] = c.TTSVoice
	out[KeyEncoding] = c.Encoding
	if c.TTSModel != "" {
		out[KeyTTSModel] = c.TTSModel
	}
	return json.Marshal(out)
}

// Merge applies a shallow update: only keys present in update change.
// Valid keys are applied even when others are rejected; the returned error
// names every rejected key. The encoding is fixed and cannot be changed.
func (c *SessionConfig) Merge(update map[string]any) error {
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		v := update[k]
		switch k {
		case KeySampleRate:
			n, err := toInt(v)
			if err != nil || n <= 0 || n > MaxSampleRate {
				errs = append(errs, fmt.Errorf("%s: must be an integer in 1..%d", k, MaxSampleRate))
				continue
			}
			c.SampleRate = n
		case KeyLLMModel:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Errorf("%s: must be a non-empty string", k))
				continue
			}
			c.LLMModel = s
		case KeyTTSVoice, KeyVoiceID:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Errorf("%s: must be a non-empty string", k))
				continue
			}
			c.TTSVoice = s
		case KeyTTSModel:
			s, ok := v.(string)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: must be a string", k))
				continue
			}
			c.TTSModel = s
		case KeyEncoding:
			if s, ok := v.(string); !ok || s != c.Encoding {
				errs = append(errs, fmt.Errorf("%s: fixed at %q", k, c.Encoding))
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[k] = v
		}
	}
	return errors.Join(errs...)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		if math.Abs(n) > math.MaxInt32 {
			return 0, fmt.Errorf("out of range: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err == nil && (i > math.MaxInt32 || i < math.MinInt32) {
			return 0, fmt.Errorf("out of range: %v", n)
		}
		return int(i), err
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
