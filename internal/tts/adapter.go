package tts

import (
	"context"
	"time"

	"github.com/soyeahso/foodvoice/internal/logging"
)

// Adapter runs synthesis off the caller's goroutine with a deadline and
// folds every failure into a nil result. Callers treat nil as a text-only
// reply.
type Adapter struct {
	synth   Synthesizer
	timeout time.Duration
	log     *logging.Logger
}

// NewAdapter wraps a synthesizer. A zero timeout means 30s.
func NewAdapter(synth Synthesizer, timeout time.Duration, log *logging.Logger) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{synth: synth, timeout: timeout, log: log.Sub("tts")}
}

type synthResult struct {
	audio []byte
	err   error
}

// Synthesize returns audio for text, or nil when synthesis fails, times out
// or produces nothing.
func (a *Adapter) Synthesize(ctx context.Context, text string, voice VoiceConfig) []byte {
	if a == nil || a.synth == nil || text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan synthResult, 1)
	go func() {
		audio, err := a.synth.Synthesize(ctx, text, voice)
		done <- synthResult{audio: audio, err: err}
	}()

	select {
	case <-ctx.Done():
		a.log.Warn().Err(ctx.Err()).Dur("timeout", a.timeout).Msg("speech synthesis timed out")
		return nil
	case res := <-done:
		if res.err != nil {
			a.log.Warn().Err(res.err).Msg("speech synthesis failed")
			return nil
		}
		if len(res.audio) == 0 {
			a.log.Warn().Msg("speech synthesis returned no audio")
			return nil
		}
		a.log.Debug().
			Int("chars", len(text)).
			Int("bytes", len(res.audio)).
			Dur("latency", time.Since(start)).
			Msg("synthesized reply")
		return res.audio
	}
}
