// Package stt bridges client audio to a streaming transcription service
// (Deepgram Flux) and turns its turn events into normalized signals.
package stt

import (
	"errors"
	"time"
)

// ErrBridgeClosed is returned by Send after Close.
var ErrBridgeClosed = errors.New("stt: bridge closed")

// SignalKind identifies a normalized transcription signal.
type SignalKind int

const (
	// TurnStarted means the user began speaking.
	TurnStarted SignalKind = iota + 1
	// InterimTranscript carries a partial transcript of the current turn.
	InterimTranscript
	// FinalTranscript carries the full transcript of a finished turn.
	FinalTranscript
	// ConnectionError means the upstream connection failed.
	ConnectionError
)

func (k SignalKind) String() string {
	switch k {
	case TurnStarted:
		return "turn_started"
	case InterimTranscript:
		return "interim_transcript"
	case FinalTranscript:
		return "final_transcript"
	case ConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// Signal is one event from the transcription service.
type Signal struct {
	Kind   SignalKind
	Text   string // transcript, for interim and final signals
	Reason string // for ConnectionError
}

// Options configures one upstream stream.
type Options struct {
	SampleRate   int
	Encoding     string
	Model        string
	PollInterval time.Duration
}

// Source yields buffered audio chunks. Drain removes and returns everything
// currently queued, oldest first.
type Source interface {
	Drain() [][]byte
}
