// Package voice runs real-time voice sessions: per-connection state, the
// audio buffer feeding transcription and the turn controller that drives
// the conversation engine and speech synthesis.
package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/llm"
)

// Session is the state of one connected client. All methods are safe for
// concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	buffer AudioBuffer

	mu             sync.Mutex
	state          State
	messages       []llm.Message
	cfg            SessionConfig
	active         bool
	generation     uint64
	conversationID string
	bridge         Bridge

	prefs   domain.Preferences
	results []domain.Restaurant
	pending *domain.OrderConfirmation
}

// NewSession creates an idle session seeded with the server defaults.
func NewSession(voice config.VoiceConfig, tts config.TTSConfig, llmCfg config.LLMConfig) *Session {
	encoding := voice.Encoding
	if encoding == "" {
		encoding = config.DefaultEncoding
	}
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		state:     StateIdle,
		messages:  []llm.Message{},
		cfg: SessionConfig{
			SampleRate: voice.SampleRate,
			LLMModel:   llmCfg.Model,
			TTSVoice:   tts.VoiceID,
			TTSModel:   tts.ModelID,
			Encoding:   encoding,
		},
	}
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves to state to, or returns ErrInvalidTransition.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == to {
		return nil
	}
	if !CanTransition(s.state, to) {
		return transitionError(s.state, to)
	}
	s.state = to
	return nil
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AppendMessages adds the messages of a completed turn.
func (s *Session) AppendMessages(msgs ...llm.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()
}

// Config returns a copy of the session config.
func (s *Session) Config() SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// UpdateConfig merges update into the config and returns the result.
func (s *Session) UpdateConfig(update map[string]any) (SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.cfg.Merge(update)
	return s.cfg.Clone(), err
}

// Active reports whether a conversation is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Buffer returns the session's audio buffer.
func (s *Session) Buffer() *AudioBuffer {
	return &s.buffer
}

// PushAudio buffers a client audio chunk. Chunks are dropped while no
// conversation is active.
func (s *Session) PushAudio(chunk []byte) bool {
	if !s.Active() {
		return false
	}
	s.buffer.Push(chunk)
	return true
}

// begin starts a new conversation: history and buffered audio are reset,
// the conversation becomes active and its generation is returned.
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.messages = []llm.Message{}
	s.active = true
	s.buffer.Clear()
	s.bridge = nil
	s.conversationID = ""
	return s.generation
}

// stop deactivates the conversation and returns its bridge and transcript id.
func (s *Session) stop() (Bridge, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	b := s.bridge
	s.bridge = nil
	id := s.conversationID
	s.conversationID = ""
	return b, id
}

// Generation identifies the latest conversation. It changes on every
// start_conversation and stays the same after a stop.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// current reports whether gen is the running conversation.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.generation == gen
}

// attach records the bridge for gen. It reports false when the
// conversation has moved on, in which case the caller owns the bridge.
func (s *Session) attach(gen uint64, b Bridge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.generation != gen {
		return false
	}
	s.bridge = b
	return true
}

func (s *Session) detach(gen uint64, b Bridge) {
	s.mu.Lock()
	if s.generation == gen && s.bridge == b {
		s.bridge = nil
	}
	s.mu.Unlock()
}

func (s *Session) setConversationID(gen uint64, id string) {
	s.mu.Lock()
	if s.generation == gen {
		s.conversationID = id
	}
	s.mu.Unlock()
}

// ConversationID returns the transcript id of the running conversation.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Preferences returns what the user has told the assistant so far.
func (s *Session) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *Session) SetDietary(p string) {
	s.mu.Lock()
	s.prefs.Dietary = p
	s.mu.Unlock()
}

func (s *Session) SetBudget(b string) {
	s.mu.Lock()
	s.prefs.Budget = b
	s.mu.Unlock()
}

func (s *Session) SetSearchResults(r []domain.Restaurant) {
	s.mu.Lock()
	s.results = r
	s.mu.Unlock()
}

// SearchResults returns the last restaurants found.
func (s *Session) SearchResults() []domain.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *Session) SetPendingOrder(c *domain.OrderConfirmation) {
	s.mu.Lock()
	s.pending = c
	s.mu.Unlock()
}

// PendingOrder returns the order awaiting confirmation, if any.
func (s *Session) PendingOrder() *domain.OrderConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TakePendingOrder returns the pending order and clears it.
func (s *Session) TakePendingOrder() *domain.OrderConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}
