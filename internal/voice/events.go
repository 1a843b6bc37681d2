package voice

import (
	"strconv"
	"time"
)

// Outbound event types.
const (
	EventConnected           = "connected"
	EventConversationStarted = "conversation_started"
	EventConversationStopped = "conversation_stopped"
	EventConfigUpdated       = "config_updated"
	EventSpeechStarted       = "speech_started"
	EventInterimTranscript   = "interim_transcript"
	EventUserSpeech          = "user_speech"
	EventAgentProcessing     = "agent_processing"
	EventFunctionCall        = "function_call"
	EventUIUpdate            = "ui_update"
	EventAgentResponse       = "agent_response"
	EventAgentSpeaking       = "agent_speaking"
	EventOrderUpdate         = "order_update"
	EventError               = "error"
)

// Inbound message types.
const (
	MsgStartConversation = "start_conversation"
	MsgStopConversation  = "stop_conversation"
	MsgUpdateConfig      = "update_config"
	MsgConfirmedOrder    = "confirmed_order"
)

// Event is one JSON message sent to the client. Only the fields relevant to
// Type are set.
type Event struct {
	Type       string         `json:"type"`
	Timestamp  string         `json:"timestamp"`
	SessionID  string         `json:"session_id,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	IsFinal    *bool          `json:"is_final,omitempty"`
	Function   string         `json:"function,omitempty"`
	Status     string         `json:"status,omitempty"`
	Data       any            `json:"data,omitempty"`
	Result     any            `json:"result,omitempty"`
	Response   any            `json:"response,omitempty"`
	Audio      AudioBytes     `json:"audio,omitempty"`
	Config     *SessionConfig `json:"config,omitempty"`
	OrderID    string         `json:"order_id,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(typ string) Event {
	return Event{Type: typ, Timestamp: time.Now().Format(time.RFC3339Nano)}
}

// ErrorEvent creates an error event.
func ErrorEvent(msg string) Event {
	ev := NewEvent(EventError)
	ev.Error = msg
	return ev
}

// InboundMessage is a control message from the client.
type InboundMessage struct {
	Type    string         `json:"type"`
	Config  map[string]any `json:"config,omitempty"`
	Message string         `json:"message,omitempty"`
}

// AudioBytes encodes as a JSON array of byte values rather than base64.
type AudioBytes []byte

func (a AudioBytes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, len(a)*4+2)
	buf = append(buf, '[')
	for i, b := range a {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(b), 10)
	}
	buf = append(buf, ']')
	return buf, nil
}
