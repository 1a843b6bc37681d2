package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// MaxToolRounds bounds how many tool-calling rounds a single turn may use.
const MaxToolRounds = 10

// FallbackReply is returned when a turn exhausts MaxToolRounds.
const FallbackReply = "Sorry, I got stuck working on that. Could you say it another way?"

// ErrorReply is spoken when the language model cannot be reached.
const ErrorReply = "Sorry, I'm having trouble right now. Please try again in a moment."

// EngineConfig configures the conversation engine.
type EngineConfig struct {
	MaxTokens   int
	Temperature *float64
	MaxRounds   int
	Prompt      PromptConfig
}

// ReplyOptions carries per-session overrides.
type ReplyOptions struct {
	Model string
}

// Reply is the outcome of one user utterance.
type Reply struct {
	Text     string
	UIUpdate any
	// Messages are the messages this turn added, starting with the user
	// utterance. Append them to the session history as-is.
	Messages []llm.Message
	Rounds   int
	Fallback bool
	Usage    llm.Usage
	Duration time.Duration
}

// Engine runs the tool-calling loop for one turn at a time. It is stateless
// between calls; history lives with the caller.
type Engine struct {
	client llm.Client
	tools  *ToolRegistry
	cfg    EngineConfig
	log    *logging.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(client llm.Client, tools *ToolRegistry, cfg EngineConfig, log *logging.Logger) *Engine {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = MaxToolRounds
	}
	return &Engine{
		client: client,
		tools:  tools,
		cfg:    cfg,
		log:    log.Sub("agent"),
	}
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

// GenerateReply answers utterance given the prior history, dispatching tool
// calls until the model produces plain text or the round limit is reached.
func (e *Engine) GenerateReply(ctx context.Context, history []llm.Message, utterance string, opts ReplyOptions, tc *ToolContext) (*Reply, error) {
	start := time.Now()
	log := e.log
	if tc != nil {
		log = log.With("sessionId", tc.SessionID)
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: utterance})
	added := len(history)

	system := BuildSystemPrompt(e.cfg.Prompt)
	reply := &Reply{}

	for round := 1; round <= e.cfg.MaxRounds; round++ {
		reply.Rounds = round

		resp, err := e.client.Complete(ctx, llm.CompletionRequest{
			Model:       opts.Model,
			System:      system,
			Messages:    msgs,
			Tools:       e.tools.Definitions(),
			ToolChoice:  llm.ToolChoiceAuto,
			MaxTokens:   e.cfg.MaxTokens,
			Temperature: e.cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}
		reply.Usage.InputTokens += resp.Usage.InputTokens
		reply.Usage.OutputTokens += resp.Usage.OutputTokens

		if len(resp.ToolCalls) == 0 {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			reply.Text = resp.Content
			reply.Messages = msgs[added:]
			reply.Duration = time.Since(start)
			log.Info().
				Int("rounds", round).
				Int("inputTokens", reply.Usage.InputTokens).
				Int("outputTokens", reply.Usage.OutputTokens).
				Dur("duration", reply.Duration).
				Msg("reply generated")
			return reply, nil
		}

		log.Info().Int("round", round).Int("toolCalls", len(resp.ToolCalls)).Msg("executing tool calls")

		calls := make([]llm.ToolCall, len(resp.ToolCalls))
		copy(calls, resp.ToolCalls)
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})

		for _, call := range calls {
			output, ui := e.tools.Dispatch(ctx, tc, call)
			if ui != nil {
				reply.UIUpdate = ui
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: output})
		}
	}

	log.Warn().Int("rounds", e.cfg.MaxRounds).Msg("tool round limit reached, returning fallback")
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: FallbackReply})
	return &Reply{
		Text:     FallbackReply,
		Messages: msgs[added:],
		Rounds:   e.cfg.MaxRounds,
		Fallback: true,
		Usage:    reply.Usage,
		Duration: time.Since(start),
	}, nil
}
