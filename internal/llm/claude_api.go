package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// DefaultAnthropicBaseURL is the Anthropic REST endpoint root.
const DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// ClaudeAPIClient is a direct HTTP client for Claude API.
type ClaudeAPIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClaudeAPIClient creates a new Claude API client.
func NewClaudeAPIClient(apiKey, model, baseURL string) *ClaudeAPIClient {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	return &ClaudeAPIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string {
	return "anthropic"
}

// Complete sends a non-streaming completion request to Claude API.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var result claudeAPIResponse
	if err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/messages", headers, c.buildRequestBody(req), &result); err != nil {
		return nil, err
	}

	return c.responseToCompletion(&result, time.Since(start)), nil
}

func (c *ClaudeAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := map[string]any{
		"model":      model,
		"messages":   messagesToClaude(req.Messages),
		"max_tokens": maxTokens,
	}

	system := req.System
	if req.JSONOutput {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON document and nothing else.")
	}
	if system != "" {
		body["system"] = system
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": parseJSONSchema(t.InputSchema),
			}
		}
		body["tools"] = tools
		if req.ToolChoice == ToolChoiceNone {
			body["tool_choice"] = map[string]string{"type": "none"}
		} else {
			body["tool_choice"] = map[string]string{"type": "auto"}
		}
	}

	return body
}

// messagesToClaude maps the conversation onto content blocks. Consecutive
// tool results are folded into a single user message, as the API requires.
func messagesToClaude(msgs []Message) []claudeMessage {
	var out []claudeMessage
	for _, m := range msgs {
		switch {
		case m.Role == RoleTool:
			block := claudeContentBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}
			if n := len(out); n > 0 && out[n-1].Role == RoleUser && out[n-1].toolResults {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, claudeMessage{Role: RoleUser, Content: []claudeContentBlock{block}, toolResults: true})

		case m.Role == RoleAssistant && len(m.ToolCalls) > 0:
			var blocks []claudeContentBlock
			if m.Content != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Input)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, claudeContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			out = append(out, claudeMessage{Role: RoleAssistant, Content: blocks})

		default:
			out = append(out, claudeMessage{
				Role:    m.Role,
				Content: []claudeContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}
	return out
}

func (c *ClaudeAPIClient) responseToCompletion(resp *claudeAPIResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			input := string(block.Input)
			if input == "" {
				input = "{}"
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: resp.StopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Model:    resp.Model,
		Duration: duration,
	}
}

// API Response structures

type claudeMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`

	toolResults bool
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Usage      claudeUsage          `json:"usage"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
