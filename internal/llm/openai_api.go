package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL is the OpenAI REST endpoint root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAPIClient is a direct HTTP client for OpenAI-compatible chat completions.
type OpenAIAPIClient struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIAPIClient creates a new OpenAI-compatible client.
// baseURL defaults to the OpenAI API.
func NewOpenAIAPIClient(apiKey, model, baseURL string) *OpenAIAPIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIAPIClient{
		name:    "openai",
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// WithName overrides the provider name reported by Name.
func (c *OpenAIAPIClient) WithName(name string) *OpenAIAPIClient {
	c.name = name
	return c
}

// Name returns the provider name.
func (c *OpenAIAPIClient) Name() string {
	return c.name
}

// Complete sends a chat completion request.
func (c *OpenAIAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var result openAIResponse
	if err := postJSON(ctx, c.client, c.name, c.baseURL+"/chat/completions", headers, c.buildRequestBody(req), &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, &ProviderError{Provider: c.name, Message: "response contained no choices"}
	}

	choice := result.Choices[0]
	out := &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (c *OpenAIAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openAIMessage{Role: RoleSystem, Content: req.System})
	}
	msgs = append(msgs, messagesToOpenAI(req.Messages)...)

	body := map[string]any{
		"model":    model,
		"messages": msgs,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.JSONOutput {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  parseJSONSchema(t.InputSchema),
				},
			}
		}
		body["tools"] = tools
		choice := req.ToolChoice
		if choice == "" {
			choice = ToolChoiceAuto
		}
		body["tool_choice"] = choice
	}

	return body
}

func messagesToOpenAI(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openAIMessage{Role: m.Role, Content: m.Content}
		switch {
		case m.Role == RoleTool:
			om.ToolCallID = m.ToolCallID
		case len(m.ToolCalls) > 0:
			if m.Content == "" {
				om.Content = nil
			}
			for _, tc := range m.ToolCalls {
				args := tc.Input
				if args == "" {
					args = "{}"
				}
				om.ToolCalls = append(om.ToolCalls, openAIToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: openAIFunction{Name: tc.Name, Arguments: args},
				})
			}
		}
		out = append(out, om)
	}
	return out
}

// API request/response structures

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int                   `json:"index"`
	Message      openAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type openAIResponseMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
