package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Alias("gpt-4o-mini", "openai")

	client, err := reg.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("default-llm", &MockClient{ProviderName: "default-llm"})
	reg.SetFallback("default-llm")

	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})

	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
		Providers: map[string]config.ProviderConfig{
			"claude": {API: "anthropic-messages", Model: "claude-sonnet-4-5", APIKey: "ak", Aliases: []string{"sonnet"}},
			"nokey":  {API: "anthropic-messages", Model: "x"},
			"local":  {API: "openai-completions", Model: "llama3", BaseURL: "http://localhost:11434/v1"},
		},
	}
	reg := NewRegistryFromConfig(cfg, silentLog())
	assert.Equal(t, []string{"claude", "local", "openai"}, reg.List())

	c, err := reg.Resolve("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = reg.Resolve("llama3")
	require.NoError(t, err)
	assert.Equal(t, "local", c.Name())

	c, err = reg.Resolve("whatever")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
}

func TestNewRegistryFromConfigWithoutKey(t *testing.T) {
	reg := NewRegistryFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, silentLog())
	assert.Empty(t, reg.List())
}

// --- MockClient tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: "The answer is 42", Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is the answer?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	require.Len(t, mock.Requests(), 1)
	assert.Equal(t, "What is the answer?", mock.Requests()[0].Messages[0].Content)
}

func TestMockClientDefaultComplete(t *testing.T) {
	mock := &MockClient{ProviderName: "default"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
}

func TestScripted(t *testing.T) {
	mock := &MockClient{CompleteFunc: Scripted(
		&CompletionResponse{Content: "one"},
		&CompletionResponse{Content: "two"},
	)}
	ctx := context.Background()
	var got []string
	for range 3 {
		r, err := mock.Complete(ctx, CompletionRequest{})
		require.NoError(t, err)
		got = append(got, r.Content)
	}
	assert.Equal(t, []string{"one", "two", "two"}, got)
}

// --- Error tests ---

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		err       ProviderError
		want      string
		retryable bool
	}{
		{ProviderError{Provider: "a", Message: "fail", Code: 500}, "a: 500 fail", true},
		{ProviderError{Provider: "b", Message: "oops"}, "b: oops", false},
		{ProviderError{Provider: "c", Message: "bad request", Code: 400}, "c: 400 bad request", false},
		{ProviderError{Provider: "d", Message: "slow down", Code: 429}, "d: 429 slow down", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}

// --- OpenAI wire format ---

func TestOpenAIAPIClientToolRoundTrip(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "store_budget_info", "arguments": "{\"budget\":\"$20\"}"}}]
				}
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIAPIClient("sk-test", "gpt-4o-mini", srv.URL)
	resp, err := client.Complete(context.Background(), CompletionRequest{
		System: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "store_dietary_preferences", Input: `{"preferences":"vegan"}`}}},
			{Role: RoleTool, ToolCallID: "call_0", Content: `{"success":true}`},
		},
		Tools: []ToolDefinition{{Name: "store_budget_info", Description: "d", InputSchema: `{"type":"object"}`}},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "store_budget_info", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"budget":"$20"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, 12, resp.Usage.InputTokens)

	assert.Equal(t, "auto", captured["tool_choice"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assistant := msgs[2].(map[string]any)
	assert.Nil(t, assistant["content"])
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, "call_0", calls[0].(map[string]any)["id"])
	tool := msgs[3].(map[string]any)
	assert.Equal(t, "call_0", tool["tool_call_id"])
}

func TestOpenAIAPIClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAIAPIClient("k", "m", srv.URL).Complete(context.Background(), CompletionRequest{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
	assert.True(t, provErr.IsRetryable())
}

func TestOpenAIAPIClientJSONOutput(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIAPIClient("k", "m", srv.URL).Complete(context.Background(), CompletionRequest{JSONOutput: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
	assert.NotContains(t, captured, "tools")
}

func TestOpenAIAPIClientRequestModel(t *testing.T) {
	var models []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		models = append(models, body["model"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIAPIClient("k", "gpt-4o-mini", srv.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	assert.Equal(t, []any{"gpt-4o", "gpt-4o-mini"}, models)
}

func TestClaudeAPIClientRequestModel(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeAPIClient("ak", "claude-haiku", srv.URL).Complete(context.Background(), CompletionRequest{Model: "claude-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", captured["model"])
}

// --- Anthropic wire format ---

func TestClaudeAPIClientToolUse(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{
			"model": "claude",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Let me look."},
				{"type": "tool_use", "id": "tu_1", "name": "search_restaurants", "input": {"budget": "$30"}}
			],
			"usage": {"input_tokens": 7, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client := NewClaudeAPIClient("ak", "claude", srv.URL)
	resp, err := client.Complete(context.Background(), CompletionRequest{
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "find food"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "a", Name: "store_dietary_preferences", Input: `{"preferences":"none"}`},
				{ID: "b", Name: "store_budget_info", Input: `{"budget":"$30"}`},
			}},
			{Role: RoleTool, ToolCallID: "a", Content: `{"success":true}`},
			{Role: RoleTool, ToolCallID: "b", Content: `{"success":true}`},
		},
		Tools: []ToolDefinition{{Name: "search_restaurants", InputSchema: `{"type":"object"}`}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Let me look.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.JSONEq(t, `{"budget":"$30"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, "tool_use", resp.StopReason)

	assert.Equal(t, "sys", captured["system"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 3, "tool results fold into one user message")
	results := msgs[2].(map[string]any)["content"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].(map[string]any)["tool_use_id"])
	assert.Equal(t, "b", results[1].(map[string]any)["tool_use_id"])
}

// --- helpers ---

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose", "Here you go: {\"a\":{\"b\":2}} hope that helps", `{"a":{"b":2}}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseJSONSchema(t *testing.T) {
	assert.Equal(t, "object", parseJSONSchema("")["type"])
	assert.Nil(t, parseJSONSchema("{not json"))
	assert.Equal(t, "object", parseJSONSchema(`{"type":"object"}`)["type"])
}
