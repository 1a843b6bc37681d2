package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
)

const analysis = `Budget: Under $60
Dietary Restrictions: None
Order Type: mixed
Special Requirements: None
Number of People: 2`

const selection = `Platforms:
- Uber Eats: tacos for lunch
- Instacart: butter chicken ingredients`

const draftJSON = "```json\n" + `{
  "budget": "Under $60",
  "dietary_restrictions": [],
  "orders": [
    {"platform": "Uber Eats", "items": [{"name": "Carne Asada Tacos", "quantity": "2", "details": ""}]},
    {"platform": "Instacart", "items": [{"name": "Chicken breast", "quantity": "2 lbs", "details": ""}]}
  ]
}` + "\n```"

func newPipeline(client llm.Client) *Pipeline {
	return New(client, "planner-model", 0, logging.New(nil, "silent"))
}

func TestPlanRunsStagesInOrder(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: llm.Scripted(
		&llm.CompletionResponse{Content: analysis},
		&llm.CompletionResponse{Content: selection},
		&llm.CompletionResponse{Content: draftJSON},
	)}

	res, err := newPipeline(client).Run(context.Background(), "tacos for lunch and butter chicken for dinner, under $60")
	require.NoError(t, err)
	assert.Equal(t, analysis, res.PreferencesAnalysis)
	assert.Equal(t, selection, res.PlatformSelection)
	require.Len(t, res.Draft.Orders, 2)
	assert.Equal(t, "Uber Eats", res.Draft.Orders[0].Platform)
	assert.Equal(t, "Under $60", res.Draft.BudgetString())

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "planner-model", reqs[0].Model)
	assert.Equal(t, 2048, reqs[0].MaxTokens)
	assert.Contains(t, reqs[0].System, "Order Type")
	assert.False(t, reqs[0].JSONOutput)

	assert.Contains(t, reqs[1].System, analysis)
	assert.NotContains(t, reqs[1].System, "{preferences_analysis}")

	assert.Contains(t, reqs[2].System, selection)
	assert.Contains(t, reqs[2].System, analysis)
	assert.True(t, reqs[2].JSONOutput)
	for _, r := range reqs {
		require.Len(t, r.Messages, 1)
		assert.Contains(t, r.Messages[0].Content, "butter chicken")
	}
}

func TestPlanReturnsDraft(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: llm.Scripted(
		&llm.CompletionResponse{Content: analysis},
		&llm.CompletionResponse{Content: selection},
		&llm.CompletionResponse{Content: draftJSON},
	)}

	d, err := newPipeline(client).Plan(context.Background(), "lunch")
	require.NoError(t, err)
	assert.Equal(t, "Chicken breast", d.Orders[1].Items[0].Name)
}

func TestPlanEmptyRequest(t *testing.T) {
	client := &llm.MockClient{}
	_, err := newPipeline(client).Plan(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyRequest)
	assert.Empty(t, client.Requests())
}

func TestPlanStageError(t *testing.T) {
	calls := 0
	client := &llm.MockClient{CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("rate limited")
		}
		return &llm.CompletionResponse{Content: analysis}, nil
	}}

	_, err := newPipeline(client).Plan(context.Background(), "smoothie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform stage")
	assert.Equal(t, 2, calls)
}

func TestPlanEmptyStageOutput(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: llm.Scripted(&llm.CompletionResponse{Content: "  "})}
	_, err := newPipeline(client).Plan(context.Background(), "smoothie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preferences stage: empty response")
}

func TestPlanInvalidDraft(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: llm.Scripted(
		&llm.CompletionResponse{Content: analysis},
		&llm.CompletionResponse{Content: selection},
		&llm.CompletionResponse{Content: `{"budget": null, "dietary_restrictions": [], "orders": []}`},
	)}

	_, err := newPipeline(client).Plan(context.Background(), "nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order stage")
}
