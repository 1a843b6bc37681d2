package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// FailoverClient wraps an LLM registry to try fallback providers on failure.
type FailoverClient struct {
	registry  *llm.Registry
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary model first,
// then falls back through the list on retryable errors (401, 429, 5xx).
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the primary model reference.
func (f *FailoverClient) Name() string {
	return "failover:" + f.primary
}

// Complete tries the requested (or primary) model, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	first := f.primary
	if req.Model != "" {
		first = req.Model
	}
	models := append([]string{first}, f.fallbacks...)

	var lastErr error
	for _, model := range models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		// A provider name selects that provider's configured model.
		req.Model = model
		if f.registry.IsProvider(model) {
			req.Model = ""
		}
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if isRetryable(err) {
			f.log.Warn().
				Str("model", model).
				Str("provider", client.Name()).
				Err(err).
				Msg("retryable error, trying next provider")
			continue
		}

		// Non-retryable: stop here
		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
