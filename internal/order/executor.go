package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/soyeahso/foodvoice/internal/config"
)

// ErrNoExecutor is returned when no executor endpoint is configured.
var ErrNoExecutor = errors.New("order: executor not configured")

// CartItem is an item the executor put in a cart.
type CartItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Brand string  `json:"brand,omitempty"`
	Size  string  `json:"size,omitempty"`
	URL   string  `json:"url"`
}

// PlatformResult is the outcome of one group.
type PlatformResult struct {
	Platform   string     `json:"platform"`
	Success    bool       `json:"success"`
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
	Error      string     `json:"error,omitempty"`
}

// Executor fills a cart on a delivery site.
type Executor interface {
	Execute(ctx context.Context, task Task) (*PlatformResult, error)
}

// ExecutorError is a non-success HTTP response from the executor service.
type ExecutorError struct {
	StatusCode int
	Message    string
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor error %d: %s", e.StatusCode, e.Message)
}

// HTTPExecutor posts tasks to a browser-automation service.
type HTTPExecutor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPExecutor creates an executor client from the executor config section.
func NewHTTPExecutor(cfg config.ExecutorConfig) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// Execute sends one task and waits for the cart result.
func (e *HTTPExecutor) Execute(ctx context.Context, task Task) (*PlatformResult, error) {
	if e.baseURL == "" {
		return nil, ErrNoExecutor
	}
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encoding task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading executor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExecutorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var res PlatformResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding executor response: %w", err)
	}
	return &res, nil
}
