package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astrosearch/api/internal/model"
)

// TavilyClient searches the Tavily web search API. An unconfigured client
// reports a skipped outcome instead of failing the job.
type TavilyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxResults int
}

func NewTavilyClient(baseURL, apiKey string, maxResults int) *TavilyClient {
	return &TavilyClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

func (c *TavilyClient) Name() string { return "tavily" }

func (c *TavilyClient) IsConfigured() bool { return c.apiKey != "" }

func (c *TavilyClient) Search(ctx context.Context, query string) (model.ProviderOutcome, error) {
	if !c.IsConfigured() {
		return model.ProviderOutcome{
			Status: model.OutcomeSkipped,
			Error:  "tavily api key is not configured",
		}, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
	})
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ProviderOutcome{}, fmt.Errorf("tavily error (status %d)", resp.StatusCode)
	}
	if !json.Valid(body) {
		return model.ProviderOutcome{}, fmt.Errorf("tavily returned invalid JSON")
	}

	return model.ProviderOutcome{Status: model.OutcomeSuccess, Data: json.RawMessage(body)}, nil
}
