package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/astrosearch/api/internal/model"
)

// PaperProvider is the contract shared by literature sources.
type PaperProvider interface {
	Name() string
	IsConfigured() bool
	Search(ctx context.Context, query string) (model.ProviderOutcome, error)
}

// ArxivClient searches the arXiv export API, which answers with an Atom feed.
type ArxivClient struct {
	httpClient *http.Client
	baseURL    string
	maxResults int
}

func NewArxivClient(baseURL string, maxResults int) *ArxivClient {
	return &ArxivClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		maxResults: maxResults,
	}
}

func (c *ArxivClient) Name() string { return "arxiv" }

// IsConfigured is always true: the arXiv export API needs no credentials.
func (c *ArxivClient) IsConfigured() bool { return true }

func (c *ArxivClient) Search(ctx context.Context, query string) (model.ProviderOutcome, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ProviderOutcome{}, fmt.Errorf("arxiv error (status %d)", resp.StatusCode)
	}

	papers, err := parseArxivFeed(body)
	if err != nil {
		return model.ProviderOutcome{}, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	return model.ProviderOutcome{Status: model.OutcomeSuccess, Papers: papers}, nil
}

type arxivFeed struct {
	Entries []struct {
		ID        string `xml:"id"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

func parseArxivFeed(body []byte) ([]model.Paper, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	papers := make([]model.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		var authors []string
		for _, a := range entry.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		papers = append(papers, model.Paper{
			Title:     strings.TrimSpace(entry.Title),
			Summary:   strings.TrimSpace(entry.Summary),
			Published: entry.Published,
			URL:       entry.ID,
			Authors:   authors,
		})
	}
	return papers, nil
}
