package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrosearch/api/internal/model"
)

const arxivFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/astro-ph/0601021v1</id>
    <title>  The Andromeda Galaxy  </title>
    <summary>A survey of M31.</summary>
    <published>2006-01-02T11:00:00Z</published>
    <author><name>A. Astronomer</name></author>
    <author><name>B. Observer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1234.5678v2</id>
    <title>Stellar Streams</title>
    <summary>More M31.</summary>
    <published>2012-05-06T09:30:00Z</published>
    <author><name>C. Surveyor</name></author>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:M31", r.URL.Query().Get("search_query"))
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedFixture)
	}))
	defer srv.Close()

	c := NewArxivClient(srv.URL, 5)
	outcome, err := c.Search(context.Background(), "M31")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	require.Len(t, outcome.Papers, 2)
	assert.Equal(t, "The Andromeda Galaxy", outcome.Papers[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/astro-ph/0601021v1", outcome.Papers[0].URL)
	assert.Equal(t, []string{"A. Astronomer", "B. Observer"}, outcome.Papers[0].Authors)
	assert.Equal(t, "Stellar Streams", outcome.Papers[1].Title)
}

func TestArxivUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewArxivClient(srv.URL, 5)
	_, err := c.Search(context.Background(), "M31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestTavilyUnconfiguredIsSkipped(t *testing.T) {
	c := NewTavilyClient("https://tavily.example", "", 5)
	outcome, err := c.Search(context.Background(), "M31")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, outcome.Status)
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"title":"M31 overview"}]}`)
	}))
	defer srv.Close()

	c := NewTavilyClient(srv.URL, "key", 5)
	outcome, err := c.Search(context.Background(), "M31")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.JSONEq(t, `{"results":[{"title":"M31 overview"}]}`, string(outcome.Data))
}
