package model

import "encoding/json"

// Outcome status
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// SourceOutcome is the per-source result of a fan-out call. Exactly one of
// the two arms is populated: Data on success, Error on failure. Downstream
// code switches on Status instead of probing for fields.
type SourceOutcome struct {
	Status     OutcomeStatus   `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func Success(data json.RawMessage, statusCode int) SourceOutcome {
	return SourceOutcome{Status: OutcomeSuccess, Data: data, StatusCode: statusCode}
}

func Failure(message string, statusCode int) SourceOutcome {
	return SourceOutcome{Status: OutcomeError, Error: message, StatusCode: statusCode}
}

func (o SourceOutcome) OK() bool {
	return o.Status == OutcomeSuccess
}

// SearchResult holds the complete outcome of one job: one entry per source
// actually attempted, plus the literature providers when papers were requested.
type SearchResult struct {
	Sources map[string]SourceOutcome `json:"sources"`
	Papers  *PaperResult             `json:"papers,omitempty"`
}

// Paper is a single literature entry from a provider.
type Paper struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary,omitempty"`
	Published string   `json:"published,omitempty"`
	URL       string   `json:"url,omitempty"`
	Authors   []string `json:"authors,omitempty"`
}

// ProviderOutcome is the per-provider arm of a literature fetch. A provider
// that is not configured reports Skipped rather than Error, so a job is not
// failed for a deployment choice.
type ProviderOutcome struct {
	Status OutcomeStatus   `json:"status"`
	Papers []Paper         `json:"papers,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PaperResult groups the outcomes of both literature providers.
type PaperResult struct {
	Arxiv  ProviderOutcome `json:"arxiv"`
	Tavily ProviderOutcome `json:"tavily"`
}
