package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Job represents one asynchronous search job owned by a single submitter.
// It is created queued by the gateway and mutated only by the worker.
type Job struct {
	ID        string        `json:"id"`
	Owner     string        `json:"owner"`
	Status    JobStatus     `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Request   SearchRequest `json:"request"`
	Result    *SearchResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SearchRequest is the normalized copy of a submitted search.
type SearchRequest struct {
	Query         string   `json:"query"`
	Wavelength    *float64 `json:"wavelength,omitempty" validate:"omitempty,gt=0"`
	RA            *float64 `json:"ra,omitempty"`
	Dec           *float64 `json:"dec,omitempty"`
	Bibcode       string   `json:"bibcode,omitempty"`
	Radius        float64  `json:"radius,omitempty"`
	Sources       []string `json:"sources"`
	IncludePapers bool     `json:"include_papers"`
}

// SubmitResponse is returned by POST /search.
type SubmitResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// ResultsResponse is returned by GET /results/{job_id}.
type ResultsResponse struct {
	Status JobStatus     `json:"status"`
	JobID  string        `json:"job_id"`
	Result *SearchResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// AnalyticsSnapshot is the anonymized global view returned by GET /analytics.
type AnalyticsSnapshot struct {
	Counters    map[string]int64 `json:"counters"`
	Databases   map[string]int64 `json:"databases"`
	Wavelengths map[string]int64 `json:"wavelengths"`
}
