package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
)

// UWS phases reported by the IRSA TAP async endpoint.
const (
	irsaPhaseCompleted = "COMPLETED"
	irsaPhaseError     = "ERROR"
	irsaPhaseAborted   = "ABORTED"
)

// IrsaAdapter runs the three-step async protocol against the IRSA TAP
// service: submit a query for a remote job id, poll the job phase on a fixed
// interval, then fetch the result. The whole exchange is bounded by maxWait;
// exceeding it is an error outcome for this source, never a fatal error for
// the job.
type IrsaAdapter struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	log          arbor.ILogger
}

func NewIrsaAdapter(baseURL string, pollInterval, maxWait time.Duration, log arbor.ILogger) *IrsaAdapter {
	return &IrsaAdapter{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		log:          log,
	}
}

func (a *IrsaAdapter) Name() string { return SourceIrsa }

// MaxWait is the bounded wait of the submit/poll/fetch protocol.
func (a *IrsaAdapter) MaxWait() time.Duration { return a.maxWait }

func (a *IrsaAdapter) Accepts(p Params) bool {
	return p.HasObject() || p.HasCoords()
}

func (a *IrsaAdapter) Query(ctx context.Context, p Params) (model.SourceOutcome, error) {
	remoteID, err := a.submit(ctx, p)
	if err != nil {
		return model.SourceOutcome{}, fmt.Errorf("irsa submit: %w", err)
	}

	if err := a.waitForCompletion(ctx, remoteID); err != nil {
		return model.SourceOutcome{}, err
	}

	return a.fetchResult(ctx, remoteID)
}

// submit posts the query and returns the remote job id, taken from the UWS
// redirect Location when present, otherwise from a JSON body.
func (a *IrsaAdapter) submit(ctx context.Context, p Params) (string, error) {
	form := url.Values{}
	form.Set("QUERY", buildIrsaQuery(p))
	form.Set("FORMAT", "CSV")
	form.Set("PHASE", "RUN")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/async", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upstream service error %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	// a UWS service answers with a 303 to the job summary, which the
	// client has already followed; the final URL carries the job id
	if resp.Request != nil && strings.Contains(resp.Request.URL.Path, "/async/") {
		parts := strings.Split(strings.TrimRight(resp.Request.URL.Path, "/"), "/")
		if id := parts[len(parts)-1]; id != "" && id != "async" {
			return id, nil
		}
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		parts := strings.Split(strings.TrimRight(loc, "/"), "/")
		return parts[len(parts)-1], nil
	}

	var submitted struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(body, &submitted); err == nil && submitted.JobID != "" {
		return submitted.JobID, nil
	}
	return "", fmt.Errorf("no job id in submit response")
}

// waitForCompletion polls the remote phase until terminal, the wait budget is
// spent, or the context is cancelled.
func (a *IrsaAdapter) waitForCompletion(ctx context.Context, remoteID string) error {
	deadline := time.Now().Add(a.maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		phase, err := a.fetchPhase(ctx, remoteID)
		if err != nil {
			return fmt.Errorf("irsa poll: %w", err)
		}

		a.log.Debug().Str("remote_id", remoteID).Int("attempt", attempt).Str("phase", phase).Msg("irsa job phase")

		switch phase {
		case irsaPhaseCompleted:
			return nil
		case irsaPhaseError, irsaPhaseAborted:
			return fmt.Errorf("irsa job ended in phase %s", phase)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}

	return fmt.Errorf("irsa job timed out after %v", a.maxWait)
}

func (a *IrsaAdapter) fetchPhase(ctx context.Context, remoteID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/async/"+remoteID+"/phase", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upstream service error %d", resp.StatusCode)
	}
	return strings.TrimSpace(string(body)), nil
}

func (a *IrsaAdapter) fetchResult(ctx context.Context, remoteID string) (model.SourceOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/async/"+remoteID+"/results/result", nil)
	if err != nil {
		return model.SourceOutcome{}, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.SourceOutcome{}, fmt.Errorf("irsa fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceOutcome{}, err
	}
	if resp.StatusCode >= 400 {
		return model.Failure(fmt.Sprintf("upstream service error %d: %s", resp.StatusCode, truncate(string(body), 300)), resp.StatusCode), nil
	}

	data, err := ParseBody("csv", resp.Header.Get("Content-Type"), body)
	if err != nil {
		return model.SourceOutcome{}, err
	}
	return model.Success(data, resp.StatusCode), nil
}

func buildIrsaQuery(p Params) string {
	table := p.Options["irsa_table"]
	if table == "" {
		table = "allwise_p3as_psd"
	}
	if p.HasCoords() {
		return fmt.Sprintf("SELECT TOP 5 * FROM %s WHERE CONTAINS(POINT('ICRS', ra, dec), CIRCLE('ICRS', %f, %f, %f)) = 1", table, *p.RA, *p.Dec, p.Radius)
	}
	return fmt.Sprintf("SELECT TOP 5 * FROM %s WHERE designation = '%s'", table, p.ObjectName)
}
