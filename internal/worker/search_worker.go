package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/adapter"
	"github.com/astrosearch/api/internal/client"
	"github.com/astrosearch/api/internal/fanout"
	"github.com/astrosearch/api/internal/model"
	"github.com/astrosearch/api/internal/service"
	"github.com/astrosearch/api/internal/store"
)

// SearchWorker executes one queued search job: fan out to the admitted data
// sources, optionally query both literature providers, and write exactly one
// terminal job state.
type SearchWorker struct {
	store     *store.JobStore
	analytics *store.Analytics
	executor  *fanout.Executor
	providers []client.PaperProvider
	log       arbor.ILogger
}

func NewSearchWorker(jobStore *store.JobStore, analytics *store.Analytics, executor *fanout.Executor, providers []client.PaperProvider, log arbor.ILogger) *SearchWorker {
	return &SearchWorker{
		store:     jobStore,
		analytics: analytics,
		executor:  executor,
		providers: providers,
		log:       log,
	}
}

// ProcessTask handles one search task. It always returns nil for job-level
// failures: the failed state is recorded in the store and the queue must not
// retry a terminal job.
func (w *SearchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.SearchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	w.log.Info().Str("job_id", jobID).Msg("starting search job")

	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// record expired between enqueue and pickup; nothing to do
			w.log.Warn().Str("job_id", jobID).Msg("job record gone before pickup")
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.Terminal() {
		w.log.Warn().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job already terminal, skipping")
		return nil
	}

	// record processing before any outbound I/O so a polling submitter
	// never observes a stale queued status mid-flight
	job.Status = model.JobStatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := w.store.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	result, jobErr := w.execute(ctx, payload.Request)

	w.analytics.MarkProcessed(ctx)

	job.UpdatedAt = time.Now().UTC()
	if jobErr != nil {
		job.Status = model.JobStatusFailed
		job.Error = jobErr.Error()
		w.analytics.MarkFailed(ctx)
		w.log.Warn().Str("job_id", jobID).Err(jobErr).Msg("search job failed")
	} else {
		job.Status = model.JobStatusSuccess
		job.Result = result
		w.analytics.MarkSuccessful(ctx)
		w.log.Info().Str("job_id", jobID).Msg("search job completed")
	}

	if err := w.store.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to write terminal state: %w", err)
	}
	return nil
}

// execute runs the fan-out and literature legs and builds the result, or
// returns the job-fatal error.
func (w *SearchWorker) execute(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	if req.IncludePapers && req.Query == "" {
		// validated at submission; re-checked as a fast failure before I/O
		return nil, service.ErrPapersRequireQuery
	}

	params := adapter.ParamsFromRequest(req)

	sources, err := w.executor.Execute(ctx, req.Sources, params)
	if err != nil {
		return nil, err
	}

	result := &model.SearchResult{Sources: sources}

	if req.IncludePapers {
		papers, err := w.fetchPapers(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		result.Papers = papers
	}

	return result, nil
}

// fetchPapers queries both literature providers concurrently. A single
// provider failure is kept as that provider's error arm; the job only fails
// when every provider that was supposed to answer failed.
func (w *SearchWorker) fetchPapers(ctx context.Context, query string) (*model.PaperResult, error) {
	outcomes := make([]model.ProviderOutcome, len(w.providers))

	var wg sync.WaitGroup
	for i, provider := range w.providers {
		wg.Add(1)
		go func(i int, provider client.PaperProvider) {
			defer wg.Done()
			outcome, err := provider.Search(ctx, query)
			if err != nil {
				outcome = model.ProviderOutcome{Status: model.OutcomeError, Error: err.Error()}
			}
			outcomes[i] = outcome
		}(i, provider)
	}
	wg.Wait()

	var failures []string
	for i, outcome := range outcomes {
		if outcome.Status == model.OutcomeError {
			failures = append(failures, fmt.Sprintf("%s: %s", w.providers[i].Name(), outcome.Error))
		}
	}
	// a skipped provider is a deployment choice, not a failure; the job
	// only fails when every provider errored
	if len(failures) > 0 && len(failures) == len(outcomes) {
		return nil, fmt.Errorf("all paper providers failed: %s", strings.Join(failures, "; "))
	}

	result := &model.PaperResult{}
	for i, provider := range w.providers {
		switch provider.Name() {
		case "arxiv":
			result.Arxiv = outcomes[i]
		case "tavily":
			result.Tavily = outcomes[i]
		}
	}
	return result, nil
}
