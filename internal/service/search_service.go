package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
	"github.com/astrosearch/api/internal/store"
)

// Task types
const (
	TaskTypeSearch    = "search:run"
	TaskTypeAnalytics = "analytics:record"

	QueueSearch    = "search"
	QueueAnalytics = "analytics"
)

var (
	ErrForbidden          = errors.New("job belongs to another user")
	ErrNotFound           = errors.New("job not found")
	ErrPapersRequireQuery = errors.New("query is required when include_papers is true")
)

// SearchTaskPayload is the queued work item for one job. The queue entry is
// keyed by job id so a job is executed at most once.
type SearchTaskPayload struct {
	JobID   string              `json:"job_id"`
	Request model.SearchRequest `json:"request"`
}

// AnalyticsTaskPayload is the anonymized companion event: only the requested
// sources and wavelength, never the owner or job id.
type AnalyticsTaskPayload struct {
	Sources    []string `json:"sources"`
	Wavelength *float64 `json:"wavelength,omitempty"`
}

// TaskEnqueuer is the slice of the asynq client the gateway needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SearchService is the job submission gateway and result retrieval path.
type SearchService struct {
	store       *store.JobStore
	analytics   *store.Analytics
	asynqClient TaskEnqueuer
	retention   time.Duration
	log         arbor.ILogger
}

func NewSearchService(jobStore *store.JobStore, analytics *store.Analytics, asynqClient TaskEnqueuer, retention time.Duration, log arbor.ILogger) *SearchService {
	return &SearchService{
		store:       jobStore,
		analytics:   analytics,
		asynqClient: asynqClient,
		retention:   retention,
		log:         log,
	}
}

// Submit validates the request, records the queued job with its ownership
// entry, and enqueues both the search task and the anonymized analytics
// event. No outbound source I/O happens here; validation failures leave no
// trace in the store or queue.
func (s *SearchService) Submit(ctx context.Context, owner string, req *model.SearchRequest) (*model.SubmitResponse, error) {
	if req.IncludePapers && req.Query == "" {
		return nil, ErrPapersRequireQuery
	}

	jobID := uuid.New().String()
	now := time.Now().UTC()

	job := &model.Job{
		ID:        jobID,
		Owner:     owner,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   *req,
	}

	if err := s.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	searchTask, err := newSearchTask(jobID, *req)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// TaskID keyed by job id gives at-most-one execution; MaxRetry(0)
	// because failed jobs are terminal, never retried.
	_, err = s.asynqClient.EnqueueContext(ctx, searchTask,
		asynq.Queue(QueueSearch),
		asynq.TaskID("search:"+jobID),
		asynq.MaxRetry(0),
		asynq.Retention(s.retention),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue search task: %w", err)
	}

	analyticsTask, err := newAnalyticsTask(req.Sources, req.Wavelength)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics task: %w", err)
	}
	if _, err := s.asynqClient.EnqueueContext(ctx, analyticsTask, asynq.Queue(QueueAnalytics)); err != nil {
		// analytics is best effort; the job is already queued
		s.log.Warn().Err(err).Msg("failed to enqueue analytics event")
	}

	s.log.Info().Str("job_id", jobID).Msg("search job queued")

	return &model.SubmitResponse{Status: string(model.JobStatusQueued), JobID: jobID}, nil
}

// GetResults returns the job outcome for its owner. The fast path reads the
// job record; when only the ownership index survives the answer degrades to
// processing/forbidden; when even the index is gone a full scan is the last
// resort before not-found. Non-owners only ever see forbidden or not-found.
func (s *SearchService) GetResults(ctx context.Context, owner, jobID string) (*model.ResultsResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err == nil {
		if job.Owner != owner {
			return nil, ErrForbidden
		}
		resp := &model.ResultsResponse{Status: job.Status, JobID: jobID}
		switch job.Status {
		case model.JobStatusSuccess:
			resp.Result = job.Result
		case model.JobStatusFailed:
			resp.Error = job.Error
		default:
			resp.Status = model.JobStatusProcessing
		}
		return resp, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	indexOwner, err := s.store.GetOwner(ctx, jobID)
	if err == nil {
		if indexOwner != owner {
			return nil, ErrForbidden
		}
		// index entry without a job record: expired or lost
		return nil, ErrNotFound
	}
	if !errors.Is(err, store.ErrNoOwner) {
		return nil, err
	}

	scannedOwner, err := s.store.FindOwnerByScan(ctx, jobID)
	if err == nil && scannedOwner != owner {
		return nil, ErrForbidden
	}
	return nil, ErrNotFound
}

// Analytics returns the anonymized global counters and histograms.
func (s *SearchService) Analytics(ctx context.Context) (*model.AnalyticsSnapshot, error) {
	counters, err := s.analytics.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	databases, err := s.analytics.DatabaseUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database usage: %w", err)
	}
	wavelengths, err := s.analytics.WavelengthBins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wavelength bins: %w", err)
	}

	return &model.AnalyticsSnapshot{
		Counters:    counters,
		Databases:   databases,
		Wavelengths: wavelengths,
	}, nil
}

func newSearchTask(jobID string, req model.SearchRequest) (*asynq.Task, error) {
	data, err := json.Marshal(SearchTaskPayload{JobID: jobID, Request: req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSearch, data), nil
}

func newAnalyticsTask(sources []string, wavelength *float64) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyticsTaskPayload{Sources: sources, Wavelength: wavelength})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAnalytics, data), nil
}
