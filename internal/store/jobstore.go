package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
)

const (
	jobKeyPrefix   = "astro:job:"
	ownerKeyPrefix = "astro:job_owner:"

	scanBatch = 100
)

var (
	ErrNotFound = errors.New("job not found")
	ErrNoOwner  = errors.New("no owner recorded")
)

// JobStore persists job records and their ownership index in Redis. Both
// share the same retention window; expiry is enforced by Redis, after which
// a job is indistinguishable from one that never existed.
type JobStore struct {
	redis     *redis.Client
	analytics *Analytics
	retention time.Duration
	log       arbor.ILogger
}

func NewJobStore(redisClient *redis.Client, analytics *Analytics, retention time.Duration, log arbor.ILogger) *JobStore {
	return &JobStore{
		redis:     redisClient,
		analytics: analytics,
		retention: retention,
		log:       log,
	}
}

// Put writes a job record and its ownership-index entry. The owner entry is
// written first so the index invariant (it lives at least as long as the job
// record) holds even across a partial failure.
func (s *JobStore) Put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := s.redis.Set(ctx, ownerKeyPrefix+job.ID, job.Owner, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to save owner index: %w", err)
	}
	if err := s.redis.Set(ctx, jobKeyPrefix+job.ID, data, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Update overwrites an existing job record. Only the worker that owns the
// job writes it, so last-writer-wins is acceptable.
func (s *JobStore) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	// KEEPTTL preserves the retention window set at submission
	if err := s.redis.Set(ctx, jobKeyPrefix+job.ID, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetOwner answers ownership from the fast-path index.
func (s *JobStore) GetOwner(ctx context.Context, jobID string) (string, error) {
	owner, err := s.redis.Get(ctx, ownerKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoOwner
		}
		return "", err
	}
	return owner, nil
}

// FindOwnerByScan is the last-resort ownership lookup: a linear scan over
// all live job records, used only when the fast-path index has no entry.
// Every invocation is counted so an unexpectedly hot path shows up in the
// analytics surface.
func (s *JobStore) FindOwnerByScan(ctx context.Context, jobID string) (string, error) {
	s.analytics.MarkOwnerScan(ctx)
	s.log.Warn().Str("job_id", jobID).Msg("owner index miss, falling back to job scan")

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, jobKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return "", fmt.Errorf("owner scan failed: %w", err)
		}

		for _, key := range keys {
			if key != jobKeyPrefix+jobID {
				continue
			}
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var job model.Job
			if err := json.Unmarshal(data, &job); err != nil {
				continue
			}
			return job.Owner, nil
		}

		cursor = next
		if cursor == 0 {
			return "", ErrNoOwner
		}
	}
}
