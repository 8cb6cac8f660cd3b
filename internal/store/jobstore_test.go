package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
)

func newTestJobStore(t *testing.T) (*JobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	analytics := NewAnalytics(client)
	return NewJobStore(client, analytics, 24*time.Hour, arbor.NewLogger()), mr
}

func testJob(id, owner string) *model.Job {
	now := time.Now().UTC()
	return &model.Job{
		ID:        id,
		Owner:     owner,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   model.SearchRequest{Query: "M31"},
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestJobStore(t)

	job := testJob("job-1", "alice")
	require.NoError(t, s.Put(ctx, job))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, model.JobStatusQueued, got.Status)

	owner, err := s.GetOwner(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestGetMissingJob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestJobStore(t)

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetOwner(ctx, "nope")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestUpdatePreservesExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestJobStore(t)

	job := testJob("job-1", "alice")
	require.NoError(t, s.Put(ctx, job))

	job.Status = model.JobStatusProcessing
	require.NoError(t, s.Update(ctx, job))

	// the record must still expire with the retention window set at Put
	mr.FastForward(25 * time.Hour)

	_, err := s.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetOwner(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestExpiredJobIndistinguishableFromUnknown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestJobStore(t)

	require.NoError(t, s.Put(ctx, testJob("job-1", "alice")))
	mr.FastForward(25 * time.Hour)

	_, err := s.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindOwnerByScan(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestFindOwnerByScan(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestJobStore(t)

	require.NoError(t, s.Put(ctx, testJob("job-1", "alice")))
	require.NoError(t, s.Put(ctx, testJob("job-2", "bob")))

	// simulate index loss: the job record survives, the fast path is gone
	mr.Del(ownerKeyPrefix + "job-2")

	owner, err := s.FindOwnerByScan(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// every fallback firing is counted
	counters, err := s.analytics.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters["owner_scans"])
}
