package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Analytics keys. Counters and histograms are global, anonymized and never
// expire; they are keyed by fixed names, never by user or job id.
const (
	counterSubmitted  = "astro:analytics:counter:submitted"
	counterProcessed  = "astro:analytics:counter:processed"
	counterSuccessful = "astro:analytics:counter:successful"
	counterFailed     = "astro:analytics:counter:failed"
	counterOwnerScans = "astro:analytics:counter:owner_scans"

	hashDatabaseUsage  = "astro:analytics:db_usage"
	hashWavelengthBins = "astro:analytics:wavelengths"
)

// WavelengthAll is the histogram bucket for requests without a wavelength.
const WavelengthAll = "ALL"

// BinWavelength maps a wavelength in nanometres to its fixed 100nm-wide
// histogram bucket. Bins are deterministic and non-overlapping; a missing
// wavelength goes to the ALL bucket.
func BinWavelength(wavelength *float64) string {
	if wavelength == nil {
		return WavelengthAll
	}
	start := int(*wavelength/100) * 100
	return fmt.Sprintf("%d-%dnm", start, start+99)
}

// Analytics updates the anonymized community counters. All increments are
// atomic Redis operations, safe for concurrent workers.
type Analytics struct {
	redis *redis.Client
}

func NewAnalytics(redisClient *redis.Client) *Analytics {
	return &Analytics{redis: redisClient}
}

// RecordSubmission updates the per-submission counters from the anonymized
// event: one submitted tick, one usage tick per requested source name
// (unrecognized names are recorded literally), one wavelength-bin tick.
func (a *Analytics) RecordSubmission(ctx context.Context, sources []string, wavelength *float64) error {
	if err := a.redis.Incr(ctx, counterSubmitted).Err(); err != nil {
		return fmt.Errorf("failed to count submission: %w", err)
	}

	for _, source := range sources {
		if err := a.redis.HIncrBy(ctx, hashDatabaseUsage, source, 1).Err(); err != nil {
			return fmt.Errorf("failed to count source usage: %w", err)
		}
	}

	if err := a.redis.HIncrBy(ctx, hashWavelengthBins, BinWavelength(wavelength), 1).Err(); err != nil {
		return fmt.Errorf("failed to count wavelength bin: %w", err)
	}
	return nil
}

func (a *Analytics) MarkProcessed(ctx context.Context) {
	a.redis.Incr(ctx, counterProcessed)
}

func (a *Analytics) MarkSuccessful(ctx context.Context) {
	a.redis.Incr(ctx, counterSuccessful)
}

func (a *Analytics) MarkFailed(ctx context.Context) {
	a.redis.Incr(ctx, counterFailed)
}

func (a *Analytics) MarkOwnerScan(ctx context.Context) {
	a.redis.Incr(ctx, counterOwnerScans)
}

// Counters reads the global counter values.
func (a *Analytics) Counters(ctx context.Context) (map[string]int64, error) {
	names := map[string]string{
		"submitted":   counterSubmitted,
		"processed":   counterProcessed,
		"successful":  counterSuccessful,
		"failed":      counterFailed,
		"owner_scans": counterOwnerScans,
	}

	counters := make(map[string]int64, len(names))
	for label, key := range names {
		value, err := a.redis.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		counters[label] = value
	}
	return counters, nil
}

// DatabaseUsage reads the per-source usage histogram.
func (a *Analytics) DatabaseUsage(ctx context.Context) (map[string]int64, error) {
	return a.readHash(ctx, hashDatabaseUsage)
}

// WavelengthBins reads the wavelength histogram.
func (a *Analytics) WavelengthBins(ctx context.Context) (map[string]int64, error) {
	return a.readHash(ctx, hashWavelengthBins)
}

func (a *Analytics) readHash(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := a.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
