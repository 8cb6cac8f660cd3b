package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/service"
	"github.com/astrosearch/api/internal/store"
)

// AnalyticsWorker consumes the anonymized submission events. The payload
// carries no owner and no job id, so nothing here can be tied back to a
// specific search.
type AnalyticsWorker struct {
	analytics *store.Analytics
	log       arbor.ILogger
}

func NewAnalyticsWorker(analytics *store.Analytics, log arbor.ILogger) *AnalyticsWorker {
	return &AnalyticsWorker{analytics: analytics, log: log}
}

func (w *AnalyticsWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.AnalyticsTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal analytics payload: %w", err)
	}

	if err := w.analytics.RecordSubmission(ctx, payload.Sources, payload.Wavelength); err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	w.log.Debug().Int("sources", len(payload.Sources)).Msg("analytics event recorded")
	return nil
}
