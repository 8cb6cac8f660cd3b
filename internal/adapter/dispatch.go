package adapter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/model"
)

// Dispatcher executes request descriptors over HTTP and converts the
// response into a tagged source outcome. A non-2xx status becomes an error
// outcome, never a Go error, so one bad source cannot abort a fan-out.
type Dispatcher struct {
	httpClient *http.Client
	log        arbor.ILogger
}

func NewDispatcher(timeout time.Duration, log arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (d *Dispatcher) Do(ctx context.Context, desc *Descriptor) (model.SourceOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, desc.Method, desc.URL, nil)
	if err != nil {
		return model.SourceOutcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range desc.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	d.log.Debug().Str("method", desc.Method).Str("url", desc.URL).Msg("dispatching source request")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return model.SourceOutcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceOutcome{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Failure(fmt.Sprintf("upstream service error %d: %s", resp.StatusCode, truncate(string(body), 300)), resp.StatusCode), nil
	}

	data, err := ParseBody(desc.Format, resp.Header.Get("Content-Type"), body)
	if err != nil {
		return model.SourceOutcome{}, err
	}
	return model.Success(data, resp.StatusCode), nil
}

// ParseBody normalizes a raw response body into a JSON payload. JSON bodies
// pass through untouched; CSV bodies become {format, headers, rows}; anything
// else is wrapped as text.
func ParseBody(format, contentType string, body []byte) (json.RawMessage, error) {
	if strings.Contains(contentType, "application/json") || format == "json" {
		if json.Valid(body) {
			return json.RawMessage(body), nil
		}
	}

	if format == "csv" {
		rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
		if err == nil {
			var headers []string
			if len(rows) > 0 {
				headers = rows[0]
				rows = rows[1:]
			}
			return json.Marshal(map[string]interface{}{
				"format":  "csv",
				"headers": headers,
				"rows":    rows,
			})
		}
	}

	return json.Marshal(map[string]interface{}{
		"format": "text",
		"data":   string(body),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
