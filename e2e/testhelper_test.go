package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/astrosearch/api/internal/adapter"
	"github.com/astrosearch/api/internal/client"
	"github.com/astrosearch/api/internal/fanout"
	"github.com/astrosearch/api/internal/handler"
	"github.com/astrosearch/api/internal/middleware"
	"github.com/astrosearch/api/internal/model"
	"github.com/astrosearch/api/internal/service"
	"github.com/astrosearch/api/internal/store"
	"github.com/astrosearch/api/internal/worker"
	"github.com/astrosearch/api/pkg/response"
)

// fakeEnqueuer captures tasks instead of pushing them to a queue so tests
// can drive the worker by hand.
type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: task.Type(), Type: task.Type()}, nil
}

// stubAdapter answers every query with a fixed payload; the outbound source
// calls are not under test here.
type stubAdapter struct {
	name string
}

func (a *stubAdapter) Name() string                { return a.name }
func (a *stubAdapter) Accepts(adapter.Params) bool { return true }

func (a *stubAdapter) Query(ctx context.Context, p adapter.Params) (model.SourceOutcome, error) {
	return model.Success(json.RawMessage(`{"object":"M31"}`), 200), nil
}

// testApp holds the app plus the pieces a test drives directly.
type testApp struct {
	app             *fiber.App
	enqueuer        *fakeEnqueuer
	searchWorker    *worker.SearchWorker
	analyticsWorker *worker.AnalyticsWorker
	redis           *miniredis.Miniredis
}

// setupApp builds a Fiber app wired like main.go, against an in-process
// Redis, a captured-task queue and stubbed source adapters.
func setupApp(t *testing.T) *testApp {
	return setupAppWithLimit(t, 10000)
}

func setupAppWithLimit(t *testing.T, searchPerHour int) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	log := arbor.NewLogger()
	validate := validator.New()

	analytics := store.NewAnalytics(redisClient)
	jobStore := store.NewJobStore(redisClient, analytics, time.Hour, log)

	registry := adapter.NewRegistry()
	registry.Register(&stubAdapter{name: adapter.SourceSimbad})
	registry.Register(&stubAdapter{name: adapter.SourceNed})
	executor := fanout.NewExecutor(registry, time.Second, false, log)

	var providers []client.PaperProvider

	enqueuer := &fakeEnqueuer{}
	searchService := service.NewSearchService(jobStore, analytics, enqueuer, time.Hour, log)
	searchHandler := handler.NewSearchHandler(searchService, validate)
	analyticsHandler := handler.NewAnalyticsHandler(searchService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return response.Error(c, code, response.CodeServiceError, message, nil)
		},
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/usage", analyticsHandler.Usage)
	app.Get("/analytics", analyticsHandler.Analytics)

	app.Post("/search", middleware.RequireUser(), rateLimiter.SearchLimit(searchPerHour), searchHandler.Submit)
	app.Get("/results/:jobID", middleware.RequireUser(), searchHandler.Results)

	return &testApp{
		app:             app,
		enqueuer:        enqueuer,
		searchWorker:    worker.NewSearchWorker(jobStore, analytics, executor, providers, log),
		analyticsWorker: worker.NewAnalyticsWorker(analytics, log),
		redis:           mr,
	}
}

// runQueuedTasks feeds every captured task to its worker, the way the queue
// server would.
func (ta *testApp) runQueuedTasks(t *testing.T) {
	t.Helper()
	tasks := ta.enqueuer.tasks
	ta.enqueuer.tasks = nil

	for _, task := range tasks {
		var err error
		switch task.Type() {
		case service.TaskTypeSearch:
			err = ta.searchWorker.ProcessTask(context.Background(), task)
		case service.TaskTypeAnalytics:
			err = ta.analyticsWorker.ProcessTask(context.Background(), task)
		default:
			t.Fatalf("unexpected task type %q", task.Type())
		}
		if err != nil {
			t.Fatalf("task %q failed: %v", task.Type(), err)
		}
	}
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doUserRequest performs a request on behalf of a user.
func doUserRequest(app *fiber.App, method, path, body, userID string) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{
		"X-User-ID": userID,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode digs the machine-readable code out of an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}
