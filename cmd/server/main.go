package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/astrosearch/api/internal/adapter"
	"github.com/astrosearch/api/internal/client"
	"github.com/astrosearch/api/internal/config"
	"github.com/astrosearch/api/internal/fanout"
	"github.com/astrosearch/api/internal/handler"
	"github.com/astrosearch/api/internal/middleware"
	"github.com/astrosearch/api/internal/service"
	"github.com/astrosearch/api/internal/store"
	"github.com/astrosearch/api/internal/worker"
	"github.com/astrosearch/api/pkg/response"
)

func main() {
	log := arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:       arbormodels.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		TextOutput: true,
	})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	// Stores
	analytics := store.NewAnalytics(redisClient)
	jobStore := store.NewJobStore(redisClient, analytics, cfg.Jobs.Retention, log)

	// Source registry and fan-out executor
	registry := buildRegistry(cfg, log)
	executor := fanout.NewExecutor(registry, cfg.Fanout.CallTimeout, cfg.Fanout.Sequential, log)

	// Literature providers
	providers := []client.PaperProvider{
		client.NewArxivClient(cfg.Papers.ArxivURL, cfg.Papers.MaxResults),
		client.NewTavilyClient(cfg.Papers.TavilyURL, cfg.Papers.TavilyKey, cfg.Papers.MaxResults),
	}

	// Services and handlers
	searchService := service.NewSearchService(jobStore, analytics, asynqClient, cfg.Jobs.Retention, log)
	searchHandler := handler.NewSearchHandler(searchService, validate)
	analyticsHandler := handler.NewAnalyticsHandler(searchService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-User-ID",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/usage", analyticsHandler.Usage)
	app.Get("/analytics", analyticsHandler.Analytics)

	app.Post("/search", middleware.RequireUser(), rateLimiter.SearchLimit(cfg.RateLimit.SearchPerHour), searchHandler.Submit)
	app.Get("/results/:jobID", middleware.RequireUser(), searchHandler.Results)

	// Start Asynq worker server
	go startWorkerServer(cfg, jobStore, analytics, executor, providers, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func buildRegistry(cfg *config.Config, log arbor.ILogger) *adapter.Registry {
	dispatcher := adapter.NewDispatcher(cfg.Fanout.CallTimeout, log)

	registry := adapter.NewRegistry()
	registry.Register(adapter.FromBuilder(&adapter.SimbadBuilder{BaseURL: cfg.Sources.SimbadURL}, dispatcher))
	registry.Register(adapter.FromBuilder(&adapter.VizierBuilder{BaseURL: cfg.Sources.VizierURL}, dispatcher))
	registry.Register(adapter.FromBuilder(&adapter.NedBuilder{BaseURL: cfg.Sources.NedURL}, dispatcher))
	registry.Register(adapter.FromBuilder(&adapter.SdssBuilder{BaseURL: cfg.Sources.SdssURL}, dispatcher))
	registry.Register(adapter.FromBuilder(&adapter.GaiaBuilder{BaseURL: cfg.Sources.GaiaURL}, dispatcher))
	registry.Register(adapter.NewIrsaAdapter(cfg.Sources.IrsaURL, cfg.Fanout.PollInterval, cfg.Fanout.MaxWait, log))
	registry.Register(adapter.FromBuilder(&adapter.AdsBuilder{BaseURL: cfg.Sources.AdsURL, Token: cfg.Sources.AdsToken}, dispatcher))
	return registry
}

func startWorkerServer(cfg *config.Config, jobStore *store.JobStore, analytics *store.Analytics, executor *fanout.Executor, providers []client.PaperProvider, log arbor.ILogger) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				service.QueueSearch:    6,
				service.QueueAnalytics: 4,
			},
		},
	)

	searchWorker := worker.NewSearchWorker(jobStore, analytics, executor, providers, log)
	analyticsWorker := worker.NewAnalyticsWorker(analytics, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSearch, searchWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeAnalytics, analyticsWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Error().Err(err).Msg("asynq worker error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
