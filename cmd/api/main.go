package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/api/handlers"
	"github.com/ask-cricket/backend/internal/cache"
	"github.com/ask-cricket/backend/internal/cache/redis"
	"github.com/ask-cricket/backend/internal/llm"
	"github.com/ask-cricket/backend/internal/metrics"
	"github.com/ask-cricket/backend/internal/middleware/ratelimit"
	"github.com/ask-cricket/backend/internal/middleware/security"
	"github.com/ask-cricket/backend/internal/middleware/validation"
	"github.com/ask-cricket/backend/internal/query"
	"github.com/ask-cricket/backend/internal/sqlgen"
	"github.com/ask-cricket/backend/internal/storage/postgres"
	"github.com/ask-cricket/backend/internal/storage/sqlite"
	"github.com/ask-cricket/backend/internal/vector/zilliz"
	"github.com/ask-cricket/backend/pkg/config"
	appLogger "github.com/ask-cricket/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Ask Cricket API Server")

	metrics.Init()

	ctx := context.Background()

	db, err := postgres.Open(ctx, postgres.DBConfig{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer db.Close()

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		MaxRetries:     cfg.LLM.MaxRetries,
	})
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	repo := postgres.NewCacheRepository(db)

	var exact cache.ExactStore = repo
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		exact = cache.NewTiered(redisClient, repo)
	}

	var fuzzy cache.FuzzyMatcher
	switch cfg.Cache.FuzzyBackend {
	case "postgres":
		fuzzy = repo
	case "milvus":
		zillizClient, err := zilliz.NewClient(ctx, zilliz.Config{
			Endpoint:       cfg.Zilliz.Endpoint,
			APIKey:         cfg.Zilliz.APIKey,
			CollectionName: cfg.Zilliz.CollectionName,
			VectorDim:      cfg.LLM.EmbeddingDim,
			TopK:           cfg.Zilliz.TopK,
			MaxDistance:    cfg.Zilliz.MaxDistance,
		}, llmClient)
		if err != nil {
			appLogger.Fatal("Failed to create Zilliz client", zap.Error(err))
		}
		defer zillizClient.Close()

		if err := zillizClient.CreateCollection(ctx); err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}
		fuzzy = zillizClient
	default:
		appLogger.Info("Fuzzy matching disabled")
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	engine := query.NewEngine(
		sqlgen.NewGenerator(llmClient, cfg.LLM.MaxTokens),
		cache.NewLayer(fuzzy, exact),
		postgres.NewExecutor(db, cfg.Executor.Mode, time.Duration(cfg.Executor.TimeoutSec)*time.Second),
		sqliteClient,
		query.Config{MaxAttempts: cfg.Pipeline.MaxAttempts},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	timeout := cfg.Pipeline.RequestTimeout()
	chatHandler := handlers.NewChatHandler(engine, sqliteClient, timeout)
	wsHandler := handlers.NewWebSocketHandler(engine, timeout)

	api := app.Group("/api")

	api.Post("/chat",
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			Path:              "/api/chat",
			MaxQuestionLength: cfg.Pipeline.MaxQuestionLength,
			Logger:            appLogger.GetLogger(),
		}),
		chatHandler.HandleChat,
	)
	api.Get("/chat/history", chatHandler.GetHistory)

	api.Use("/ws", handlers.Upgrade)
	api.Get("/ws/chat", limiter.Middleware(), websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", readyHandler(db))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func readyHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	}
}
