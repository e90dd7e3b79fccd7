package main

import (
	"context"
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
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/analysis"
	"github.com/Sanketmandwal/TataVision/internal/api/handlers"
	"github.com/Sanketmandwal/TataVision/internal/cache/redis"
	"github.com/Sanketmandwal/TataVision/internal/llm"
	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/internal/middleware/ratelimit"
	"github.com/Sanketmandwal/TataVision/internal/middleware/security"
	"github.com/Sanketmandwal/TataVision/internal/middleware/validation"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/internal/storage/sqlite"
	"github.com/Sanketmandwal/TataVision/internal/vector/milvus"
	"github.com/Sanketmandwal/TataVision/pkg/config"
	appLogger "github.com/Sanketmandwal/TataVision/pkg/logger"
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

	appLogger.Info("Starting TataVision competitive analysis server")

	metrics.Init()

	milvusConn, err := milvus.Connect(context.Background(), cfg.Milvus.Endpoint, cfg.Milvus.APIKey)
	if err != nil {
		appLogger.Fatal("Failed to connect to Milvus", zap.Error(err))
	}
	defer milvusConn.Close()

	timeout := time.Duration(cfg.Milvus.TimeoutSec) * time.Second

	vehicleStore, err := milvus.NewClient(milvusConn, milvus.CollectionConfig{
		Name:         cfg.Milvus.VehicleCollection,
		VectorField:  cfg.Milvus.VectorField,
		MetricType:   cfg.Milvus.MetricType,
		NProbe:       cfg.Milvus.NProbe,
		OutputFields: cfg.Milvus.VehicleOutputFields,
		Timeout:      timeout,
	})
	if err != nil {
		appLogger.Fatal("Failed to create vehicle collection client", zap.Error(err))
	}

	competitorStore, err := milvus.NewClient(milvusConn, milvus.CollectionConfig{
		Name:         cfg.Milvus.CompetitorCollection,
		VectorField:  cfg.Milvus.VectorField,
		MetricType:   cfg.Milvus.MetricType,
		NProbe:       cfg.Milvus.NProbe,
		OutputFields: cfg.Milvus.CompetitorOutputFields,
		Timeout:      timeout,
	})
	if err != nil {
		appLogger.Fatal("Failed to create competitor collection client", zap.Error(err))
	}

	llmClient := llm.NewClient(
		llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		},
		llm.Config{
			BaseURL: cfg.LLM.EmbeddingBaseURL,
			APIKey:  cfg.LLM.EmbeddingAPIKey,
			Model:   cfg.LLM.EmbeddingModel,
			Timeout: time.Duration(cfg.LLM.EmbeddingTimeoutSec) * time.Second,
		},
	)

	var embedder retrieval.Embedder = llmClient
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embedder = redis.NewCachedEmbedder(
				redisClient,
				llmClient,
				llmClient.EmbeddingModel(),
				time.Duration(cfg.Redis.EmbeddingTTLSec)*time.Second,
			)
		}
	}

	deps := analysis.Dependencies{
		Generator:       llmClient,
		Embedder:        embedder,
		VehicleStore:    vehicleStore,
		CompetitorStore: competitorStore,
	}

	// Left as a nil interface when disabled so the handler reports 503.
	var history handlers.HistoryStore
	if cfg.SQLite.Enabled {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}

		deps.Recorder = sqliteClient
		history = sqliteClient
	}

	engine := analysis.NewEngine(deps, analysis.Options{
		DefaultTopK:         cfg.Analysis.DefaultTopK,
		MaxTopK:             cfg.Analysis.MaxTopK,
		ParallelCompetitors: cfg.Analysis.ParallelCompetitors,
		MaxConcurrency:      cfg.Analysis.MaxConcurrency,
	})

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
		AllowOrigins: strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		IsDevelopment:  cfg.Server.IsDevelopment,
	}))

	limits := handlers.Limits{
		MaxQueryLength: cfg.Analysis.MaxQueryLength,
		MaxTopK:        cfg.Analysis.MaxTopK,
	}

	analysisHandler := handlers.NewAnalysisHandler(engine, limits)
	healthHandler := handlers.NewHealthHandler(vehicleStore, competitorStore)
	historyHandler := handlers.NewHistoryHandler(history)
	wsHandler := handlers.NewWebSocketHandler(engine, limits)

	app.Get("/", handlers.HandleRoot)
	app.Get("/health", healthHandler.HandleHealth)
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api", limiter.Middleware())

	api.Post("/analyze",
		validation.Middleware(validation.Config{
			MaxQueryLength: cfg.Analysis.MaxQueryLength,
			MaxTopK:        cfg.Analysis.MaxTopK,
			Logger:         appLogger.GetLogger(),
		}),
		analysisHandler.HandleAnalyze,
	)
	api.Get("/history", historyHandler.GetHistory)

	wsHandler.Register(app, limiter.Middleware())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("vehicle_collection", vehicleStore.Name()),
		zap.String("competitor_collection", competitorStore.Name()),
	)

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
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
