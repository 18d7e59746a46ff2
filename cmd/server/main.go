package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/config"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/db"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/handler"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/repository"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/router"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

func main() {
	cfg := config.Load()

	middleware.InitLogger(cfg.LogLevel, "kim-api")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	handler.InitMetrics(pool)

	cache := service.NewCacheService(cfg.RedisURL)
	defer cache.Close()

	store := repository.NewStore(pool)

	rating := service.NewRatingService()
	audio := service.NewAudioService(cfg.YtDlpPath)
	gemini := service.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	limiter := service.NewInferenceLimiter()
	transcript := service.NewTranscriptService()
	review := service.NewReviewService(store, audio, gemini, limiter, rating, cfg.GeminiModel)

	// Background worker that reviews newly ingested videos.
	worker := service.NewReviewWorker(pool, review, cache)
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go worker.Start(workerCtx)

	app := fiber.New(fiber.Config{
		AppName:      "kids-in-minds API",
		ServerHeader: "kim",
	})

	h := &router.Handlers{
		Review:     handler.NewReviewHandler(review, cache, cfg.BulkReviewLimit),
		Rating:     handler.NewRatingHandler(store, rating, cache),
		Transcript: handler.NewTranscriptHandler(store, transcript),
		Stats:      handler.NewStatsHandler(store, cache),
		Health:     handler.NewHealthHandler(pool, cache.Client(), cfg.YtDlpPath),
	}
	router.Setup(app, h, cfg.CORSOrigins)

	log.Printf("kim Go backend starting on :%s (env=%s, model=%s)", cfg.Port, cfg.Environment, cfg.GeminiModel)
	log.Fatal(app.Listen(":" + cfg.Port))
}
