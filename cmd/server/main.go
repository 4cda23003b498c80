package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/billing"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/config"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/database"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/events"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/handlers"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/llm"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/platform"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/routes"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/store"
)

const evidenceRetention = 180 * 24 * time.Hour

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	if cfg.OpenAIAPIKey == "" {
		log.Println("⚠️  WARNING: OPENAI_API_KEY not set. Classification will fail and every comment will be flagged for review.")
	}
	if cfg.AdminTokenHash == "" {
		log.Println("⚠️  WARNING: ADMIN_TOKEN_HASH not set. The admin API is disabled.")
	}

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	accounts := store.NewAccountStore(database.DB)
	comments := store.NewCommentStore(database.DB)
	suspicious := store.NewSuspiciousAccountStore(database.DB)
	lists := store.NewListStore(database.DB)
	settings := store.NewSettingsStore(database.DB)
	evidence := store.NewEvidenceStore(database.PostgresDB)

	// External services
	llmClient := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ClassifyModel, cfg.EmbeddingModel, logger)
	graphClient := platform.NewGraphClient(cfg.GraphAPIBaseURL, logger)
	embeddings := store.NewEmbeddingIndex(database.DB, llmClient)
	billingSvc := billing.NewService(database.RedisClient, database.DB, cfg.DefaultMonthlyLimit, logger)

	// Moderation pipeline
	resolver, err := moderation.NewSettingsResolver(settings, 1024, logger)
	if err != nil {
		log.Fatal("Failed to build settings resolver:", err)
	}

	var executor moderation.ActionExecutor
	if cfg.DryRun {
		executor = moderation.NoopExecutor{}
		log.Println("⚠️  DRY_RUN enabled: platform actions are disabled")
	} else {
		executor = moderation.NewPlatformExecutor(graphClient, comments, logger)
	}

	tracker := moderation.NewTracker(suspicious, comments, executor, logger)
	signals := moderation.NewSignalAggregator(lists, suspicious, embeddings, resolver, logger)
	classifier := moderation.NewClassifierAdapter(llmClient, moderation.NewPatternDetector(), logger)

	hub := events.NewHub(database.RedisClient, logger)
	hub.StartSubscriber(ctx)
	hub.StartSettingsSubscriber(ctx, resolver)

	engine := moderation.NewEngine(moderation.EngineConfig{
		Signals:    signals,
		Classifier: classifier,
		Tracker:    tracker,
		Executor:   executor,
		Comments:   comments,
		Lists:      lists,
		Evidence:   evidence,
		Billing:    billingSvc,
		Notifier:   hub,
		Logger:     logger,
	})

	pool := moderation.NewPool(cfg.WorkerCount, cfg.QueueSize, cfg.MaxAttempts,
		func(ctx context.Context, in *moderation.Input) error {
			engine.Moderate(ctx, in)
			return nil
		}, logger)
	pool.Start(ctx)
	log.Printf("✅ Moderation worker pool started (%d workers, queue %d)", cfg.WorkerCount, cfg.QueueSize)

	// Prune old audit rows once a day.
	go runEvidenceCleanup(ctx, evidence, logger)

	h := &handlers.Handler{
		Config:     cfg,
		Logger:     logger,
		Redis:      database.RedisClient,
		Engine:     engine,
		Pool:       pool,
		Tracker:    tracker,
		Resolver:   resolver,
		Accounts:   accounts,
		Comments:   comments,
		Suspicious: suspicious,
		Lists:      lists,
		Settings:   settings,
		Evidence:   evidence,
		Embeddings: embeddings,
		Billing:    billingSvc,
		Hub:        hub,
	}

	r := chi.NewRouter()
	routes.SetupRoutes(r, h, cfg, database.RedisClient)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}

	// Drain queued comments before closing connections.
	pool.Wait()
	log.Println("✅ Shutdown complete")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func runEvidenceCleanup(ctx context.Context, evidence *store.EvidenceStore, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := evidence.DeleteOlderThan(ctx, time.Now().Add(-evidenceRetention))
			if err != nil {
				logger.Warn("evidence cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("pruned old evidence records", zap.Int64("removed", n))
			}
		}
	}
}
