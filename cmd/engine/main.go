package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/ai"
	"github.com/arborhq/arbor/internal/conversation"
	"github.com/arborhq/arbor/internal/engine"
	"github.com/arborhq/arbor/internal/patterns"
	"github.com/arborhq/arbor/internal/storage"
	"github.com/arborhq/arbor/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Store
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the provider behind the uniform contract, if configured
	var aiService *ai.Service
	switch cfg.AI.Backend {
	case "openai":
		client := ai.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Temperature)
		aiService = ai.NewService(client, logger)
		logger.Info("Using OpenAI provider", zap.String("model", cfg.AI.Model))
	case "gemini":
		client, err := ai.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		aiService = ai.NewService(client, logger)
		logger.Info("Using Gemini provider", zap.String("model", cfg.AI.Model))
	default:
		logger.Info("No AI provider configured; personalized and demo tiers only")
	}

	conv := conversation.NewManager(store, logger)
	pat := patterns.NewSystem(store, logger).
		WithTTL(time.Duration(cfg.Engine.PatternCacheHours) * time.Hour)

	eng := engine.New(store, conv, pat, aiService,
		time.Duration(cfg.Engine.PromptTimeoutHours)*time.Hour, logger)

	scheduleTicker := time.NewTicker(time.Duration(cfg.Engine.ScheduleIntervalMinutes) * time.Minute)
	defer scheduleTicker.Stop()
	cleanupTicker := time.NewTicker(time.Duration(cfg.Engine.CleanupIntervalMinutes) * time.Minute)
	defer cleanupTicker.Stop()

	logger.Info("Prompting engine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return

		case <-scheduleTicker.C:
			if generated, err := eng.ScheduleProactivePrompts(ctx); err != nil {
				logger.Error("Scheduling sweep failed", zap.Error(err))
			} else {
				logger.Info("Scheduling sweep complete", zap.Int("generated", generated))
			}

			branches, err := store.Branches(ctx)
			if err != nil {
				logger.Error("Failed to list branches for milestone check", zap.Error(err))
				continue
			}
			for _, branch := range branches {
				if created, err := eng.CheckForMilestones(ctx, branch.ID); err != nil {
					logger.Error("Milestone check failed", zap.Error(err), zap.String("branch_id", branch.ID))
				} else if created > 0 {
					logger.Info("Celebration prompts created", zap.Int("count", created), zap.String("branch_id", branch.ID))
				}
			}

		case <-cleanupTicker.C:
			if _, err := eng.CleanupExpiredPrompts(ctx); err != nil {
				logger.Error("Cleanup sweep failed", zap.Error(err))
			}
		}
	}
}
