package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/textforge/humanizer-back/internal/analysis"
	"github.com/textforge/humanizer-back/internal/config"
	"github.com/textforge/humanizer-back/internal/detect"
	httpserver "github.com/textforge/humanizer-back/internal/http"
	"github.com/textforge/humanizer-back/internal/http/handlers"
	"github.com/textforge/humanizer-back/internal/pipeline"
	"github.com/textforge/humanizer-back/internal/repository"
	"github.com/textforge/humanizer-back/internal/service"
	"github.com/textforge/humanizer-back/internal/strategy"
)

func main() {
	logger := log.New(os.Stdout, "[humanizer] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, jobsCloser := setupJobsRepository(ctx, cfg, logger)
	defer jobsCloser()

	checkpoints, checkpointsCloser := setupCheckpointRepository(ctx, cfg, logger)
	defer checkpointsCloser()

	scorer := detect.NewScorer(detect.ScorerConfig{
		BaseURL:      cfg.DetectorBaseURL,
		AuthToken:    cfg.DetectorAuthToken,
		Timeout:      time.Duration(cfg.DetectorTimeoutMS) * time.Millisecond,
		MaxRetries:   cfg.DetectorMaxRetries,
		DefaultScore: cfg.DetectorDefaultScore,
		CacheTTL:     time.Duration(cfg.ScoreCacheTTLSeconds) * time.Second,
		CacheEntries: cfg.ScoreCacheMaxEntries,
	})
	if !scorer.Available() {
		logger.Printf("DETECTOR_BASE_URL not configured, detection scores will use the fallback default")
	}

	orchestrator := pipeline.NewOrchestrator(
		pipeline.Config{
			MaxChunkWords:         cfg.MaxChunkWords,
			OverlapSentences:      cfg.ChunkOverlapSentences,
			Parallelism:           cfg.Parallelism,
			ProgressIntervalWords: cfg.ProgressIntervalWords,
			CheckpointEvery:       cfg.CheckpointEveryChunks,
			MemoryThreshold:       float64(cfg.MemoryThresholdPct) / 100,
			MinChunkWords:         cfg.MinChunkWords,
			TailSentences:         cfg.TailSentences,
			PassThreshold:         cfg.DetectorThreshold,
		},
		analysis.NewAnalyzer(),
		strategy.NewEngine(),
		scorer,
		checkpoints,
		logger,
	)

	transforms := service.NewTransformService(
		orchestrator,
		jobs,
		time.Duration(cfg.JobTimeoutMinutes)*time.Minute,
		logger,
	)
	api := handlers.NewAPI(transforms)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    splitOrigins(cfg.CORSOrigins),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupJobsRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.JobsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory job repository")
		return repository.NewMemoryJobsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresJobsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryJobsRepository(), func() {}
	}
	logger.Printf("postgres job repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupCheckpointRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.CheckpointRepository, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, checkpoints held in memory only")
		return repository.NewMemoryCheckpointRepository(), func() {}
	}

	redisRepo, err := repository.NewRedisCheckpointRepository(ctx, repository.RedisCheckpointConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      time.Duration(cfg.CheckpointTTLHours) * time.Hour,
	})
	if err != nil {
		logger.Printf("failed to initialize redis checkpoints, fallback to memory: %v", err)
		return repository.NewMemoryCheckpointRepository(), func() {}
	}
	logger.Printf("redis checkpoint repository initialized")
	return redisRepo, func() {
		_ = redisRepo.Close()
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
