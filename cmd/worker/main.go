// Command worker runs the queue scheduler: claiming resume jobs,
// recovering stale work, pruning old rows, and serving /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hirewise/resume-matcher/internal/adapter/ai"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/adapter/repo/postgres"
	"github.com/hirewise/resume-matcher/internal/adapter/textextractor/docparse"
	"github.com/hirewise/resume-matcher/internal/app"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	prompts, err := config.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		slog.Error("prompts load failed", slog.Any("error", err))
		os.Exit(1)
	}

	queueRepo := postgres.NewQueueRepo(pool)
	trackerRepo := postgres.NewTrackerRepo(pool)
	candidateRepo := postgres.NewCandidateRepo(pool)
	embeddingRepo := postgres.NewEmbeddingRepo(pool)

	pipeline := usecase.NewPipeline(cfg, prompts, queueRepo, trackerRepo, candidateRepo, embeddingRepo, ai.New(cfg), docparse.New())
	scheduler := app.NewScheduler(cfg, queueRepo, pipeline, cfg.WorkerID)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		slog.Info("metrics server starting", slog.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler stopped", slog.Any("error", err))
	}
	_ = metricsSrv.Shutdown(context.Background())
}
