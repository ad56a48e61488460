// Command server starts the resume matcher HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"github.com/hirewise/resume-matcher/internal/adapter/ai"
	"github.com/hirewise/resume-matcher/internal/adapter/enrich"
	"github.com/hirewise/resume-matcher/internal/adapter/httpserver"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/adapter/repo/postgres"
	"github.com/hirewise/resume-matcher/internal/adapter/textextractor/docparse"
	"github.com/hirewise/resume-matcher/internal/app"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
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

	ctx := context.Background()
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
	requirementRepo := postgres.NewRequirementRepo(pool)
	matchRepo := postgres.NewMatchRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)
	auditRepo := postgres.NewAuditRepo(pool)

	aiClient := ai.New(cfg)
	extractor := docparse.New()

	enrichers := []domain.Enricher{
		enrich.NewGitHubEnricher(profileRepo, cfg.GitHubToken, cfg.GitHubBaseURL, cfg.EnrichTimeout),
		enrich.NewLinkedInEnricher(profileRepo),
		enrich.NewTwitterEnricher(profileRepo, cfg.TwitterBearerToken, cfg.TwitterBaseURL, cfg.EnrichTimeout),
		enrich.NewTavilyEnricher(profileRepo, cfg.TavilyAPIKey, cfg.TavilyBaseURL, cfg.EnrichTimeout),
	}

	pipeline := usecase.NewPipeline(cfg, prompts, queueRepo, trackerRepo, candidateRepo, embeddingRepo, aiClient, extractor)
	ingestSvc := usecase.NewIngestService(cfg, queueRepo, trackerRepo, pipeline)
	enrichSvc := usecase.NewEnrichmentService(cfg, candidateRepo, profileRepo, enrichers)
	matchSvc := usecase.NewMatchingService(cfg, prompts, aiClient, candidateRepo, requirementRepo, matchRepo, auditRepo, enrichSvc)
	searchSvc := usecase.NewSearchService(cfg, aiClient, embeddingRepo, candidateRepo)

	srv := httpserver.NewServer(cfg, ingestSvc, enrichSvc, matchSvc, searchSvc, pool.Ping)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
