package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/appdotbuilder/byteser-ai-chat/internal/api"
	"github.com/appdotbuilder/byteser-ai-chat/internal/auth"
	"github.com/appdotbuilder/byteser-ai-chat/internal/config"
	"github.com/appdotbuilder/byteser-ai-chat/internal/core"
	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

func main() {
	// Command line flag for corpus ingestion
	ingestPath := flag.String("ingest", "", "Ingest a research corpus from a markdown table file and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("service", "research-chat"))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("service", "research-chat"))

	if err := run(cfg, *ingestPath); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, ingestPath string) error {
	ctx := context.Background()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var gemini *core.GeminiService
	if cfg.GeminiAPIKey != "" {
		gemini, err = core.NewGeminiService(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
		defer gemini.Close()
	}

	if ingestPath != "" {
		return ingest(ctx, db, gemini, ingestPath)
	}

	research, err := newResearchProvider(ctx, cfg, db, gemini)
	if err != nil {
		return err
	}
	if corpus, ok := research.(*core.CorpusResearchProvider); ok {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go reloadOnSignal(ctx, hup, corpus)
	}

	var responder core.ResponseGenerator = core.TemplateResponder{}
	var titler core.TitleGenerator
	if gemini != nil {
		responder = gemini
		titler = gemini
	}

	var authOpts []core.AuthOption
	if cfg.GoogleClientID != "" {
		authOpts = append(authOpts, core.WithIDTokenVerifier(auth.NewGoogleVerifier(cfg.GoogleClientID)))
	}

	apiHandler := api.NewAPIHandler(api.Services{
		Auth:          core.NewAuthService(db, cfg.SessionTTL, authOpts...),
		Conversations: core.NewConversationService(db),
		Messages:      core.NewMessageService(db),
		Research:      core.NewResearchService(db, research, responder, titler),
	})
	router := api.NewRouter(apiHandler, api.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Health:         db,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

// newResearchProvider picks the HTTP backend when configured, then the
// ingested corpus when embeddings are available, then the static provider.
func newResearchProvider(ctx context.Context, cfg *config.Config, db *store.Store, gemini *core.GeminiService) (core.ResearchProvider, error) {
	switch {
	case cfg.ResearchAPIURL != "":
		slog.Info("using http research provider", "url", cfg.ResearchAPIURL)
		return core.NewHTTPResearchProvider(cfg.ResearchAPIURL, cfg.ResearchAPIKey, cfg.ResearchMaxSources), nil
	case gemini != nil:
		slog.Info("using corpus research provider")
		return core.NewCorpusResearchProvider(ctx, db, gemini, cfg.ResearchMaxSources, cfg.ResearchMinRelevance)
	default:
		slog.Info("using static research provider")
		return core.StaticResearchProvider{}, nil
	}
}

type corpusReloader interface {
	Reload(ctx context.Context) error
}

// reloadOnSignal refreshes the cached corpus each time sig fires, so a
// running server picks up documents from a separate -ingest run.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, r corpusReloader) {
	for range sig {
		if err := r.Reload(ctx); err != nil {
			slog.Error("failed to reload research corpus", "error", err)
		}
	}
}

func ingest(ctx context.Context, db *store.Store, gemini *core.GeminiService, path string) error {
	if gemini == nil {
		return errors.New("corpus ingestion requires GEMINI_API_KEY for embeddings")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open corpus file %s: %w", path, err)
	}
	defer f.Close()

	slog.Info("starting corpus ingestion", "path", path)
	n, err := core.IngestResearchCorpus(ctx, f, gemini, db, rate.NewLimiter(core.EmbeddingRateLimit, 1))
	if err != nil {
		return fmt.Errorf("corpus ingestion failed: %w", err)
	}
	slog.Info("corpus ingestion complete", "documents", n)
	return nil
}
