package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/export"
	"github.com/blue-scarf/paystamp/internal/extract/azure"
	"github.com/blue-scarf/paystamp/internal/ingest"
	"github.com/blue-scarf/paystamp/internal/llm"
	"github.com/blue-scarf/paystamp/internal/llm/openai"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/metrics"
	"github.com/blue-scarf/paystamp/internal/parser"
	"github.com/blue-scarf/paystamp/internal/pipeline"
	"github.com/blue-scarf/paystamp/internal/server"
	"github.com/blue-scarf/paystamp/internal/stamp"
)

func main() {
	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	// Env (.env is optional)
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterPipelineMetrics()

	// Commitment catalog, with optional file watching
	cat := catalog.NewStore(cfg.Catalog.Path, nil)
	if err := cat.Load(ctx); err != nil {
		log.Fatalf("catalog load: %v", err)
	}
	log.Infow("catalog loaded", "path", cfg.Catalog.Path, "records", cat.Snapshot().Len())
	if cfg.Catalog.Watch {
		if err := cat.Watch(ctx, cfg.Catalog.WatchDebounce); err != nil {
			log.Fatalf("catalog watch: %v", err)
		}
	}

	// Session store
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = ":memory:"
		log.Warn("SESSION_DB_PATH unset; sessions will not survive a restart")
	}
	store, err := pipeline.OpenStore(dbPath, nil)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer store.Close()

	// Collaborators
	extractor := azure.NewClient(cfg.OCR.AzureEndpoint, cfg.OCR.AzureKey, cfg.OCR.Enhance, nil)
	composer, err := stamp.NewComposer(nil)
	if err != nil {
		log.Fatalf("stamp composer: %v", err)
	}
	var fallback llm.FieldExtractor
	if cfg.LLM.Enabled {
		fallback = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, nil)
		log.Infow("model-assisted recovery enabled", "model", cfg.LLM.Model)
	}

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Store:     store,
		Extractor: extractor,
		Parser:    parser.New(cfg.Stamp.OwnerName, nil),
		Matcher: match.New(match.Thresholds{
			Accept:         cfg.Match.AcceptThreshold,
			Floor:          cfg.Match.FloorThreshold,
			AmbiguityDelta: cfg.Match.AmbiguityDelta,
		}, nil),
		Catalog:  cat,
		Composer: composer,
		Fallback: fallback,
		Approver: cfg.Stamp.Approver,
	})

	// Drop-folder ingestion is optional; the HTTP API is always available.
	if cfg.Inbox.Dir != "" {
		ing := ingest.NewIngestor(orch, ingest.WatchConfig{
			Root:        cfg.Inbox.Dir,
			InitialScan: cfg.Inbox.InitialScan,
			Debounce:    cfg.Inbox.Debounce,
		}, nil)
		go func() {
			if err := ing.Run(ctx); err != nil {
				log.Errorf("inbox ingest: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(orch, cat, export.NewService(store, nil), logger, 0).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("http serving on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("stopped")
}
