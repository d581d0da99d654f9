package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shared-basket/internal/app"
	"shared-basket/internal/catalog"
	"shared-basket/internal/config"
	"shared-basket/internal/database"
	"shared-basket/internal/familysync"
	"shared-basket/internal/httpapi"
	"shared-basket/internal/importer"
	"shared-basket/internal/llm"
	"shared-basket/internal/logger"
	"shared-basket/internal/metrics"
	"shared-basket/internal/oracle"
	"shared-basket/internal/pricecache"
	"shared-basket/internal/share"
	"shared-basket/internal/storage"
	"shared-basket/internal/telegram"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "basket-server"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		WarnStack:   cfg.LogWarnStack,
	})

	ctx := context.Background()

	if cfg.CatalogFile != "" {
		if _, err := catalog.LoadOverrides(cfg.CatalogFile); err != nil {
			logg.Error(ctx, "failed to load catalog overrides", err)
			os.Exit(1)
		}
	}

	// 2. Storage
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logg.Error(ctx, "failed to initialize database", err)
		os.Exit(1)
	}
	defer db.Close()
	if version, dirty, err := db.SchemaVersion(); err != nil {
		logg.Warn(ctx, "failed to read schema version", err)
	} else if dirty {
		logg.Warn(logg.WithField(ctx, "schema_version", version), "database schema is dirty", nil)
	}

	local, err := openLocalStore(cfg, db)
	if err != nil {
		logg.Error(ctx, "failed to initialize state store", err)
		os.Exit(1)
	}

	remote, closeRemote, err := openRemote(ctx, cfg)
	if err != nil {
		logg.Error(ctx, "failed to connect family remote", err)
		os.Exit(1)
	}
	defer closeRemote()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promCollectors := metrics.NewCollectors(registry)
	metricsStore := metrics.NewStore(db.SQL)
	recorder := metrics.NewCallRecorder(metricsStore, promCollectors, logg)

	// 4. LLMs
	textGen, err := newTextGenerator(ctx, cfg)
	if err != nil {
		logg.Error(ctx, "failed to create model clients", err)
		os.Exit(1)
	}
	defer textGen.Close()

	// 5. Services
	facade := familysync.NewFacade(familysync.Options{
		Local:    local,
		Remote:   remote,
		Debounce: cfg.SyncDebounce,
		Observer: promCollectors,
		Logger:   logg,
	})

	basketApp := app.New(app.Options{
		Oracle:          oracle.New(textGen, oracle.WithRecorder(recorder), oracle.WithLogger(logg)),
		Sync:            facade,
		Cache:           pricecache.New(pricecache.WithTTL(cfg.CacheTTL), pricecache.WithRecorder(promCollectors)),
		Importer:        importer.New(textGen),
		Links:           share.New(cfg.ShareBaseURL, cfg.ShareSecret),
		Recorder:        recorder,
		Logger:          logg,
		SuggestDebounce: cfg.SuggestDebounce,
	})
	if err := basketApp.Load(ctx); err != nil {
		logg.Error(ctx, "failed to load saved list", err)
		os.Exit(1)
	}
	defer basketApp.Close()

	deps := httpapi.Deps{
		Basket:  basketApp,
		Logger:  logg,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	// 6. Telegram Bot (optional)
	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg, basketApp, metricsStore, logg)
		if err != nil {
			logg.Error(ctx, "failed to initialize telegram bot", err)
			os.Exit(1)
		}
		deps.Telegram = bot
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx := logg.WithFields(ctx, map[string]any{
		"addr":      srv.Addr,
		"telegram":  deps.Telegram != nil,
		"remote":    facade.RemoteEnabled(),
		"state_dir": cfg.StateDir,
	})
	go func() {
		logg.Info(serverCtx, "server.listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "server stopped unexpectedly", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info(serverCtx, "server.shutting_down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logg.Error(serverCtx, "server forced to shutdown", err)
	}

	logg.Info(serverCtx, "server.exited")
}

func openLocalStore(cfg *config.Config, db *database.DB) (storage.BlobStore, error) {
	if cfg.StateBackend == config.BackendFile {
		return storage.NewFileStore(cfg.StateDir)
	}
	return storage.NewSQLStore(db.SQL), nil
}

// openRemote returns a nil Remote when no family backend is configured.
func openRemote(ctx context.Context, cfg *config.Config) (familysync.Remote, func(), error) {
	switch {
	case cfg.RedisURL != "":
		r, err := familysync.NewRedisRemote(ctx, cfg.RedisURL)
		if err != nil {
			return nil, func() {}, err
		}
		return r, func() { _ = r.Close() }, nil
	case cfg.KVURL != "":
		return familysync.NewKVRemote(cfg.KVURL), func() {}, nil
	}
	return nil, func() {}, nil
}

// newTextGenerator chains the configured providers, Gemini first.
func newTextGenerator(ctx context.Context, cfg *config.Config) (*llm.FallbackGenerator, error) {
	var gens []llm.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gens = append(gens, gemini)
	}
	if cfg.GroqAPIKey != "" {
		gens = append(gens, llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel))
	}
	return llm.NewFallbackGenerator(gens...), nil
}
