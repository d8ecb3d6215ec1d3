package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"filevc/internal/api"
	"filevc/internal/config"
	"filevc/internal/diff"
	"filevc/internal/engine"
	"filevc/internal/logging"
	"filevc/internal/metrics"
	"filevc/internal/middleware"
	"filevc/internal/storage"
	"filevc/internal/watch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// loadConfig reads the file selected by FILEVC_ENV, falling back to defaults
// when it does not exist.
func loadConfig() (*config.Config, error) {
	path := config.Path()
	cfg, err := config.Load(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(store,
		engine.WithLogger(logger.Logger),
		engine.WithMetrics(metrics.New(registry)),
		engine.WithDiffEngine(diff.NewEngine(cfg.Diff.ContextLines)),
	)

	loaded, err := eng.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	logger.Info("workspace ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("files", loaded),
	)

	mux := http.NewServeMux()
	api.NewHandler(eng, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: middleware.Chain(
			mux,
			middleware.RequestID,
			middleware.Logger(logger),
			middleware.Recover(logger),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	if fsStore, ok := store.(*storage.FSStore); ok && cfg.Watch.Enabled {
		watcher, err := watch.New(fsStore, eng, cfg.Watch.Debounce, logger.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the configured durable store and whatever needs closing
// with it.
func openStore(cfg *config.Config) (storage.Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case "badger":
		db, err := storage.OpenBadger(cfg.Storage.Path, cfg.Storage.InMemory)
		if err != nil {
			return nil, nil, err
		}

		compression := storage.DefaultCompressionOptions()
		compression.MinSize = cfg.Storage.Compression.MinSize
		compression.Level = cfg.Storage.Compression.Level

		store, err := storage.NewBadgerStore(db, storage.BadgerOptions{
			CacheSize:   cfg.Storage.CacheSize,
			Compression: compression,
		})
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, closerFunc(func() error {
			store.Close()
			return db.Close()
		}), nil

	case "memory":
		return storage.NewMemoryStore(), nopCloser{}, nil

	default:
		store, err := storage.NewFSStore(cfg.Storage.Root, cfg.Watch.IgnoreDirs)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
