package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/churn/artifacts"
	"github.com/liamcoop/churn/config"
	"github.com/liamcoop/churn/internal/logger"
	"github.com/liamcoop/churn/metrics"
)

// openStore returns the artifact store selected by cfg and a close function
func openStore(cfg *config.Config) (artifacts.Store, func(), error) {
	switch cfg.ArtifactSource {
	case config.SourcePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return artifacts.NewPostgresStore(db), func() { db.Close() }, nil
	default:
		return artifacts.NewFileStore(cfg.ArtifactDir), func() {}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	if err := logger.Setup(context.Background(), logger.Options{
		Level:       level,
		OTELEnabled: cfg.OTELEnabled,
		ServiceName: cfg.OTELServiceName,
		SampleRate:  cfg.ErrorSampleRate,
	}); err != nil {
		logger.Warn("logger setup degraded", "error", err)
	}
	defer logger.Shutdown(context.Background())

	logger.Info("configuration loaded",
		"app", cfg.AppName,
		"version", cfg.Version,
		"artifact_source", cfg.ArtifactSource,
		"model", cfg.ModelName,
	)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open artifact store", "error", err)
	}
	defer closeStore()

	bundle, err := artifacts.Load(store, cfg.ModelName)
	if err != nil {
		logger.Fatal("failed to load model artifacts", "model", cfg.ModelName, "error", err)
	}
	logger.Info("model loaded",
		"model", bundle.Model,
		"preprocessor", bundle.PreprocessorInfo.Version,
		"classifier", bundle.ClassifierInfo.Kind+"@"+bundle.ClassifierInfo.Version,
	)

	server, err := NewServer(cfg, bundle, metrics.NewRegistry())
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
