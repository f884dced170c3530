package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"veracity/internal/analysis"
	"veracity/internal/archive"
	"veracity/internal/classifier"
	"veracity/internal/config"
	"veracity/internal/deception"
	"veracity/internal/extract"
	"veracity/internal/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the veracity HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "veracity.yaml", "config file path")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	// Refuse to serve with incomplete locale copy.
	if err := deception.ValidateCopy(); err != nil {
		return fmt.Errorf("copy tables: %w", err)
	}

	var store *archive.Store
	if cfg.Archive.Path != "" {
		store, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
	}

	remote, err := classifier.New(classifier.Config{
		Provider: cfg.Classifier.Provider,
		Endpoint: cfg.Classifier.Endpoint,
		APIKey:   cfg.Classifier.APIKey(),
		Model:    cfg.Classifier.Model,
		Timeout:  cfg.Classifier.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	svc := analysis.New(analysis.Options{
		Remote:    remote,
		Archive:   store,
		Logger:    logger,
		Metrics:   analysis.NewMetrics(registry),
		Timeout:   cfg.Classifier.Timeout(),
		RateLimit: rate.Limit(cfg.Classifier.RateLimitRPS),
		RateBurst: cfg.Classifier.RateBurst,
	})

	provider := ""
	if remote != nil {
		provider = remote.Name()
	}
	srv := server.New(server.Options{
		Analysis:  svc,
		Extractor: extract.New(cfg.Extraction.MaxChars),
		Archive:   store,
		Logger:    logger,
		Registry:  registry,
		Mode:      cfg.Server.Mode,
		MaxUpload: cfg.Server.MaxUploadBytes,
		Locale:    cfg.Locale,
		Provider:  provider,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("veracity listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("classifier", providerOr(provider)),
			zap.Bool("archive", store != nil),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func providerOr(provider string) string {
	if provider == "" {
		return "heuristic-only"
	}
	return provider
}
