package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendsmart/internal/amqp"
	"spendsmart/internal/classify"
	"spendsmart/internal/config"
	apphttp "spendsmart/internal/http"
	"spendsmart/internal/importer"
	"spendsmart/internal/insights"
	"spendsmart/internal/log"
	"spendsmart/internal/services"
	"spendsmart/internal/storage"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentApp})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	rules := classify.DefaultRules()

	var refiner classify.Refiner
	if cfg.ClassifierEnabled() {
		refiner = classify.NewOpenRouter(classify.OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.OpenRouterModel,
			BaseURL: cfg.OpenRouterBaseURL,
			Timeout: cfg.OpenRouterTimeout,
		})
		logger.Info("OpenRouter classifier enabled", "model", cfg.OpenRouterModel)
	} else {
		logger.Info("OpenRouter classifier disabled - no API key provided")
	}

	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer publisher.Close()
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, exports rely on worker polling")
	}

	txService := newTransactionService(repo, rules, refiner, publisher)
	payService := services.NewPaymentService(repo, txService)
	insightService := insights.NewService(repo)
	imp := newImporter(repo, rules, refiner, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, logger, repo, txService, payService, insightService, imp)
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting spendsmart server", "port", cfg.Port, "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// A nil *amqp.Client must become a nil interface, not a typed nil, or
// the publisher checks downstream misfire.
func newTransactionService(repo *storage.SQLiteRepository, rules *classify.RuleTable, refiner classify.Refiner, publisher *amqp.Client) *services.TransactionService {
	if publisher == nil {
		return services.NewTransactionService(repo, rules, refiner, nil)
	}
	return services.NewTransactionService(repo, rules, refiner, publisher)
}

func newImporter(repo *storage.SQLiteRepository, rules *classify.RuleTable, refiner classify.Refiner, publisher *amqp.Client) *importer.Importer {
	if publisher == nil {
		return importer.New(repo, rules, refiner, nil)
	}
	return importer.New(repo, rules, refiner, publisher)
}
