package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custodian/internal/api"
	"custodian/internal/config"
	"custodian/internal/events/kafka"
	"custodian/internal/ledger"
	"custodian/internal/market"
	"custodian/internal/repository"
	"custodian/internal/repository/memory"
	"custodian/internal/repository/postgres"
	"custodian/internal/scheduler"
	"custodian/internal/service"
	"custodian/pkg/crypto"
	"custodian/pkg/metrics"
)

const (
	appName = "custodian"
)

func main() {
	logger := setupLogger()
	logger.Info("Starting application",
		slog.String("name", appName))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := setupStore(cfg, logger)
	if err != nil {
		logger.Error("Store setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	collector := metrics.NewCollector(logger)
	hasher := crypto.NewHasher(cfg.BcryptCost, logger)
	pins := ledger.NewPinGuard(store.Accounts(), hasher, logger)
	notifications := service.NewNotificationService(
		&service.MockEmailService{},
		&service.MockSMSService{},
		cfg.NotificationWorkers,
		logger,
	)

	var publisher *kafka.Publisher
	var events ledger.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		events = publisher
		logger.Info("Kafka publisher enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic))
	}

	oracle, board := setupOracle(cfg, logger)
	engine := ledger.NewEngine(store, oracle, pins, notifications, events, logger)

	subscriptions := scheduler.NewSubscriptionScheduler(engine, store, cfg.SubscriptionPeriod, collector, logger)
	bot := scheduler.NewAutoInvestBot(engine, store, oracle, cfg.AutoInvestPeriod, collector, logger)

	schedCtx, stopSchedulers := context.WithCancel(context.Background())
	go subscriptions.Run(schedCtx)
	go bot.Run(schedCtx)

	apiHandler := api.NewAPIHandler(engine, bot, board, collector, logger)
	metricsServer := collector.StartMetricsServer(cfg.MetricsAddr)
	httpServer := startHTTPServer(cfg.HTTPAddr, apiHandler, logger)

	waitForShutdown(logger, httpServer, metricsServer, notifications, publisher, stopSchedulers)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupStore(cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("Using in-memory store")
		return memory.NewStore(), nil
	}

	store, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")
	return store, nil
}

func setupOracle(cfg *config.Config, logger *slog.Logger) (ledger.Oracle, api.PriceBoard) {
	if cfg.PriceSource == "yahoo" {
		logger.Info("Using Yahoo Finance price source")
		return market.NewYahooOracle(logger), nil
	}
	oracle := market.NewStaticOracle()
	return oracle, oracle
}

func startHTTPServer(addr string, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	notifications *service.NotificationService,
	publisher *kafka.Publisher,
	stopSchedulers context.CancelFunc,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	stopSchedulers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := notifications.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown failed", slog.String("error", err.Error()))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("Kafka publisher close failed", slog.String("error", err.Error()))
		}
	}
}
