package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"post_keeper/internal/config"
	"post_keeper/internal/ingest"
	"post_keeper/internal/poller"
	"post_keeper/internal/publisher"
	"post_keeper/internal/storage/memory"
	"post_keeper/internal/storage/postgres"
	"post_keeper/internal/telegram"
	transport "post_keeper/internal/transport/http"
	"post_keeper/internal/transport/http/handler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize post store
	var store ingest.PostStore
	var pinger handler.Pinger

	switch cfg.Storage.Driver {
	case "memory":
		s := memory.NewPostStore()
		store, pinger = s, s
		logger.Info("using in-memory post store")
	default:
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		s := postgres.NewPostStore(db)
		store, pinger = s, s
	}

	// Initialize RabbitMQ publisher
	var pub ingest.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	// Initialize Bot API client
	tg := telegram.New(telegram.Config{
		BaseURL:        cfg.Telegram.BaseURL,
		Token:          cfg.Telegram.Token,
		PollTimeout:    cfg.Telegram.PollTimeout,
		Timeout:        cfg.Telegram.Timeout,
		MaxAttempts:    cfg.Telegram.Retry.MaxAttempts,
		InitialBackoff: cfg.Telegram.Retry.InitialBackoff,
		MaxBackoff:     cfg.Telegram.Retry.MaxBackoff,
	}, logger)

	// Assemble the ingestion pipeline
	coordinator := ingest.NewCoordinator(
		ingest.NewClassifier(cfg.Telegram.Channels),
		ingest.NewExtractor(cfg.Ingest),
		store,
		tg,
		pub,
		cfg.Telegram.ResolveTimeout,
		logger,
	)

	router := transport.NewRouter(cfg, &transport.Deps{
		Ingestor: coordinator,
		Store:    store,
		Pinger:   pinger,
		Logger:   logger,
	})
	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	switch cfg.Telegram.Mode {
	case "poll":
		if err := tg.DeleteWebhook(ctx, false); err != nil {
			logger.Warn("failed to delete webhook before polling", "error", err)
		}
		p := poller.New(tg, coordinator, cfg.Telegram.PollBatchSize, logger)
		go func() {
			if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("poller error", "error", err)
				cancel()
			}
		}()
	default:
		if cfg.Telegram.WebhookURL != "" {
			webhookURL := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + cfg.Server.WebhookPath
			if err := tg.SetWebhook(ctx, webhookURL); err != nil {
				logger.Error("failed to register webhook", "error", err)
				os.Exit(1)
			}
			logger.Info("webhook registered", "url", webhookURL)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting post keeper",
		"addr", cfg.Server.Addr,
		"mode", cfg.Telegram.Mode,
		"storage", cfg.Storage.Driver,
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
