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

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/api"
	"loto-rfid-backend/internal/db"
	"loto-rfid-backend/internal/dispatch"
	"loto-rfid-backend/internal/engine"
	"loto-rfid-backend/internal/logging"
	"loto-rfid-backend/internal/mqtt"
	"loto-rfid-backend/internal/store"
	"loto-rfid-backend/internal/topics"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("configuration loaded", zap.String("path", configPath))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine: lanes feed the service; the service publishes through the MQTT client.
	layout := topics.New(cfg.MQTT.TopicPrefix)
	proc := engine.NewProcessor(appStore, clock.New(), layout, cfg.Engine.SessionOpenPolicy, logger)

	var client *mqtt.Client
	publisher := engine.NewStatusPublisher(publisherFunc(func(ctx context.Context, topic string, payload []byte) error {
		return client.Publish(ctx, topic, payload)
	}), logger.Named("publisher"))
	svc := engine.NewService(proc, publisher, time.Duration(cfg.Engine.StoreTimeoutSeconds)*time.Second, logger)

	pool := dispatch.NewPool(cfg.Engine.Lanes, cfg.Engine.QueueSize, svc.Handle, logger)
	pool.Start(ctx)

	client, err = mqtt.New(cfg.MQTT, layout, pool, logger)
	if err != nil {
		logger.Fatal("failed to configure mqtt client", zap.Error(err))
	}
	connectCtx, connectCancel := context.WithTimeout(ctx, time.Duration(cfg.MQTT.ConnectTimeoutSeconds)*time.Second)
	if err := client.Connect(connectCtx); err != nil {
		// Auto-reconnect keeps trying; readiness reports the outage meanwhile.
		logger.Error("initial mqtt connection failed", zap.Error(err))
	}
	connectCancel()

	logger.Info("engine started",
		zap.Int("lanes", cfg.Engine.Lanes),
		zap.String("session_open_policy", cfg.Engine.SessionOpenPolicy),
		zap.String("topic_prefix", layout.Prefix()))

	// Initialize router
	router := api.NewRouter(api.Options{
		Store:  appStore,
		Status: publisher,
		Broker: client.Check,
		Server: cfg.Server,
		Log:    logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}

	// Stop intake first, then drain the lanes while the broker link is still up.
	client.Unsubscribe()
	pool.Stop()
	client.Close()

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server gracefully stopped")
}

type publisherFunc func(ctx context.Context, topic string, payload []byte) error

func (f publisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}
