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

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/di"
	"github.com/upgrade-events/Upgrade-Events/internal/notify"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
	"github.com/upgrade-events/Upgrade-Events/migrations"
	"github.com/upgrade-events/Upgrade-Events/pkg/config"
	"github.com/upgrade-events/Upgrade-Events/pkg/database"
	"github.com/upgrade-events/Upgrade-Events/pkg/kafka"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/redis"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = cfg.App.Name
	logCfg.Development = cfg.IsDevelopment()
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, database.FromAppConfig(cfg.Database))
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if err := migrations.Apply(ctx, db.Pool()); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	containerCfg := &di.ContainerConfig{Config: cfg, DB: db}

	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, redis.FromAppConfig(cfg.Redis))
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		containerCfg.Redis = rdb
	} else {
		logger.Warn("redis disabled, staff sessions are kept in process memory")
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			logger.Fatal("failed to connect to kafka", zap.Error(err))
		}
		containerCfg.Producer = producer
	}

	if cfg.Storage.Enabled {
		objects, err := storage.NewCloudinaryStorage(cfg.Storage)
		if err != nil {
			logger.Fatal("failed to initialize object storage", zap.Error(err))
		}
		containerCfg.Storage = objects
	}

	if cfg.SMTP.Enabled {
		containerCfg.Mailer = notify.NewSMTPMailer(cfg.SMTP)
	}

	container := di.NewContainer(containerCfg)
	defer container.Close()

	if err := container.ExpiryWorker.Start(ctx); err != nil {
		logger.Fatal("failed to start expiry worker", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      container.Router(cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	if err := container.ExpiryWorker.Stop(); err != nil {
		logger.Error("expiry worker shutdown", zap.Error(err))
	}
	cancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", zap.Error(err))
	}
}
