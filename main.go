package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/services"
	"catalog/internal/tracing"
	"catalog/internal/worker"
	"catalog/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(logger.Options{Service: cfg.AppName, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("catalog worker stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	// --- Tracing ---
	if cfg.TraceStdout {
		shutdownTracing, err := tracing.Setup(cfg.AppName, os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				zl.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	// --- RabbitMQ ---
	var (
		mqClient *rabbitmq.Client
		opts     []services.Option
	)
	if cfg.RabbitMQEnabled {
		client, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:                cfg.RabbitMQURL,
			Exchange:           cfg.EventsExchange,
			Queue:              cfg.CommandQueue,
			DeadLetterExchange: cfg.DeadLetterExchange,
		}, zl)
		if err != nil {
			return err
		}
		defer client.Close()
		mqClient = client
		opts = append(opts, services.WithPublisher(events.NewPublisher(client, cfg.EventsExchange)))
	}

	// --- Catalog ---
	catalogApp, err := app.New(ctx, cfg, zl, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := catalogApp.Close(context.Background()); err != nil {
			zl.Warn("failed to close storage", zap.Error(err))
		}
	}()

	products, err := catalogApp.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	zl.Info("catalog ready", zap.String("driver", cfg.StorageDriver), zap.Int("products", len(products)))

	if mqClient == nil {
		zl.Info("no command queue configured, exiting")
		return nil
	}

	// --- Command consumer ---
	consumeCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := worker.NewCommandHandler(catalogApp.Catalog, zl)
	done, err := mqClient.Consume(consumeCtx, cfg.CommandQueue, handler.HandleDelivery)
	if err != nil {
		return err
	}

	select {
	case <-consumeCtx.Done():
		zl.Info("shutting down, draining command consumer")
	case <-done:
		return errors.New("command consumer stopped unexpectedly")
	}

	// Storage is closed by the deferred calls above, after the consumer
	// has finished with it.
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		zl.Warn("command consumer did not stop in time")
	}
	return nil
}
