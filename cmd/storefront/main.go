// Command storefront is a terminal shopping client: it keeps the cart,
// pending items and session in a durable profile and places orders against
// the order API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/infrastructure/localstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg.Client)
	if err != nil {
		logger.Fatal("Failed to open profile storage", zap.Error(err))
	}
	defer closeStorage()

	a := newApp(ctx, appConfig{
		storage:      storage,
		apiURL:       cfg.Client.APIURL,
		timeout:      cfg.Client.RequestTimeout,
		pollInterval: cfg.Client.PollInterval,
		out:          os.Stdout,
		logger:       logger,
	})

	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		logger.Sync()
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg config.ClientConfig) (localstore.Storage, func(), error) {
	switch cfg.Storage {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return localstore.NewRedis(client, cfg.Profile), func() { client.Close() }, nil
	default:
		f, err := localstore.NewFile(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}
