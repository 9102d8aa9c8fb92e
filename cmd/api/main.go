package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/store"
	"go.uber.org/zap"
)

func main() {
	issueRole := flag.String("issue-token", "", "print a staff token for the given role (admin|support) and exit")
	staffEmail := flag.String("staff-email", "ops@storefront.local", "email embedded in an issued staff token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var tokens *auth.TokenService
	if cfg.JWT.Secret != "" {
		tokens = auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	}

	if *issueRole != "" {
		if tokens == nil {
			logger.Fatal("JWT_SECRET is required to issue staff tokens")
		}
		token, expiresAt, err := tokens.Issue(*staffEmail, *staffEmail, *issueRole)
		if err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting order API",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("order_store", cfg.OrderStore),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
	)

	repo, closeRepo, err := openOrderStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open order store", zap.Error(err))
	}
	defer closeRepo()

	var publisher order.Publisher
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	orderSvc := order.NewService(repo, publisher, logger)
	handlers := api.NewHandlers(orderSvc, logger)

	var validator middleware.TokenValidator
	if tokens != nil {
		validator = tokens
	} else {
		logger.Warn("JWT_SECRET not set, admin routes are disabled")
	}
	router := api.NewRouter(handlers, validator, logger, 30*time.Second)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func openOrderStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (order.Repository, func(), error) {
	switch cfg.OrderStore {
	case config.OrderStoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		db, err := store.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewMongoOrderStore(db)
		if err := repo.CreateIndexes(connectCtx); err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
		return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	case config.OrderStorePostgres:
		db, err := store.ConnectPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewPostgresOrderStore(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL")
		return repo, func() { db.Close() }, nil

	case config.OrderStoreDynamo:
		client, err := store.ConnectDynamoDB(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewDynamoOrderStore(client, cfg.Dynamo.Table)
		if err := repo.EnsureTable(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to DynamoDB", zap.String("table", cfg.Dynamo.Table))
		return repo, func() {}, nil

	default:
		logger.Warn("Using in-memory order store, orders are lost on restart")
		return store.NewMemoryOrderStore(), func() {}, nil
	}
}
