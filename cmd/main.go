package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/the-vibe-thread/admin-orders/internal/db"
	"github.com/the-vibe-thread/admin-orders/internal/kafka"
	"github.com/the-vibe-thread/admin-orders/internal/logger"
	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository/postgresql"
	"github.com/the-vibe-thread/admin-orders/internal/server"
)

const defaultPort = "9000"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.New()
	defer func() { _ = log.Sync() }()

	db.LoadEnv()

	dbPool, err := db.NewDb(ctx)
	if err != nil {
		log.Fatal("database init error", zap.Error(err))
	}
	defer dbPool.GetPool().Close()

	orderRepo := postgresql.NewOrderRepo(dbPool)
	historyRepo := postgresql.NewHistoryRepo(dbPool)
	outboxRepo := postgresql.NewOutboxTaskRepo()
	productRepo := postgresql.NewProductRepo(dbPool)
	userRepo := postgresql.NewUserRepo(dbPool)

	bootstrapAdmin(ctx, log, userRepo)

	storage := orders.NewPostgresStorage(dbPool, orderRepo, historyRepo, outboxRepo, productRepo, log)

	producer := kafka.NewWriterProducer(kafkaBrokers(), log)
	publisher := kafka.NewPublisher(dbPool, outboxRepo, producer, kafka.PublisherConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
	}, log)

	srv := server.New(storage, userRepo, log)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx, serverPort())
	})
	g.Go(func() error {
		publisher.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		publisher.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
	log.Info("service gracefully stopped")
}

// bootstrapAdmin seeds the admin account from env on first start. Duplicate
// inserts on restart are expected and only logged.
func bootstrapAdmin(ctx context.Context, log *zap.Logger, userRepo *postgresql.UserRepo) {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}

	if err := userRepo.CreateUser(ctx, username, password); err != nil {
		log.Info("admin user not created", zap.String("username", username), zap.Error(err))
		return
	}
	log.Info("admin user created", zap.String("username", username))
}

func serverPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return defaultPort
}

func kafkaBrokers() []string {
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		return strings.Split(brokers, ",")
	}
	return []string{"localhost:9092"}
}
