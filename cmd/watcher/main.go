package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/cache"
	"github.com/the-vibe-thread/admin-orders/internal/client"
	"github.com/the-vibe-thread/admin-orders/internal/logger"
	"github.com/the-vibe-thread/admin-orders/internal/orders"
)

const groupID = "order-updates-watcher"

// watcher tails the order update topic and maintains an in-memory mirror of
// the latest snapshot per order, discarding anything stale.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.New()
	defer func() { _ = log.Sync() }()

	orderCache := cache.NewOrderCache()

	subscriber := client.NewSubscriber(kafkaBrokers(), groupID, func(snapshot orders.Order) {
		if orderCache.Apply(snapshot) {
			log.Info("snapshot applied",
				zap.String("order_id", snapshot.OrderID),
				zap.Int64("revision", snapshot.Revision),
				zap.String("status", snapshot.Status),
				zap.Int("cached_orders", orderCache.Len()))
			return
		}
		log.Info("stale snapshot discarded",
			zap.String("order_id", snapshot.OrderID),
			zap.Int64("revision", snapshot.Revision))
	}, log)
	defer func() {
		if err := subscriber.Close(); err != nil {
			log.Error("failed to close subscriber", zap.Error(err))
		}
	}()

	if err := subscriber.Run(ctx); err != nil {
		log.Fatal("subscriber exited with error", zap.Error(err))
	}
	log.Info("watcher stopped")
}

func kafkaBrokers() []string {
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		return strings.Split(brokers, ",")
	}
	return []string{"localhost:9092"}
}
