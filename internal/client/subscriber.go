package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
)

// SnapshotHandler receives every decoded order snapshot from the update
// topic, in partition order per order id.
type SnapshotHandler func(snapshot orders.Order)

// Subscriber tails the order update topic and feeds snapshots to a handler.
type Subscriber struct {
	reader  *kafka.Reader
	handler SnapshotHandler
	logger  *zap.Logger
}

func NewSubscriber(brokers []string, groupID string, handler SnapshotHandler, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          orders.OrderUpdatesTopic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			MaxWait:        3 * time.Second,
		}),
		handler: handler,
		logger:  logger,
	}
}

// Run blocks until the context is cancelled, delivering snapshots as they
// arrive. Decode failures are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("subscriber started", zap.String("topic", orders.OrderUpdatesTopic))

	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("subscriber stopping")
				return nil
			}
			s.logger.Error("failed to read message", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		var snapshot orders.Order
		if err := json.Unmarshal(m.Value, &snapshot); err != nil {
			s.logger.Error("failed to decode order snapshot",
				zap.String("key", string(m.Key)),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			continue
		}

		s.handler(snapshot)
	}
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}
