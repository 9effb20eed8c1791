package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/db"
	mock_database "github.com/the-vibe-thread/admin-orders/internal/db/mocks"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

type stubRepo struct {
	tasks    []*repository.OutboxTask
	claimTx  db.Tx
	updates  []repository.TaskStatus
	updateTx []db.Tx
}

func (s *stubRepo) GetProcessableTasksTx(_ context.Context, tx db.Tx, _ int) ([]*repository.OutboxTask, error) {
	s.claimTx = tx
	return s.tasks, nil
}

func (s *stubRepo) UpdateTaskStatusTx(_ context.Context, tx db.Tx, _ uuid.UUID, status repository.TaskStatus, _ int, _ *string, _ *time.Time) error {
	s.updates = append(s.updates, status)
	s.updateTx = append(s.updateTx, tx)
	return nil
}

func (s *stubRepo) UpdateTaskStatus(_ context.Context, _ db.DB, _ uuid.UUID, status repository.TaskStatus, _ int, _ *string, _ *time.Time) error {
	s.updates = append(s.updates, status)
	return nil
}

type stubProducer struct {
	sent    []string
	sendErr error
}

func (s *stubProducer) SendMessage(_ context.Context, topic string, key []byte, _ []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, topic+"/"+string(key))
	return nil
}

func (s *stubProducer) Close() error { return nil }

func newPublisherFixture(t *testing.T, repo OutboxTaskRepository, producer Producer) (*Publisher, *mock_database.MockDB, *mock_database.MockTx) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	mockTx := mock_database.NewMockTx(ctrl)
	p := NewPublisher(mockDB, repo, producer, PublisherConfig{
		PollInterval: time.Millisecond,
		BatchSize:    10,
		MaxAttempts:  3,
	}, zap.NewNop())
	return p, mockDB, mockTx
}

func task(topic, key string) *repository.OutboxTask {
	return &repository.OutboxTask{
		ID:      uuid.New(),
		Status:  repository.TaskStatusCreated,
		Topic:   topic,
		Key:     key,
		Payload: []byte(`{"orderId":"` + key + `"}`),
	}
}

func TestProcessBatchPublishesClaimedTasks(t *testing.T) {
	repo := &stubRepo{tasks: []*repository.OutboxTask{
		task("order_updates", "ord-1"),
		task("order_updates", "ord-2"),
	}}
	producer := &stubProducer{}
	p, mockDB, mockTx := newPublisherFixture(t, repo, producer)

	mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
	mockTx.EXPECT().Commit(gomock.Any()).Return(nil)
	mockTx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{"order_updates/ord-1", "order_updates/ord-2"}, producer.sent)
	// Both claimed as PROCESSING inside the tx, then marked DONE after send.
	assert.Equal(t, []repository.TaskStatus{
		repository.TaskStatusProcessing, repository.TaskStatusProcessing,
		repository.TaskStatusDone, repository.TaskStatusDone,
	}, repo.updates)

	// The claim select and the PROCESSING updates share one transaction, so
	// the SKIP LOCKED row locks cover the whole claim.
	assert.Same(t, mockTx, repo.claimTx)
	assert.Same(t, mockTx, repo.updateTx[0])
	assert.Same(t, mockTx, repo.updateTx[1])
}

func TestProcessBatchEmptyOutbox(t *testing.T) {
	repo := &stubRepo{}
	producer := &stubProducer{}
	p, mockDB, mockTx := newPublisherFixture(t, repo, producer)

	mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
	mockTx.EXPECT().Commit(gomock.Any()).Return(nil)
	mockTx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

	require.NoError(t, p.processBatch(context.Background()))
	assert.Empty(t, producer.sent)
	assert.Empty(t, repo.updates)
}

func TestProcessBatchSendFailureMarksFailed(t *testing.T) {
	repo := &stubRepo{tasks: []*repository.OutboxTask{task("order_updates", "ord-1")}}
	producer := &stubProducer{sendErr: errors.New("broker unavailable")}
	p, mockDB, mockTx := newPublisherFixture(t, repo, producer)

	mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
	mockTx.EXPECT().Commit(gomock.Any()).Return(nil)
	mockTx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

	// Send failures are recorded per task, not bubbled out of the batch.
	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, []repository.TaskStatus{
		repository.TaskStatusProcessing, repository.TaskStatusFailed,
	}, repo.updates)
}
