package taskprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/qwestard/storefront/internal/repository"
)

type fakeTaskRepo struct {
	pending    []*repository.Task
	processing []int
	deleted    []int
	failures   []repository.TaskStatus
}

func (f *fakeTaskRepo) CreateTask(_ context.Context, eventData []byte) error {
	f.pending = append(f.pending, &repository.Task{ID: len(f.pending) + 1, EventData: eventData})
	return nil
}

func (f *fakeTaskRepo) GetPendingTasks(_ context.Context, limit, _ int) ([]*repository.Task, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeTaskRepo) MarkTaskProcessing(_ context.Context, taskID int) error {
	f.processing = append(f.processing, taskID)
	return nil
}

func (f *fakeTaskRepo) DeleteTask(_ context.Context, taskID int) error {
	f.deleted = append(f.deleted, taskID)
	return nil
}

func (f *fakeTaskRepo) UpdateTaskFailure(_ context.Context, _ int, _ int, newStatus repository.TaskStatus, _ time.Time) error {
	f.failures = append(f.failures, newStatus)
	return nil
}

type fakeProducer struct {
	published [][]byte
	err       error
}

func (f *fakeProducer) Publish(_ string, message []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, message)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestProcessPendingTasksPublishesAndDeletes(t *testing.T) {
	repo := &fakeTaskRepo{}
	require.NoError(t, repo.CreateTask(context.Background(), []byte(`{"order_id":"o1"}`)))
	producer := &fakeProducer{}
	p := NewTaskProcessor(repo, producer, "order-events", time.Second, 10)

	p.processPendingTasks(context.Background())

	require.Len(t, producer.published, 1)
	assert.Equal(t, `{"order_id":"o1"}`, string(producer.published[0]))
	assert.Equal(t, []int{1}, repo.processing)
	assert.Equal(t, []int{1}, repo.deleted)
	assert.Empty(t, repo.failures)
}

func TestProcessPendingTasksRetriesOnPublishFailure(t *testing.T) {
	repo := &fakeTaskRepo{}
	require.NoError(t, repo.CreateTask(context.Background(), []byte("x")))
	producer := &fakeProducer{err: errors.New("broker down")}
	p := NewTaskProcessor(repo, producer, "order-events", time.Second, 10)

	p.processPendingTasks(context.Background())

	assert.Empty(t, repo.deleted)
	require.Len(t, repo.failures, 1)
	assert.Equal(t, repository.TaskStatusFailed, repo.failures[0])
}

func TestProcessPendingTasksExhaustsAttempts(t *testing.T) {
	repo := &fakeTaskRepo{}
	repo.pending = append(repo.pending, &repository.Task{ID: 1, AttemptCount: 2, EventData: []byte("x")})
	producer := &fakeProducer{err: errors.New("broker down")}
	p := NewTaskProcessor(repo, producer, "order-events", time.Second, 10)

	p.processPendingTasks(context.Background())

	require.Len(t, repo.failures, 1)
	assert.Equal(t, repository.TaskStatusNoAttemptsLeft, repo.failures[0])
}
