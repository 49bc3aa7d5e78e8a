package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LocalQueue is a fallback queue used when Redis is not configured. Delay is
// implemented with in-process timers, so delayed tasks do not survive a
// restart; the scheduler bootstrap re-seeds the loop on startup either way.
type LocalQueue struct {
	ch          chan Task
	maxAttempts int
	logger      *zap.Logger

	mu      sync.Mutex
	pending map[Kind]int
	dlq     []Task
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *zap.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan Task, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
		pending:     make(map[Kind]int),
	}
}

func (q *LocalQueue) Close() error { return nil }

func (q *LocalQueue) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	q.pending[task.Kind]++
	q.mu.Unlock()

	if delay <= 0 {
		select {
		case <-ctx.Done():
			q.forget(task.Kind)
			return ctx.Err()
		case q.ch <- task:
			return nil
		}
	}

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			q.forget(task.Kind)
		case <-timer.C:
			q.ch <- task
		}
	}()
	return nil
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, Task) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-q.ch:
			q.forget(task.Kind)

			err := handler(ctx, task)
			if err == nil {
				continue
			}

			task.Attempt++
			if task.Attempt >= q.maxAttempts {
				q.mu.Lock()
				q.dlq = append(q.dlq, task)
				q.mu.Unlock()
				if q.logger != nil {
					q.logger.Warn("local queue moved task to DLQ",
						zap.String("task_kind", string(task.Kind)),
						zap.String("export_id", task.ExportID),
						zap.Error(err))
				}
				continue
			}

			retryDelay := time.Duration(task.Attempt) * 500 * time.Millisecond
			_ = q.Enqueue(ctx, task, retryDelay)
		}
	}
}

func (q *LocalQueue) HasPending(ctx context.Context, kind Kind) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[kind] > 0, nil
}

// DLQSize reports dead-lettered tasks; useful in tests and health output.
func (q *LocalQueue) DLQSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dlq)
}

func (q *LocalQueue) forget(kind Kind) {
	q.mu.Lock()
	if q.pending[kind] > 0 {
		q.pending[kind]--
	}
	q.mu.Unlock()
}
