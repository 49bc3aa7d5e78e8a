package worker

import (
	"context"
	"testing"
	"time"

	"go-export/internal/features/export"
	"go-export/internal/features/scheduler"
	"go-export/internal/queue"

	"go.uber.org/zap"
)

// feedQueue hands a fixed task list to the consumer and then blocks until
// the context is cancelled, like a real queue with nothing left to read.
type feedQueue struct {
	tasks []queue.Task
}

func (q *feedQueue) Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error {
	return nil
}

func (q *feedQueue) Consume(ctx context.Context, handler func(context.Context, queue.Task) error) error {
	for _, task := range q.tasks {
		handler(ctx, task)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (q *feedQueue) HasPending(ctx context.Context, kind queue.Kind) (bool, error) {
	return false, nil
}

func (q *feedQueue) Close() error { return nil }

type spyExports struct {
	export.ExportService
	generated chan string
}

func (s *spyExports) Generate(ctx context.Context, exportID string) error {
	s.generated <- exportID
	return nil
}

type spyScheduler struct {
	scheduler.SchedulerService
	ran chan bool
}

func (s *spyScheduler) Run(ctx context.Context, reschedule bool) error {
	s.ran <- reschedule
	return nil
}

func TestProcessorDispatch(t *testing.T) {
	q := &feedQueue{tasks: []queue.Task{
		queue.NewGenerateTask("abc123"),
		queue.NewSchedulerTask(true),
	}}
	exports := &spyExports{generated: make(chan string, 1)}
	sched := &spyScheduler{ran: make(chan bool, 1)}

	p := NewProcessor(q, exports, sched, zap.NewNop())
	p.Start()
	defer p.Stop()

	select {
	case id := <-exports.generated:
		if id != "abc123" {
			t.Errorf("generated export %q, want abc123", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("export task never dispatched")
	}

	select {
	case reschedule := <-sched.ran:
		if !reschedule {
			t.Error("scheduler task lost its reschedule flag")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler task never dispatched")
	}
}
