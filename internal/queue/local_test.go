package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalQueueDeliversDelayedTask(t *testing.T) {
	q := NewLocalQueue(8, 3, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	task := Task{ID: "t1", Kind: KindRunScheduler, Reschedule: true}
	if err := q.Enqueue(ctx, task, 20*time.Millisecond); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	pending, _ := q.HasPending(ctx, KindRunScheduler)
	if !pending {
		t.Error("HasPending() = false right after delayed enqueue, want true")
	}

	received := make(chan Task, 1)
	go q.Consume(ctx, func(_ context.Context, got Task) error {
		received <- got
		cancel()
		return nil
	})

	select {
	case got := <-received:
		if got.ID != "t1" || !got.Reschedule {
			t.Errorf("delivered task = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("delayed task never delivered")
	}
}

func TestLocalQueueHasPendingDropsAfterDelivery(t *testing.T) {
	q := NewLocalQueue(8, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, Task{ID: "t1", Kind: KindRunScheduler}, 0); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	done := make(chan struct{})
	go q.Consume(ctx, func(context.Context, Task) error {
		close(done)
		return nil
	})

	<-done
	// The pending count is decremented on dequeue, before the handler runs.
	if pending, _ := q.HasPending(ctx, KindRunScheduler); pending {
		t.Error("HasPending() = true after delivery, want false")
	}
}

func TestLocalQueueDeadLettersAfterMaxAttempts(t *testing.T) {
	q := NewLocalQueue(8, 2, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, Task{ID: "t1", Kind: KindGenerateExport, ExportID: "x"}, 0); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	attempts := 0
	failed := make(chan struct{})
	go q.Consume(ctx, func(context.Context, Task) error {
		attempts++
		if attempts >= 2 {
			defer close(failed)
		}
		return errors.New("boom")
	})

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("task was not retried to exhaustion, attempts=%d", attempts)
	}

	// Give the consumer a moment to record the dead letter.
	deadline := time.Now().Add(time.Second)
	for q.DLQSize() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.DLQSize() != 1 {
		t.Errorf("DLQSize() = %d, want 1", q.DLQSize())
	}
}
