package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a task does; the payload fields it uses depend on it.
type Kind string

const (
	// KindGenerateExport runs the export pipeline for Task.ExportID.
	KindGenerateExport Kind = "generate_export"
	// KindRunScheduler runs one scheduler loop pass; Task.Reschedule controls
	// whether the pass enqueues its own successor.
	KindRunScheduler Kind = "run_scheduler"
)

// Task is the unit of queued work. It must be JSON-serializable and carry
// enough state to be re-executed statelessly on redelivery.
type Task struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ExportID   string    `json:"export_id,omitempty"`
	Reschedule bool      `json:"reschedule,omitempty"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewGenerateTask builds a task that runs the export pipeline for one export.
func NewGenerateTask(exportID string) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       KindGenerateExport,
		ExportID:   exportID,
		EnqueuedAt: time.Now(),
	}
}

// NewSchedulerTask builds a scheduler-loop task.
func NewSchedulerTask(reschedule bool) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       KindRunScheduler,
		Reschedule: reschedule,
		EnqueuedAt: time.Now(),
	}
}

// Queue is an at-least-once task queue with delayed enqueue. Handlers must be
// idempotent against redelivery.
type Queue interface {
	// Enqueue schedules a task; delay <= 0 means immediately runnable.
	Enqueue(ctx context.Context, task Task, delay time.Duration) error

	// Consume blocks, invoking handler for each delivered task, until ctx is
	// done. A handler error lets the queue decide on retry or dead-lettering.
	Consume(ctx context.Context, handler func(context.Context, Task) error) error

	// HasPending reports whether any task of the given kind is still queued
	// (ready or delayed). Used to avoid double-enqueueing the scheduler loop
	// at bootstrap.
	HasPending(ctx context.Context, kind Kind) (bool, error)

	Close() error
}
