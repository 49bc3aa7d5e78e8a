package worker

import (
	"context"
	"fmt"

	"go-export/internal/features/export"
	"go-export/internal/features/scheduler"
	"go-export/internal/queue"

	"go.uber.org/zap"
)

// Processor drains the task queue and dispatches each task to the service
// that owns its kind. One processor runs per instance; the queue's consumer
// group keeps multiple instances from double-processing.
type Processor struct {
	Queue     queue.Queue
	Exports   export.ExportService
	Scheduler scheduler.SchedulerService
	Logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewProcessor(q queue.Queue, exports export.ExportService, schedulerSvc scheduler.SchedulerService, logger *zap.Logger) *Processor {
	return &Processor{
		Queue:     q,
		Exports:   exports,
		Scheduler: schedulerSvc,
		Logger:    logger,
	}
}

func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.Queue.Consume(ctx, p.handle); err != nil && ctx.Err() == nil {
			p.Logger.Error("task consumer stopped", zap.Error(err))
		}
	}()
	p.Logger.Info("task processor started")
}

func (p *Processor) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.Logger.Info("task processor stopped")
}

func (p *Processor) handle(ctx context.Context, task queue.Task) error {
	log := p.Logger.With(
		zap.String("task_id", task.ID),
		zap.String("task_kind", string(task.Kind)),
		zap.Int("attempt", task.Attempt))

	switch task.Kind {
	case queue.KindGenerateExport:
		log.Info("processing export task", zap.String("export_id", task.ExportID))
		return p.Exports.Generate(ctx, task.ExportID)
	case queue.KindRunScheduler:
		log.Info("processing scheduler task")
		return p.Scheduler.Run(ctx, task.Reschedule)
	}
	return fmt.Errorf("unknown task kind %q", task.Kind)
}
