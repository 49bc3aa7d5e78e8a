package scheduler

import (
	"context"
	"time"

	"go-export/internal/features/export"
	"go-export/internal/features/report"
	"go-export/internal/features/retention"
	"go-export/internal/features/settings"
	"go-export/internal/queue"
	"go-export/internal/schedule"

	"go.uber.org/zap"
)

type SchedulerService interface {
	// Run executes one scheduler pass: generate exports for every due
	// report, stamp schedule state, clean up stale exports, then enqueue
	// the next pass when reschedule is set.
	Run(ctx context.Context, reschedule bool) error

	// Bootstrap enqueues the first scheduler task unless one is already
	// queued, so restarts never stack loops.
	Bootstrap(ctx context.Context) error
}

type SchedulerServiceImpl struct {
	Settings  settings.SettingsService
	Reports   report.ReportRepository
	Exports   export.ExportService
	Retention retention.RetentionService
	Queue     queue.Queue
	Logger    *zap.Logger
}

func NewSchedulerService(settingsSvc settings.SettingsService, reports report.ReportRepository, exports export.ExportService, retentionSvc retention.RetentionService, q queue.Queue, logger *zap.Logger) SchedulerService {
	return &SchedulerServiceImpl{
		Settings:  settingsSvc,
		Reports:   reports,
		Exports:   exports,
		Retention: retentionSvc,
		Queue:     q,
		Logger:    logger,
	}
}

func (s *SchedulerServiceImpl) Run(ctx context.Context, reschedule bool) error {
	cfg, err := s.Settings.GetExportConfig(ctx)
	if err != nil {
		// A transient settings read must not kill the loop: once the
		// queue exhausts its redeliveries the task is dead-lettered and
		// nothing re-arms until a restart. Queue a fresh retry and
		// swallow the error; if even that fails, propagate so the
		// queue's own redelivery takes over.
		if reschedule {
			if qerr := s.Queue.Enqueue(ctx, queue.NewSchedulerTask(true), schedule.MinDelay); qerr == nil {
				s.Logger.Error("settings read failed, scheduler retry queued",
					zap.Duration("in", schedule.MinDelay),
					zap.Error(err))
				return nil
			}
		}
		return err
	}
	// The loop dies here when scheduling is switched off; flipping the
	// setting back on requires a new Bootstrap.
	if !cfg.ScheduleEnabled {
		s.Logger.Info("scheduled exports are disabled, scheduler loop stopping")
		return nil
	}

	now := time.Now()
	due, err := s.Reports.Due(ctx, now)
	if err != nil {
		return err
	}

	for _, rpt := range due {
		s.runReport(ctx, &rpt, now)
	}

	if _, err := s.Retention.Cleanup(ctx); err != nil {
		s.Logger.Error("retention cleanup failed", zap.Error(err))
	}

	if !reschedule {
		return nil
	}
	return s.enqueueNext(ctx, cfg.DefaultSchedule, now)
}

// runReport generates every export of one due report. Failures are logged
// and isolated so one bad report never stalls the rest of the pass.
func (s *SchedulerServiceImpl) runReport(ctx context.Context, rpt *report.Report, now time.Time) {
	log := s.Logger.With(zap.String("report", rpt.Slug))

	for _, target := range rpt.Targets() {
		exp, err := s.Exports.CreateExport(ctx, export.Spec{
			ReportID:     &rpt.ID,
			SourceHandle: rpt.SourceHandle,
			Target:       target,
			Snapshot:     rpt.Snapshot(),
			Format:       rpt.Format,
			Trigger:      export.TriggerScheduled,
		})
		if err != nil {
			log.Error("failed to create scheduled export", zap.Error(err))
			continue
		}
		if err := s.Exports.Generate(ctx, exp.ID.Hex()); err != nil {
			log.Error("scheduled export failed",
				zap.String("export_id", exp.ID.Hex()),
				zap.Error(err))
		}
	}

	var next *time.Time
	if n, err := schedule.NextRun(rpt.ScheduleID, now); err == nil {
		next = &n
	} else {
		log.Warn("report schedule is no longer runnable",
			zap.String("schedule", string(rpt.ScheduleID)),
			zap.Error(err))
	}
	if err := s.Reports.UpdateScheduleState(ctx, rpt.ID, now, next); err != nil {
		log.Error("failed to stamp schedule state", zap.Error(err))
	}
}

// enqueueNext re-arms the loop on the global default schedule.
func (s *SchedulerServiceImpl) enqueueNext(ctx context.Context, defaultSchedule string, now time.Time) error {
	id := schedule.ScheduleID(defaultSchedule)
	delay, err := schedule.Delay(id, now)
	if err != nil {
		s.Logger.Warn("default schedule is not runnable, scheduler loop stopping",
			zap.String("schedule", defaultSchedule),
			zap.Error(err))
		return nil
	}
	if delay <= 0 {
		s.Logger.Warn("computed non-positive delay, scheduler loop stopping",
			zap.String("schedule", defaultSchedule))
		return nil
	}

	if err := s.Queue.Enqueue(ctx, queue.NewSchedulerTask(true), delay); err != nil {
		return err
	}
	s.Logger.Info("next scheduler pass queued",
		zap.String("schedule", schedule.Label(id)),
		zap.Time("at", now.Add(delay)),
		zap.Duration("in", delay))
	return nil
}

func (s *SchedulerServiceImpl) Bootstrap(ctx context.Context) error {
	cfg, err := s.Settings.GetExportConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.ScheduleEnabled {
		s.Logger.Info("scheduled exports are disabled, skipping scheduler bootstrap")
		return nil
	}

	pending, err := s.Queue.HasPending(ctx, queue.KindRunScheduler)
	if err != nil {
		return err
	}
	if pending {
		s.Logger.Info("scheduler task already queued, skipping bootstrap")
		return nil
	}
	return s.enqueueNext(ctx, cfg.DefaultSchedule, time.Now())
}
