package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-export/internal/datasource"
	"go-export/internal/features/export"
	"go-export/internal/queue"
	"go-export/internal/schedule"
	"go-export/pkg/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ReportService interface {
	CreateReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context) ([]Report, error)
	UpdateReport(ctx context.Context, id string, report *Report) error
	DeleteReport(ctx context.Context, id string) error

	// RunReport triggers the report's exports manually. With immediate the
	// pipeline runs inline; otherwise generation tasks are queued.
	RunReport(ctx context.Context, id string, immediate bool, actor string) ([]export.Export, error)
}

type ReportServiceImpl struct {
	Repo          ReportRepository
	Registry      *datasource.Registry
	ExportService export.ExportService
	ExportRepo    export.ExportRepository
	Queue         queue.Queue
	Logger        *zap.Logger
}

func NewReportService(repo ReportRepository, registry *datasource.Registry, exportService export.ExportService, exportRepo export.ExportRepository, q queue.Queue, logger *zap.Logger) ReportService {
	return &ReportServiceImpl{
		Repo:          repo,
		Registry:      registry,
		ExportService: exportService,
		ExportRepo:    exportRepo,
		Queue:         q,
		Logger:        logger,
	}
}

func (s *ReportServiceImpl) CreateReport(ctx context.Context, report *Report) error {
	if err := s.normalize(ctx, report, ""); err != nil {
		return err
	}
	s.stampSchedule(report, time.Now())
	return s.Repo.Create(ctx, report)
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, id string) (*Report, error) {
	return s.Repo.Get(ctx, id)
}

func (s *ReportServiceImpl) ListReports(ctx context.Context) ([]Report, error) {
	return s.Repo.List(ctx)
}

func (s *ReportServiceImpl) UpdateReport(ctx context.Context, id string, report *Report) error {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.normalize(ctx, report, id); err != nil {
		return err
	}
	s.stampSchedule(report, time.Now())
	return s.Repo.Update(ctx, id, report)
}

// DeleteReport removes the report and orphans its exports. Export records
// and their files stay available after the owning report is gone.
func (s *ReportServiceImpl) DeleteReport(ctx context.Context, id string) error {
	report, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ExportRepo.DetachReport(ctx, report.ID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, id)
}

func (s *ReportServiceImpl) RunReport(ctx context.Context, id string, immediate bool, actor string) ([]export.Export, error) {
	report, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.Enabled {
		return nil, fmt.Errorf("report %s is disabled", report.Slug)
	}

	var exports []export.Export
	for _, target := range report.Targets() {
		exp, err := s.ExportService.CreateExport(ctx, export.Spec{
			ReportID:     &report.ID,
			SourceHandle: report.SourceHandle,
			Target:       target,
			Snapshot:     report.Snapshot(),
			Format:       report.Format,
			Trigger:      export.TriggerManual,
			TriggeredBy:  actor,
		})
		if err != nil {
			return nil, err
		}

		if immediate {
			if err := s.ExportService.Generate(ctx, exp.ID.Hex()); err != nil {
				s.Logger.Error("manual export run failed",
					zap.String("report", report.Slug),
					zap.String("export_id", exp.ID.Hex()),
					zap.Error(err))
			}
			if fresh, gerr := s.ExportService.GetExport(ctx, exp.ID.Hex()); gerr == nil {
				exp = fresh
			}
		} else {
			if err := s.Queue.Enqueue(ctx, queue.NewGenerateTask(exp.ID.Hex()), 0); err != nil {
				return nil, err
			}
		}
		exports = append(exports, *exp)
	}
	return exports, nil
}

// normalize validates the report and settles its slug. excludeID skips the
// report itself during the slug uniqueness check on update.
func (s *ReportServiceImpl) normalize(ctx context.Context, report *Report, excludeID string) error {
	if report.Name == "" {
		return errors.New("report name is required")
	}
	if len(report.EntityIDs) == 0 {
		return errors.New("report requires at least one entity")
	}
	if report.Mode == "" {
		report.Mode = ModeSeparate
	}
	if !report.Mode.Valid() {
		return fmt.Errorf("unknown report mode %q", report.Mode)
	}
	if !report.Format.Valid() {
		return fmt.Errorf("unsupported export format %q", report.Format)
	}
	if _, err := s.Registry.Get(report.SourceHandle); err != nil {
		return err
	}
	if report.EnableSchedule && !schedule.IsValid(report.ScheduleID) {
		return fmt.Errorf("unknown schedule %q", report.ScheduleID)
	}

	if report.Slug == "" {
		report.Slug = utils.Slugify(report.Name)
	}
	existing, err := s.Repo.GetBySlug(ctx, report.Slug)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	if existing != nil && existing.ID.Hex() != excludeID {
		return fmt.Errorf("report slug %q is already taken", report.Slug)
	}
	return nil
}

// stampSchedule keeps the next_scheduled_at invariant: set exactly when the
// report is enabled and scheduled, cleared otherwise.
func (s *ReportServiceImpl) stampSchedule(report *Report, now time.Time) {
	if report.Enabled && report.EnableSchedule {
		if next, err := schedule.NextRun(report.ScheduleID, now); err == nil {
			report.NextScheduledAt = &next
			return
		}
	}
	report.NextScheduledAt = nil
}
