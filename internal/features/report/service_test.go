package report

import (
	"context"
	"testing"
	"time"

	"go-export/internal/datasource"
	"go-export/internal/features/export"
	"go-export/internal/queue"
	"go-export/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeSource struct {
	handle string
}

func (f *fakeSource) Handle() string                     { return f.handle }
func (f *fakeSource) Name() string                       { return f.handle }
func (f *fakeSource) Available(ctx context.Context) bool { return true }
func (f *fakeSource) Entities(ctx context.Context) ([]datasource.Entity, error) {
	return nil, nil
}
func (f *fakeSource) Entity(ctx context.Context, id string) (*datasource.Entity, error) {
	return &datasource.Entity{ID: id, Name: id, Handle: id}, nil
}
func (f *fakeSource) Fields(ctx context.Context, entityID string) ([]datasource.Field, error) {
	return nil, nil
}
func (f *fakeSource) Export(ctx context.Context, entityID string, fieldHandles []string, opts datasource.QueryOptions) (*datasource.ExportData, error) {
	return &datasource.ExportData{}, nil
}

type memReports struct {
	ReportRepository
	byID   map[string]*Report
	bySlug map[string]*Report
}

func newMemReports() *memReports {
	return &memReports{byID: map[string]*Report{}, bySlug: map[string]*Report{}}
}

func (m *memReports) Create(ctx context.Context, r *Report) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	cp := *r
	m.byID[r.ID.Hex()] = &cp
	m.bySlug[r.Slug] = &cp
	return nil
}

func (m *memReports) Get(ctx context.Context, id string) (*Report, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *r
	return &cp, nil
}

func (m *memReports) GetBySlug(ctx context.Context, slug string) (*Report, error) {
	r, ok := m.bySlug[slug]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *r
	return &cp, nil
}

func (m *memReports) Update(ctx context.Context, id string, r *Report) error {
	cp := *r
	m.byID[id] = &cp
	m.bySlug[r.Slug] = &cp
	return nil
}

func (m *memReports) Delete(ctx context.Context, id string) error {
	if r, ok := m.byID[id]; ok {
		delete(m.bySlug, r.Slug)
		delete(m.byID, id)
	}
	return nil
}

type stubExportService struct {
	export.ExportService
	created   []export.Spec
	generated []string
}

func (s *stubExportService) CreateExport(ctx context.Context, spec export.Spec) (*export.Export, error) {
	s.created = append(s.created, spec)
	return export.NewPending(spec), nil
}

func (s *stubExportService) Generate(ctx context.Context, exportID string) error {
	s.generated = append(s.generated, exportID)
	return nil
}

func (s *stubExportService) GetExport(ctx context.Context, id string) (*export.Export, error) {
	return nil, mongo.ErrNoDocuments
}

type stubExportRepo struct {
	export.ExportRepository
	detached []primitive.ObjectID
}

func (s *stubExportRepo) DetachReport(ctx context.Context, reportID primitive.ObjectID) error {
	s.detached = append(s.detached, reportID)
	return nil
}

type stubQueue struct {
	enqueued []queue.Task
}

func (q *stubQueue) Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error {
	q.enqueued = append(q.enqueued, task)
	return nil
}

func (q *stubQueue) Consume(ctx context.Context, handler func(context.Context, queue.Task) error) error {
	return nil
}

func (q *stubQueue) HasPending(ctx context.Context, kind queue.Kind) (bool, error) {
	return false, nil
}

func (q *stubQueue) Close() error { return nil }

func newTestService(t *testing.T) (*ReportServiceImpl, *memReports, *stubExportService, *stubExportRepo, *stubQueue) {
	t.Helper()
	registry := datasource.NewRegistry()
	if err := registry.Register(&fakeSource{handle: "records"}); err != nil {
		t.Fatalf("register source: %v", err)
	}
	repo := newMemReports()
	exportSvc := &stubExportService{}
	exportRepo := &stubExportRepo{}
	q := &stubQueue{}
	svc := &ReportServiceImpl{
		Repo:          repo,
		Registry:      registry,
		ExportService: exportSvc,
		ExportRepo:    exportRepo,
		Queue:         q,
		Logger:        zap.NewNop(),
	}
	return svc, repo, exportSvc, exportRepo, q
}

func validReport() *Report {
	return &Report{
		Name:         "Weekly Contacts",
		SourceHandle: "records",
		EntityIDs:    []string{"contacts"},
		Format:       export.FormatCSV,
		Mode:         ModeSeparate,
		Enabled:      true,
	}
}

func TestCreateReportSlugAndSchedule(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	r := validReport()
	r.EnableSchedule = true
	r.ScheduleID = schedule.Daily2AM
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	if r.Slug != "weekly-contacts" {
		t.Errorf("slug = %q, want weekly-contacts", r.Slug)
	}
	if r.NextScheduledAt == nil {
		t.Fatal("scheduled report has no next_scheduled_at")
	}
	if r.NextScheduledAt.Hour() != 2 || !r.NextScheduledAt.After(time.Now()) {
		t.Errorf("next_scheduled_at = %v, want a future 02:00", r.NextScheduledAt)
	}
}

func TestCreateReportWithoutScheduleHasNoNextRun(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	r := validReport()
	if err := svc.CreateReport(context.Background(), r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if r.NextScheduledAt != nil {
		t.Errorf("unscheduled report has next_scheduled_at = %v", r.NextScheduledAt)
	}
}

func TestCreateReportRejectsDuplicateSlug(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.CreateReport(ctx, validReport()); err != nil {
		t.Fatalf("first CreateReport: %v", err)
	}
	if err := svc.CreateReport(ctx, validReport()); err == nil {
		t.Error("duplicate slug accepted")
	}
}

func TestCreateReportValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Report)
	}{
		{"empty name", func(r *Report) { r.Name = "" }},
		{"no entities", func(r *Report) { r.EntityIDs = nil }},
		{"bad mode", func(r *Report) { r.Mode = "zipped" }},
		{"bad format", func(r *Report) { r.Format = "pdf" }},
		{"unknown source", func(r *Report) { r.SourceHandle = "nope" }},
		{"bad schedule", func(r *Report) { r.EnableSchedule = true; r.ScheduleID = "hourly" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReport()
			tc.mutate(r)
			if err := svc.CreateReport(ctx, r); err == nil {
				t.Error("CreateReport accepted invalid report")
			}
		})
	}
}

func TestUpdateReportClearsScheduleWhenDisabled(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	r := validReport()
	r.EnableSchedule = true
	r.ScheduleID = schedule.Daily
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	r.EnableSchedule = false
	if err := svc.UpdateReport(ctx, r.ID.Hex(), r); err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}
	if r.NextScheduledAt != nil {
		t.Errorf("disabled schedule still has next_scheduled_at = %v", r.NextScheduledAt)
	}
}

func TestDeleteReportOrphansExports(t *testing.T) {
	svc, _, _, exportRepo, _ := newTestService(t)
	ctx := context.Background()

	r := validReport()
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if err := svc.DeleteReport(ctx, r.ID.Hex()); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if len(exportRepo.detached) != 1 || exportRepo.detached[0] != r.ID {
		t.Errorf("exports not detached: %v", exportRepo.detached)
	}
	if _, err := svc.GetReport(ctx, r.ID.Hex()); err == nil {
		t.Error("report still present after delete")
	}
}

func TestRunReportQueuesTasks(t *testing.T) {
	svc, _, exportSvc, _, q := newTestService(t)
	ctx := context.Background()

	r := validReport()
	r.EntityIDs = []string{"contacts", "orders"}
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	exports, err := svc.RunReport(ctx, r.ID.Hex(), false, "ops")
	if err != nil {
		t.Fatalf("RunReport: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("returned %d exports, want 2", len(exports))
	}
	if len(q.enqueued) != 2 {
		t.Fatalf("enqueued %d tasks, want 2", len(q.enqueued))
	}
	for _, task := range q.enqueued {
		if task.Kind != queue.KindGenerateExport || task.ExportID == "" {
			t.Errorf("bad task %+v", task)
		}
	}
	for _, spec := range exportSvc.created {
		if spec.Trigger != export.TriggerManual || spec.TriggeredBy != "ops" {
			t.Errorf("spec trigger = %s by %q", spec.Trigger, spec.TriggeredBy)
		}
	}
	if len(exportSvc.generated) != 0 {
		t.Error("queued run generated inline")
	}
}

func TestRunReportImmediate(t *testing.T) {
	svc, _, exportSvc, _, q := newTestService(t)
	ctx := context.Background()

	r := validReport()
	r.Mode = ModeCombined
	r.EntityIDs = []string{"contacts", "orders"}
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	if _, err := svc.RunReport(ctx, r.ID.Hex(), true, ""); err != nil {
		t.Fatalf("RunReport: %v", err)
	}
	if len(exportSvc.generated) != 1 {
		t.Errorf("generated %d exports inline, want 1 combined", len(exportSvc.generated))
	}
	if len(q.enqueued) != 0 {
		t.Error("immediate run also queued tasks")
	}
}

func TestRunReportDisabled(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	r := validReport()
	r.Enabled = false
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if _, err := svc.RunReport(ctx, r.ID.Hex(), false, ""); err == nil {
		t.Error("RunReport succeeded on a disabled report")
	}
}
