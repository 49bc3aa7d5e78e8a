package retention

import (
	"context"
	"testing"
	"time"

	"go-export/internal/features/export"
	"go-export/internal/features/settings"
	"go-export/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stubExports struct {
	export.ExportRepository
	items   []export.Export
	deleted []string
}

func (s *stubExports) ListOlderThan(ctx context.Context, cutoff time.Time) ([]export.Export, error) {
	var out []export.Export
	for _, exp := range s.items {
		if exp.CreatedAt.Before(cutoff) {
			out = append(out, exp)
		}
	}
	return out, nil
}

func (s *stubExports) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubSettings struct {
	cfg settings.ExportConfig
}

func (s *stubSettings) GetExportConfig(ctx context.Context) (*settings.ExportConfig, error) {
	cfg := s.cfg
	return &cfg, nil
}

func (s *stubSettings) UpdateExportConfig(ctx context.Context, cfg settings.ExportConfig) error {
	s.cfg = cfg
	return nil
}

func finishedExport(t *testing.T, age time.Duration, filePath string) export.Export {
	t.Helper()
	return export.Export{
		ID:        primitive.NewObjectID(),
		Status:    export.StatusCompleted,
		FilePath:  filePath,
		CreatedAt: time.Now().Add(-age),
	}
}

func newCleanup(t *testing.T, exports *stubExports, cfg settings.ExportConfig) (*RetentionServiceImpl, storage.Backend) {
	t.Helper()
	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	svc := &RetentionServiceImpl{
		Exports:  exports,
		Storage:  backend,
		Settings: &stubSettings{cfg: cfg},
		Logger:   zap.NewNop(),
	}
	return svc, backend
}

func TestCleanupDisabled(t *testing.T) {
	exports := &stubExports{items: []export.Export{
		finishedExport(t, 90*24*time.Hour, "old.csv"),
	}}
	svc, _ := newCleanup(t, exports, settings.ExportConfig{AutoCleanup: false, RetentionDays: 30})

	deleted, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 || len(exports.deleted) != 0 {
		t.Errorf("cleanup ran while disabled: deleted=%d", deleted)
	}
}

func TestCleanupKeepForever(t *testing.T) {
	exports := &stubExports{items: []export.Export{
		finishedExport(t, 365*24*time.Hour, "ancient.csv"),
	}}
	svc, _ := newCleanup(t, exports, settings.ExportConfig{AutoCleanup: true, RetentionDays: 0})

	deleted, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("retention 0 must keep everything, deleted %d", deleted)
	}
}

func TestCleanupDeletesOldExports(t *testing.T) {
	old := finishedExport(t, 40*24*time.Hour, "old.csv")
	fresh := finishedExport(t, 5*24*time.Hour, "fresh.csv")
	exports := &stubExports{items: []export.Export{old, fresh}}
	svc, backend := newCleanup(t, exports, settings.ExportConfig{AutoCleanup: true, RetentionDays: 30})

	ctx := context.Background()
	for _, path := range []string{"old.csv", "fresh.csv"} {
		if err := backend.Write(ctx, path, []byte("data")); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}

	deleted, err := svc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if len(exports.deleted) != 1 || exports.deleted[0] != old.ID.Hex() {
		t.Errorf("wrong records deleted: %v", exports.deleted)
	}
	if exists, _ := backend.Exists(ctx, "old.csv"); exists {
		t.Error("old file still present")
	}
	if exists, _ := backend.Exists(ctx, "fresh.csv"); !exists {
		t.Error("fresh file was deleted")
	}
}

func TestCleanupSweepsStuckProcessing(t *testing.T) {
	// A worker that crashes mid-run leaves its export in processing with no
	// file. Age alone decides cleanup, so the stranded record still goes.
	stuck := export.Export{
		ID:        primitive.NewObjectID(),
		Status:    export.StatusProcessing,
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}
	exports := &stubExports{items: []export.Export{stuck}}
	svc, _ := newCleanup(t, exports, settings.ExportConfig{AutoCleanup: true, RetentionDays: 30})

	deleted, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if len(exports.deleted) != 1 || exports.deleted[0] != stuck.ID.Hex() {
		t.Errorf("stuck processing export not removed: %v", exports.deleted)
	}
}

func TestCleanupToleratesMissingFile(t *testing.T) {
	old := finishedExport(t, 40*24*time.Hour, "gone.csv")
	exports := &stubExports{items: []export.Export{old}}
	svc, _ := newCleanup(t, exports, settings.ExportConfig{AutoCleanup: true, RetentionDays: 30})

	deleted, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1 despite missing file", deleted)
	}
}
