package export

import (
	"context"
	"fmt"
	"time"

	"go-export/internal/datasource"
	"go-export/internal/features/settings"
	"go-export/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ExportService interface {
	CreateExport(ctx context.Context, spec Spec) (*Export, error)
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context) ([]Export, error)
	DeleteExport(ctx context.Context, id string) error
	Download(ctx context.Context, id string) (*Export, []byte, error)

	// Generate runs the full pipeline for one export: claim, extract,
	// encode, store, finalize. A lost claim is a no-op, not an error.
	Generate(ctx context.Context, exportID string) error
}

type ExportServiceImpl struct {
	Repo     ExportRepository
	Registry *datasource.Registry
	Storage  storage.Backend
	Settings settings.SettingsService
	Logger   *zap.Logger
}

func NewExportService(repo ExportRepository, registry *datasource.Registry, backend storage.Backend, settingsSvc settings.SettingsService, logger *zap.Logger) ExportService {
	return &ExportServiceImpl{
		Repo:     repo,
		Registry: registry,
		Storage:  backend,
		Settings: settingsSvc,
		Logger:   logger,
	}
}

func (s *ExportServiceImpl) CreateExport(ctx context.Context, spec Spec) (*Export, error) {
	if !spec.Format.Valid() {
		return nil, fmt.Errorf("unsupported export format: %s", spec.Format)
	}
	if _, err := s.Registry.Get(spec.SourceHandle); err != nil {
		return nil, err
	}
	switch spec.Target.Type {
	case TargetSingle:
		if spec.Target.EntityID == "" {
			return nil, fmt.Errorf("single export requires an entity id")
		}
	case TargetCombined:
		if len(spec.Target.EntityIDs) == 0 {
			return nil, fmt.Errorf("combined export requires at least one entity id")
		}
	default:
		return nil, fmt.Errorf("unknown export target type: %s", spec.Target.Type)
	}

	exp := NewPending(spec)
	if err := s.Repo.Create(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *ExportServiceImpl) GetExport(ctx context.Context, id string) (*Export, error) {
	return s.Repo.Get(ctx, id)
}

func (s *ExportServiceImpl) ListExports(ctx context.Context) ([]Export, error) {
	return s.Repo.List(ctx)
}

// DeleteExport removes the stored file first, then the record. A file that
// is already gone does not block the delete.
func (s *ExportServiceImpl) DeleteExport(ctx context.Context, id string) error {
	exp, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if exp.FilePath != "" {
		if err := s.Storage.Delete(ctx, exp.FilePath); err != nil {
			s.Logger.Warn("failed to delete export file",
				zap.String("export_id", id),
				zap.String("path", exp.FilePath),
				zap.Error(err))
		}
	}
	return s.Repo.Delete(ctx, id)
}

func (s *ExportServiceImpl) Download(ctx context.Context, id string) (*Export, []byte, error) {
	exp, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if exp.Status != StatusCompleted {
		return nil, nil, fmt.Errorf("export %s is %s, not completed", id, exp.Status)
	}
	data, err := s.Storage.Read(ctx, exp.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return exp, data, nil
}

func (s *ExportServiceImpl) Generate(ctx context.Context, exportID string) error {
	oid, err := primitive.ObjectIDFromHex(exportID)
	if err != nil {
		return err
	}

	exp, err := s.Repo.Claim(ctx, oid, time.Now())
	if err != nil {
		if err == ErrNotPending {
			s.Logger.Info("export already claimed, skipping",
				zap.String("export_id", exportID))
			return nil
		}
		if err == mongo.ErrNoDocuments {
			return fmt.Errorf("export %s not found", exportID)
		}
		return err
	}

	log := s.Logger.With(
		zap.String("export_id", exportID),
		zap.String("source", exp.SourceHandle),
		zap.String("format", string(exp.Format)))
	log.Info("export started", zap.String("target", string(exp.Target.Type)))

	src, err := s.Registry.Get(exp.SourceHandle)
	if err != nil {
		return s.fail(ctx, exp, log, err)
	}
	if !src.Available(ctx) {
		return s.fail(ctx, exp, log, fmt.Errorf("data source %s is unavailable", exp.SourceHandle))
	}
	s.progress(ctx, log, exp.ID, 10)

	opts := exp.Snapshot.QueryOptions()
	var (
		data      *datasource.ExportData
		sheetName string
		slug      string
	)
	switch exp.Target.Type {
	case TargetSingle:
		entity, eerr := src.Entity(ctx, exp.Target.EntityID)
		if eerr != nil {
			return s.fail(ctx, exp, log, eerr)
		}
		data, err = src.Export(ctx, entity.ID, exp.Snapshot.FieldHandles, opts)
		if err != nil {
			return s.fail(ctx, exp, log, err)
		}
		sheetName = entity.Name
		slug = entity.Handle
	case TargetCombined:
		data, err = MergeCombined(ctx, src, exp.Target.EntityIDs, exp.Snapshot.FieldHandles, opts)
		if err != nil {
			return s.fail(ctx, exp, log, err)
		}
		sheetName = "Combined"
		slug = "combined"
	default:
		return s.fail(ctx, exp, log, fmt.Errorf("unknown export target type: %s", exp.Target.Type))
	}
	s.progress(ctx, log, exp.ID, 50)

	encoder, err := s.encoderFor(ctx, exp.Format, sheetName)
	if err != nil {
		return s.fail(ctx, exp, log, err)
	}
	payload, err := encoder.Encode(data)
	if err != nil {
		return s.fail(ctx, exp, log, err)
	}
	s.progress(ctx, log, exp.ID, 80)

	fileName := BuildFileName(exp.SourceHandle, slug, encoder.Ext(), time.Now())
	if err := s.Storage.Write(ctx, fileName, payload); err != nil {
		return s.fail(ctx, exp, log, err)
	}

	if err := s.Repo.MarkCompleted(ctx, exp.ID, fileName, fileName, int64(len(payload)), len(data.Rows), time.Now()); err != nil {
		return err
	}
	log.Info("export completed",
		zap.String("file", fileName),
		zap.Int("records", len(data.Rows)),
		zap.Int("bytes", len(payload)))
	return nil
}

// progress is advisory; a progress write that fails must not abort a
// generation that is otherwise healthy.
func (s *ExportServiceImpl) progress(ctx context.Context, log *zap.Logger, id primitive.ObjectID, pct int) {
	if err := s.Repo.UpdateProgress(ctx, id, pct); err != nil {
		log.Warn("failed to update export progress",
			zap.Int("progress", pct),
			zap.Error(err))
	}
}

// fail records the terminal failure and propagates the cause. Partial output
// already written to storage is left in place for inspection.
func (s *ExportServiceImpl) fail(ctx context.Context, exp *Export, log *zap.Logger, cause error) error {
	if err := s.Repo.MarkFailed(ctx, exp.ID, cause.Error(), time.Now()); err != nil {
		log.Error("failed to mark export as failed", zap.Error(err))
	}
	log.Error("export failed", zap.Error(cause))
	return cause
}

func (s *ExportServiceImpl) encoderFor(ctx context.Context, format Format, sheetName string) (Encoder, error) {
	var csvOpts CSVOptions
	if format == FormatCSV {
		cfg, err := s.Settings.GetExportConfig(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.CSVDelimiter != "" {
			csvOpts.Delimiter = []rune(cfg.CSVDelimiter)[0]
		}
		if cfg.CSVEnclosure != "" {
			csvOpts.Enclosure = []rune(cfg.CSVEnclosure)[0]
		}
		csvOpts.WithBOM = cfg.CSVWithBOM
	}
	return NewEncoder(format, csvOpts, sheetName)
}

// MergeCombined builds a single table over several entities of one source.
// Pass one unions the field labels of every entity into a shared header,
// seeded with a leading "Source" column. Pass two places each row's values
// at the index of its own label, so entities with different field sets stay
// column-aligned, and fills the first cell with the entity display name.
func MergeCombined(ctx context.Context, src datasource.DataSource, entityIDs []string, fieldHandles []string, opts datasource.QueryOptions) (*datasource.ExportData, error) {
	headers := []string{"Source"}
	index := map[string]int{}

	type part struct {
		name string
		data *datasource.ExportData
	}
	parts := make([]part, 0, len(entityIDs))

	for _, entityID := range entityIDs {
		entity, err := src.Entity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		data, err := src.Export(ctx, entityID, fieldHandles, opts)
		if err != nil {
			return nil, err
		}
		for _, label := range data.Headers {
			if _, ok := index[label]; !ok {
				index[label] = len(headers)
				headers = append(headers, label)
			}
		}
		parts = append(parts, part{name: entity.Name, data: data})
	}

	var rows [][]any
	for _, p := range parts {
		for _, in := range p.data.Rows {
			row := make([]any, len(headers))
			row[0] = p.name
			for i, label := range p.data.Headers {
				if i >= len(in) {
					break
				}
				row[index[label]] = in[i]
			}
			rows = append(rows, row)
		}
	}
	return &datasource.ExportData{Headers: headers, Rows: rows}, nil
}

// BuildFileName produces `{source}_{entity}_{timestamp}.{ext}` with a
// filesystem-safe timestamp.
func BuildFileName(sourceHandle, entitySlug, ext string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", sourceHandle, entitySlug, at.Format("2006-01-02_15-04-05"), ext)
}
