package retention

import (
	"context"
	"errors"
	"time"

	"go-export/internal/features/export"
	"go-export/internal/features/settings"
	"go-export/internal/storage"

	"go.uber.org/zap"
)

type RetentionService interface {
	// Cleanup deletes exports older than the configured retention window,
	// regardless of status, and returns how many were removed. Sweeping by
	// age alone also reclaims records stranded in processing by a crashed
	// worker. A disabled cleanup or a non-positive retention is a no-op.
	Cleanup(ctx context.Context) (int, error)
}

type RetentionServiceImpl struct {
	Exports  export.ExportRepository
	Storage  storage.Backend
	Settings settings.SettingsService
	Logger   *zap.Logger
}

func NewRetentionService(exports export.ExportRepository, backend storage.Backend, settingsSvc settings.SettingsService, logger *zap.Logger) RetentionService {
	return &RetentionServiceImpl{
		Exports:  exports,
		Storage:  backend,
		Settings: settingsSvc,
		Logger:   logger,
	}
}

func (s *RetentionServiceImpl) Cleanup(ctx context.Context) (int, error) {
	cfg, err := s.Settings.GetExportConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !cfg.AutoCleanup || cfg.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
	stale, err := s.Exports.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, exp := range stale {
		// The file goes first; a record without a file is a dangling
		// download link, a file without a record is unreachable garbage.
		if exp.FilePath != "" {
			if err := s.Storage.Delete(ctx, exp.FilePath); err != nil {
				if errors.Is(err, storage.ErrNotExist) {
					s.Logger.Warn("export file already gone",
						zap.String("export_id", exp.ID.Hex()),
						zap.String("path", exp.FilePath))
				} else {
					s.Logger.Error("failed to delete export file",
						zap.String("export_id", exp.ID.Hex()),
						zap.String("path", exp.FilePath),
						zap.Error(err))
					continue
				}
			}
		}
		if err := s.Exports.Delete(ctx, exp.ID.Hex()); err != nil {
			s.Logger.Error("failed to delete export record",
				zap.String("export_id", exp.ID.Hex()),
				zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.Logger.Info("retention cleanup finished",
			zap.Int("deleted", deleted),
			zap.Int("retention_days", cfg.RetentionDays))
	}
	return deleted, nil
}
