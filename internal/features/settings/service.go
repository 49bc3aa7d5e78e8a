package settings

import (
	"context"
	"fmt"
	"time"

	"go-export/internal/schedule"
)

type SettingsService interface {
	GetExportConfig(ctx context.Context) (*ExportConfig, error)
	UpdateExportConfig(ctx context.Context, config ExportConfig) error
}

type SettingsServiceImpl struct {
	Repo SettingsRepository
}

func NewSettingsService(repo SettingsRepository) SettingsService {
	return &SettingsServiceImpl{Repo: repo}
}

// GetExportConfig returns the stored export settings, falling back to sane
// defaults when nothing has been saved yet.
func (s *SettingsServiceImpl) GetExportConfig(ctx context.Context) (*ExportConfig, error) {
	settings, err := s.Repo.GetByType(ctx, SettingsTypeExport)
	if err != nil {
		return nil, err
	}
	if settings == nil || settings.Export == nil {
		return &ExportConfig{
			ScheduleEnabled: false,
			DefaultSchedule: string(schedule.Daily2AM),
			AutoCleanup:     false,
			RetentionDays:   30,
			CSVDelimiter:    ",",
			CSVEnclosure:    `"`,
			CSVWithBOM:      true,
		}, nil
	}
	return settings.Export, nil
}

func (s *SettingsServiceImpl) UpdateExportConfig(ctx context.Context, config ExportConfig) error {
	if !schedule.IsValid(schedule.ScheduleID(config.DefaultSchedule)) {
		return fmt.Errorf("unknown default schedule %q", config.DefaultSchedule)
	}
	if len(config.CSVDelimiter) > 1 {
		return fmt.Errorf("csv delimiter must be a single character")
	}
	if len(config.CSVEnclosure) > 1 {
		return fmt.Errorf("csv enclosure must be a single character")
	}

	settings := &Settings{
		Type:      SettingsTypeExport,
		Export:    &config,
		UpdatedAt: time.Now(),
	}
	return s.Repo.Upsert(ctx, settings)
}
