package main

import (
	"context"
	"log"
	"time"

	"go-export/internal/config"
	"go-export/internal/database"
	"go-export/internal/features/export"
	"go-export/internal/features/retention"
	"go-export/internal/features/settings"
	"go-export/internal/logger"
	"go-export/internal/storage"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RunCleanup executes one retention pass and shuts the app down.
func RunCleanup(lc fx.Lifecycle, retentionSvc retention.RetentionService, zlog *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				defer cancel()

				deleted, err := retentionSvc.Cleanup(ctx)
				if err != nil {
					zlog.Error("cleanup failed", zap.Error(err))
				} else {
					zlog.Info("cleanup done", zap.Int("deleted", deleted))
				}
				if err := shutdowner.Shutdown(); err != nil {
					log.Printf("shutdown failed: %v", err)
				}
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			storage.NewBackend,

			settings.NewSettingsRepository,
			settings.NewSettingsService,

			export.NewExportRepository,
			retention.NewRetentionService,
		),
		fx.Invoke(RunCleanup),
	)

	app.Run()
}
