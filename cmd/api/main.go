package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-export/internal/common/api"
	"go-export/internal/config"
	"go-export/internal/database"
	"go-export/internal/datasource"
	"go-export/internal/datasource/mongosource"
	"go-export/internal/datasource/sqlsource"
	"go-export/internal/features/export"
	"go-export/internal/features/report"
	"go-export/internal/features/retention"
	"go-export/internal/features/scheduler"
	"go-export/internal/features/settings"
	"go-export/internal/logger"
	"go-export/internal/middleware"
	"go-export/internal/queue"
	"go-export/internal/storage"
	"go-export/internal/worker"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// NewDataSourceRegistry wires every configured data source behind the
// registry the export pipeline resolves handles from.
func NewDataSourceRegistry(cfg *config.Config, db *database.MongodbDB, zlog *zap.Logger) (*datasource.Registry, error) {
	registry := datasource.NewRegistry()

	if err := registry.Register(mongosource.New(db)); err != nil {
		return nil, err
	}

	if cfg.SQLSourceDriver != "" {
		src, err := sqlsource.New(sqlsource.Config{
			Handle:     "sql",
			Name:       cfg.SQLSourceName,
			DBType:     cfg.SQLSourceDriver,
			Host:       cfg.SQLSourceHost,
			Port:       cfg.SQLSourcePort,
			Database:   cfg.SQLSourceDatabase,
			Username:   cfg.SQLSourceUser,
			Password:   cfg.SQLSourcePassword,
			Tables:     cfg.SQLSourceTables,
			DateColumn: cfg.SQLSourceDateCol,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(src); err != nil {
			return nil, err
		}
		zlog.Info("sql data source registered",
			zap.String("driver", cfg.SQLSourceDriver),
			zap.String("database", cfg.SQLSourceDatabase))
	}

	return registry, nil
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// StartWorker runs the queue processor for the lifetime of the app.
func StartWorker(lc fx.Lifecycle, processor *worker.Processor, q queue.Queue) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			processor.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			processor.Stop()
			return q.Close()
		},
	})
}

// BootstrapScheduler arms the scheduler loop on startup. Bootstrap is
// idempotent against a task already sitting in the queue.
func BootstrapScheduler(lc fx.Lifecycle, schedulerSvc scheduler.SchedulerService, zlog *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := schedulerSvc.Bootstrap(ctx); err != nil {
				zlog.Error("scheduler bootstrap failed", zap.Error(err))
			}
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			queue.NewQueue,
			storage.NewBackend,
			NewDataSourceRegistry,

			settings.NewSettingsRepository,
			settings.NewSettingsService,
			settings.NewSettingsController,

			export.NewExportRepository,
			export.NewExportService,
			export.NewExportController,

			report.NewReportRepository,
			report.NewReportService,
			report.NewReportController,

			retention.NewRetentionService,
			scheduler.NewSchedulerService,
			worker.NewProcessor,

			AsRoute(settings.NewSettingsApi),
			AsRoute(export.NewExportApi),
			AsRoute(report.NewReportApi),
		),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartWorker,
			BootstrapScheduler,
		),
	)

	app.Run()
}
