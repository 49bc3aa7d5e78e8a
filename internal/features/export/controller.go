package export

import (
	"fmt"

	"go-export/internal/queue"

	"github.com/gofiber/fiber/v2"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type ExportController struct {
	ExportService ExportService
	Queue         queue.Queue
}

func NewExportController(exportService ExportService, q queue.Queue) *ExportController {
	return &ExportController{ExportService: exportService, Queue: q}
}

// List godoc
func (c *ExportController) List(ctx *fiber.Ctx) error {
	exports, err := c.ExportService.ListExports(ctx.Context())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(exports)
}

// Get godoc
func (c *ExportController) Get(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	exp, err := c.ExportService.GetExport(ctx.Context(), id)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Export not found"})
	}
	return ctx.JSON(exp)
}

type createExportRequest struct {
	SourceHandle string         `json:"source_handle"`
	EntityIDs    []string       `json:"entity_ids"`
	Combined     bool           `json:"combined"`
	Format       Format         `json:"format"`
	Snapshot     FilterSnapshot `json:"snapshot"`
	TriggeredBy  string         `json:"triggered_by"`
	// Immediate runs the pipeline inline instead of queueing it.
	Immediate bool `json:"immediate"`
}

// Create accepts an ad-hoc export request. One pending export is created per
// entity, or a single combined export when requested.
func (c *ExportController) Create(ctx *fiber.Ctx) error {
	var req createExportRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.EntityIDs) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entity_ids is required"})
	}

	var targets []Target
	if req.Combined {
		targets = []Target{CombinedTarget(req.EntityIDs)}
	} else {
		for _, entityID := range req.EntityIDs {
			targets = append(targets, SingleTarget(entityID))
		}
	}

	exports := make([]*Export, 0, len(targets))
	for _, target := range targets {
		exp, err := c.ExportService.CreateExport(ctx.Context(), Spec{
			SourceHandle: req.SourceHandle,
			Target:       target,
			Snapshot:     req.Snapshot,
			Format:       req.Format,
			Trigger:      TriggerAPI,
			TriggeredBy:  req.TriggeredBy,
		})
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		exports = append(exports, exp)
	}

	for _, exp := range exports {
		if req.Immediate {
			if err := c.ExportService.Generate(ctx.Context(), exp.ID.Hex()); err != nil {
				return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			continue
		}
		task := queue.NewGenerateTask(exp.ID.Hex())
		if err := c.Queue.Enqueue(ctx.Context(), task, 0); err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	if req.Immediate {
		// Re-read so the response carries terminal statuses.
		for i, exp := range exports {
			fresh, err := c.ExportService.GetExport(ctx.Context(), exp.ID.Hex())
			if err == nil {
				exports[i] = fresh
			}
		}
	}
	return ctx.Status(fiber.StatusCreated).JSON(exports)
}

// Download godoc
func (c *ExportController) Download(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	exp, data, err := c.ExportService.Download(ctx.Context(), id)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	contentType := contentTypes[exp.Format]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Set("Content-Type", contentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exp.FileName))
	return ctx.Send(data)
}

// Delete godoc
func (c *ExportController) Delete(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.ExportService.DeleteExport(ctx.Context(), id); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
