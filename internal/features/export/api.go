package export

import (
	"github.com/gofiber/fiber/v2"
)

type ExportApi struct {
	ExportController *ExportController
}

func NewExportApi(exportController *ExportController) *ExportApi {
	return &ExportApi{ExportController: exportController}
}

func (api *ExportApi) Setup(app *fiber.App) {
	group := app.Group("/api/exports")

	group.Post("/", api.ExportController.Create)
	group.Get("/", api.ExportController.List)
	group.Get("/:id", api.ExportController.Get)
	group.Get("/:id/download", api.ExportController.Download)
	group.Delete("/:id", api.ExportController.Delete)
}
