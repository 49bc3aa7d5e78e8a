package settings

import (
	"github.com/gofiber/fiber/v2"
)

type SettingsApi struct {
	Controller *SettingsController
}

func NewSettingsApi(controller *SettingsController) *SettingsApi {
	return &SettingsApi{Controller: controller}
}

func (a *SettingsApi) Setup(app *fiber.App) {
	group := app.Group("/api/settings")

	group.Get("/export", a.Controller.GetExportConfig)
	group.Put("/export", a.Controller.UpdateExportConfig)
}
