package settings

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type SettingsController struct {
	Service SettingsService
}

func NewSettingsController(service SettingsService) *SettingsController {
	return &SettingsController{Service: service}
}

func (c *SettingsController) GetExportConfig(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := c.Service.GetExportConfig(ctxt)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(config)
}

func (c *SettingsController) UpdateExportConfig(ctx *fiber.Ctx) error {
	var config ExportConfig
	if err := ctx.BodyParser(&config); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Service.UpdateExportConfig(ctxt, config); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(config)
}
