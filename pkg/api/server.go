package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/positiontracker/pkg/api/routes"
)

func NewApp(positions routes.PositionReader) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)

	routes.PositionsRouter(webApp.Group("/positions"), positions)

	return webApp
}
