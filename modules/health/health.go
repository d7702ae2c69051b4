package health

import (
	"github.com/gofiber/fiber/v3"
	"github.com/mrusme/faasboot/api"
)

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "health"
}

func (m *Module) Register(router fiber.Router, deps api.Deps) error {
	router.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	return nil
}
