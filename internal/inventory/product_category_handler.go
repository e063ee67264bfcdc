package inventory

import (
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/productos/categorias
func ListCategoriasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		categorias, err := svc.Categorias(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, categorias)
	}
}
