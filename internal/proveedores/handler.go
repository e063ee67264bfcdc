package proveedores

import (
	"strconv"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request Types
// -------------------------

type ProveedorRequest struct {
	Nombre                 string `json:"nombre" validate:"required,max=100"`
	Contacto               string `json:"contacto" validate:"max=100"`
	Telefono               string `json:"telefono" validate:"max=30"`
	Email                  string `json:"email" validate:"omitempty,email,max=100"`
	Direccion              string `json:"direccion" validate:"max=255"`
	RFC                    string `json:"rfc" validate:"max=13"`
	ProductosSuministrados string `json:"productos_suministrados" validate:"max=500"`
	Notas                  string `json:"notas" validate:"max=500"`
	Activo                 *bool  `json:"activo"`
}

func (r ProveedorRequest) input() Input {
	return Input(r)
}

// -------------------------
// Proveedor CRUD
// -------------------------

// GET /api/proveedores?activo=true&search=...
func ListProveedoresHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{Search: c.Query("search")}
		if v := c.Query("activo"); v != "" {
			activo, err := strconv.ParseBool(v)
			if err != nil {
				return apperr.Validation("activo debe ser true o false")
			}
			f.Activo = &activo
		}
		out, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.List(c, out)
	}
}

// GET /api/proveedores/activos
func ListActivosHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.Activos(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, out)
	}
}

// GET /api/proveedores/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.OK(c, st)
	}
}

// GET /api/proveedores/:id
func GetProveedorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, p)
	}
}

// POST /api/proveedores
func CreateProveedorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProveedorRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.Create(c.UserContext(), body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Proveedor creado exitosamente", p)
	}
}

// PUT /api/proveedores/:id
func UpdateProveedorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ProveedorRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.Update(c.UserContext(), id, body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Proveedor actualizado exitosamente", p)
	}
}

// DELETE /api/proveedores/:id
func DeleteProveedorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if _, err := svc.SetActivo(c.UserContext(), id, false, auth.Actor(c)); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Proveedor eliminado exitosamente", nil)
	}
}

// PUT /api/proveedores/:id/reactivar
func ReactivarProveedorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.SetActivo(c.UserContext(), id, true, auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Proveedor reactivado exitosamente", p)
	}
}
