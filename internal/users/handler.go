package users

import (
	"strconv"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateUsuarioRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	Nombre   string `json:"nombre" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=100"`
	RolID    uint   `json:"rol_id" validate:"required"`
	Activo   *bool  `json:"activo"`
}

type UpdateUsuarioRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Nombre   *string `json:"nombre" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,max=100"`
	RolID    *uint   `json:"rol_id"`
	Activo   *bool   `json:"activo"`
	Password *string `json:"password"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ListResponse struct {
	Usuarios   []models.Usuario `json:"usuarios"`
	Pagination *Pagination      `json:"pagination"`
}

func manager(c *fiber.Ctx) (Manager, error) {
	id := auth.UserID(c)
	if id == nil {
		return Manager{}, fiber.NewError(fiber.StatusUnauthorized, "Usuario no autenticado")
	}
	return Manager{ID: *id, Nombre: auth.Username(c), Rol: auth.Role(c)}, nil
}

// GET /api/users/admin/usuarios?page=1&limit=25&search=&rol_id=&activo=
func ListUsuariosHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			Search: c.Query("search"),
			Page:   httpx.QueryInt(c, "page", 1),
			Limit:  httpx.QueryInt(c, "limit", 25),
		}
		if v, err := strconv.ParseUint(c.Query("rol_id"), 10, 64); err == nil {
			f.RolID = uint(v)
		}
		if v := c.Query("activo"); v != "" {
			activo, err := strconv.ParseBool(v)
			if err != nil {
				return apperr.Validation("activo debe ser true o false")
			}
			f.Activo = &activo
		}
		usuarios, page, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		if usuarios == nil {
			usuarios = []models.Usuario{}
		}
		return httpx.OK(c, ListResponse{Usuarios: usuarios, Pagination: page})
	}
}

// GET /api/users/:id
func GetUsuarioHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		u, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, u)
	}
}

// GET /api/users/admin/usuarios/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.OK(c, st)
	}
}

// GET /api/users/roles
func RolesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, err := svc.Roles(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, roles)
	}
}

// POST /api/users/admin/usuarios
func CreateUsuarioHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := manager(c)
		if err != nil {
			return err
		}
		var body CreateUsuarioRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		u, err := svc.Create(c.UserContext(), m, CreateInput(body))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Usuario creado exitosamente", u)
	}
}

// PUT /api/users/admin/usuarios/:id
func UpdateUsuarioHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := manager(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateUsuarioRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		u, err := svc.Update(c.UserContext(), m, id, Patch(body))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Usuario actualizado exitosamente", u)
	}
}

// PATCH /api/users/admin/usuarios/:id/toggle-status
func ToggleStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := manager(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		u, err := svc.ToggleStatus(c.UserContext(), m, id)
		if err != nil {
			return err
		}
		msg := "Usuario desactivado exitosamente"
		if u.Activo {
			msg = "Usuario activado exitosamente"
		}
		return httpx.OKMessage(c, msg, u)
	}
}

// DELETE /api/users/admin/usuarios/:id
func DeleteUsuarioHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := manager(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), m, id); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Usuario eliminado exitosamente", nil)
	}
}

// POST /api/users/:id/reset-password
func ResetPasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := manager(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ResetPasswordRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if err := svc.ResetPassword(c.UserContext(), m, id, body.NewPassword); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Password reseteado exitosamente", nil)
	}
}
