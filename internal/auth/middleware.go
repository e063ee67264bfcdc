package auth

import (
	"strings"

	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/config"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUsernameKey = "username"
	CtxUserRoleKey = "user_role"
	CtxPermisosKey = "permisos"
)

// JWTMiddleware valida el token y vuelve a leer el usuario: un usuario
// desactivado pierde acceso aunque su token siga vigente.
func JWTMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c)
		if err != nil {
			return err
		}

		claims, err := ParseToken(cfg.JWTSecret, tokenStr)
		if err == ErrTokenExpired {
			return fiber.NewError(fiber.StatusUnauthorized, "Token expirado")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Token inválido")
		}

		var u models.Usuario
		if err := db.WithContext(c.UserContext()).Preload("Rol").
			Where("id = ? AND activo = ?", claims.UsuarioID, true).
			First(&u).Error; err != nil || u.Rol == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Usuario no encontrado o inactivo")
		}

		c.Locals(CtxUserIDKey, u.ID)
		c.Locals(CtxUsernameKey, u.Username)
		c.Locals(CtxUserRoleKey, u.Rol.Nombre)
		c.Locals(CtxPermisosKey, u.Rol.Permisos)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Token de acceso requerido")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "El formato debe ser 'Bearer <token>'")
	}
	return parts[1], nil
}

func RequireRole(allowedRoles ...models.RolNombre) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.RolNombre)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Usuario no autenticado")
		}
		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "No tienes el rol necesario para realizar esta acción")
	}
}

func RequirePermission(permiso string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		permisos, ok := c.Locals(CtxPermisosKey).(models.Permisos)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Usuario no autenticado")
		}
		if !permisos[permiso] {
			return fiber.NewError(fiber.StatusForbidden, "No tienes permisos para realizar esta acción")
		}
		return c.Next()
	}
}

// UserID devuelve el usuario autenticado, o nil en rutas públicas.
func UserID(c *fiber.Ctx) *uint {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return nil
	}
	return &id
}

func Username(c *fiber.Ctx) string {
	s, _ := c.Locals(CtxUsernameKey).(string)
	return s
}

func Role(c *fiber.Ctx) models.RolNombre {
	r, _ := c.Locals(CtxUserRoleKey).(models.RolNombre)
	return r
}

// Actor arma el autor de la operación para los registros de auditoría.
func Actor(c *fiber.Ctx) audit.Actor {
	return audit.Actor{ID: UserID(c), Nombre: Username(c)}
}
