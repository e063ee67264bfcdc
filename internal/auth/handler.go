package auth

import (
	"errors"
	"strings"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/config"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterAdminRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Nombre   string `json:"nombre" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// UserResponse es la vista pública de un usuario autenticado.
type UserResponse struct {
	ID       uint             `json:"id"`
	Username string           `json:"username"`
	Nombre   string           `json:"nombre"`
	Email    *string          `json:"email"`
	Rol      models.RolNombre `json:"rol"`
	Permisos models.Permisos  `json:"permisos"`
}

func toUserResponse(u *models.Usuario) UserResponse {
	r := UserResponse{ID: u.ID, Username: u.Username, Nombre: u.Nombre, Email: u.Email}
	if u.Rol != nil {
		r.Rol = u.Rol.Nombre
		r.Permisos = u.Rol.Permisos
	}
	return r
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RegisterAdminHandler crea el primer administrador. Deja de funcionar en
// cuanto existe uno.
func RegisterAdminHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		body.Username = strings.TrimSpace(body.Username)

		hash, err := HashPassword(body.Password)
		if err != nil {
			return apperr.Storage("No se pudo procesar la contraseña", err)
		}

		var u models.Usuario
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			// la fila del rol admin serializa los registros concurrentes
			var rol models.Rol
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("nombre = ?", models.RolAdmin).First(&rol).Error; err != nil {
				return apperr.FromDB(err, "Rol admin no configurado")
			}

			var count int64
			if err := tx.Model(&models.Usuario{}).Where("rol_id = ?", rol.ID).Count(&count).Error; err != nil {
				return apperr.Storage("No se pudo verificar administradores", err)
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusForbidden, "Ya existe un administrador")
			}

			u = models.Usuario{
				Username:     body.Username,
				Nombre:       body.Nombre,
				PasswordHash: hash,
				RolID:        rol.ID,
				Activo:       true,
			}
			if err := tx.Create(&u).Error; err != nil {
				return apperr.FromDB(err, "")
			}
			u.Rol = &rol
			return nil
		})
		if err != nil {
			return err
		}

		return httpx.Created(c, "Administrador creado", toUserResponse(&u))
	}
}

func LoginHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		var u models.Usuario
		err := db.WithContext(c.UserContext()).Preload("Rol").
			Where("username = ? AND activo = ?", strings.TrimSpace(body.Username), true).
			First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Credenciales inválidas")
		}
		if err != nil {
			return apperr.Storage("Error al buscar el usuario", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Credenciales inválidas")
		}

		token, err := GenerateToken(cfg, &u)
		if err != nil {
			return apperr.Storage("No se pudo generar el token", err)
		}

		now := time.Now()
		if err := db.WithContext(c.UserContext()).Model(&u).Update("ultimo_acceso", now).Error; err != nil {
			return apperr.Storage("Error al registrar el acceso", err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Login exitoso",
			"token":   token,
			"user":    toUserResponse(&u),
		})
	}
}

// ValidateHandler corre detrás de JWTMiddleware; si llega aquí el token es válido.
func ValidateHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := currentUser(c, db)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "valid": true, "user": toUserResponse(u)})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := currentUser(c, db)
		if err != nil {
			return err
		}
		return httpx.OK(c, toUserResponse(u))
	}
}

func ChangePasswordHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		u, err := currentUser(c, db)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.CurrentPassword)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Password actual incorrecto")
		}

		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			return apperr.Storage("No se pudo procesar la contraseña", err)
		}
		if err := db.WithContext(c.UserContext()).Model(u).Update("password_hash", hash).Error; err != nil {
			return apperr.Storage("No se pudo actualizar la contraseña", err)
		}
		return httpx.OKMessage(c, "Password actualizado exitosamente", nil)
	}
}

// LogoutHandler sólo confirma: los tokens no se guardan del lado del servidor.
func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return httpx.OKMessage(c, "Logout exitoso", nil)
	}
}

func currentUser(c *fiber.Ctx, db *gorm.DB) (*models.Usuario, error) {
	id := UserID(c)
	if id == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Usuario no autenticado")
	}
	var u models.Usuario
	if err := db.WithContext(c.UserContext()).Preload("Rol").First(&u, *id).Error; err != nil {
		return nil, apperr.FromDB(err, "Usuario no encontrado")
	}
	return &u, nil
}
