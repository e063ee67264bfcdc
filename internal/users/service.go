// Package users contiene la administración de usuarios. Un dueño sólo puede
// gestionar vendedores; el administrador gestiona a todos.
package users

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/models"

	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

const minPasswordLen = 8

// Manager es el usuario autenticado que ejecuta la operación.
type Manager struct {
	ID     uint
	Nombre string
	Rol    models.RolNombre
}

// puedeGestionar: el dueño sólo administra vendedores.
func (m Manager) puedeGestionar(rol models.RolNombre) error {
	if m.Rol == models.RolAdmin {
		return nil
	}
	if m.Rol == models.RolDuenio && rol == models.RolVendedor {
		return nil
	}
	return apperr.Forbidden("Sólo puede gestionar usuarios vendedores")
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type Filter struct {
	Search string
	RolID  uint
	Activo *bool
	Page   int
	Limit  int
}

type Pagination struct {
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	Current int   `json:"current"`
	Limit   int   `json:"limit"`
}

// List devuelve una página de usuarios, los más recientes primero.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Usuario, *Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 25
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	q := s.db.WithContext(ctx).Model(&models.Usuario{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(username) LIKE ? OR LOWER(nombre) LIKE ? OR LOWER(email) LIKE ?)", like, like, like)
	}
	if f.RolID > 0 {
		q = q.Where("rol_id = ?", f.RolID)
	}
	if f.Activo != nil {
		q = q.Where("activo = ?", *f.Activo)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, nil, apperr.Storage("Error al obtener usuarios", err)
	}
	var out []models.Usuario
	err := q.Preload("Rol").
		Order("created_at DESC, id DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&out).Error
	if err != nil {
		return nil, nil, apperr.Storage("Error al obtener usuarios", err)
	}
	return out, &Pagination{
		Total:   total,
		Pages:   int(math.Ceil(float64(total) / float64(f.Limit))),
		Current: f.Page,
		Limit:   f.Limit,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Usuario, error) {
	var u models.Usuario
	if err := s.db.WithContext(ctx).Preload("Rol").First(&u, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Usuario no encontrado")
	}
	return &u, nil
}

type RolCantidad struct {
	Rol      models.RolNombre `json:"rol"`
	Cantidad int64            `json:"cantidad"`
}

type Stats struct {
	Total      int64         `json:"total_usuarios"`
	Activos    int64         `json:"usuarios_activos"`
	Inactivos  int64         `json:"usuarios_inactivos"`
	TotalRoles int64         `json:"total_roles"`
	PorRol     []RolCantidad `json:"por_rol"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats
	if err := db.Model(&models.Usuario{}).Count(&st.Total).Error; err != nil {
		return nil, apperr.Storage("Error al obtener estadísticas de usuarios", err)
	}
	if err := db.Model(&models.Usuario{}).Where("activo = ?", true).Count(&st.Activos).Error; err != nil {
		return nil, apperr.Storage("Error al obtener estadísticas de usuarios", err)
	}
	st.Inactivos = st.Total - st.Activos
	if err := db.Model(&models.Usuario{}).Distinct("rol_id").Count(&st.TotalRoles).Error; err != nil {
		return nil, apperr.Storage("Error al obtener estadísticas de usuarios", err)
	}
	err := db.Table("roles r").
		Select("r.nombre AS rol, COUNT(u.id) AS cantidad").
		Joins("LEFT JOIN usuarios u ON u.rol_id = r.id").
		Group("r.id, r.nombre").
		Order("cantidad DESC, r.nombre").
		Scan(&st.PorRol).Error
	if err != nil {
		return nil, apperr.Storage("Error al obtener estadísticas de usuarios", err)
	}
	return &st, nil
}

func (s *Service) Roles(ctx context.Context) ([]models.Rol, error) {
	var out []models.Rol
	if err := s.db.WithContext(ctx).Order("nombre").Find(&out).Error; err != nil {
		return nil, apperr.Storage("Error al obtener roles", err)
	}
	return out, nil
}

type CreateInput struct {
	Username string
	Password string
	Nombre   string
	Email    string
	RolID    uint
	Activo   *bool
}

func findRol(tx *gorm.DB, id uint) (*models.Rol, error) {
	var r models.Rol
	if err := tx.First(&r, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Rol inválido")
	}
	return &r, nil
}

func optionalEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}

func duplicate(err error) error {
	if apperr.IsUniqueViolation(err) {
		return apperr.Conflict("El username o email ya existe", err)
	}
	return err
}

func (s *Service) Create(ctx context.Context, m Manager, in CreateInput) (*models.Usuario, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Nombre = strings.TrimSpace(in.Nombre)
	if !usernamePattern.MatchString(in.Username) {
		return nil, apperr.Validation("El username debe tener entre 3-50 caracteres alfanuméricos")
	}
	if in.Nombre == "" {
		return nil, apperr.Validation("El nombre es requerido")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validationf("La contraseña debe tener al menos %d caracteres", minPasswordLen)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Storage("No se pudo procesar la contraseña", err)
	}

	u := models.Usuario{
		Username:     in.Username,
		Nombre:       in.Nombre,
		Email:        optionalEmail(in.Email),
		PasswordHash: hash,
		RolID:        in.RolID,
		Activo:       true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rol, err := findRol(tx, in.RolID)
		if err != nil {
			return err
		}
		if err := m.puedeGestionar(rol.Nombre); err != nil {
			return err
		}
		if err := tx.Omit("Rol").Create(&u).Error; err != nil {
			return duplicate(err)
		}
		if in.Activo != nil && !*in.Activo {
			if err := tx.Model(&u).Update("activo", false).Error; err != nil {
				return err
			}
		}
		u.Rol = rol
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     &m.ID,
			UsuarioNombre: m.Nombre,
			EntityType:    "usuario",
			EntityID:      u.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Usuario creado: %s (%s)", u.Username, rol.Nombre),
			After:         u,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Usuario no encontrado")
	}
	return s.Get(ctx, u.ID)
}

// Patch: sólo los campos no nil se aplican. Email vacío lo borra.
type Patch struct {
	Username *string
	Nombre   *string
	Email    *string
	RolID    *uint
	Activo   *bool
	Password *string
}

// lockTarget carga el usuario y verifica que el manager pueda gestionarlo.
func lockTarget(tx *gorm.DB, m Manager, id uint) (*models.Usuario, error) {
	var u models.Usuario
	if err := tx.Preload("Rol").First(&u, id).Error; err != nil {
		return nil, err
	}
	if u.ID != m.ID && u.Rol != nil {
		if err := m.puedeGestionar(u.Rol.Nombre); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// ultimoAdmin reporta si u es el único administrador activo.
func ultimoAdmin(tx *gorm.DB, u *models.Usuario) (bool, error) {
	if u.Rol == nil || u.Rol.Nombre != models.RolAdmin || !u.Activo {
		return false, nil
	}
	var n int64
	err := tx.Model(&models.Usuario{}).
		Where("rol_id = ? AND activo = ? AND id <> ?", u.RolID, true, u.ID).
		Count(&n).Error
	return n == 0, err
}

func (s *Service) Update(ctx context.Context, m Manager, id uint, p Patch) (*models.Usuario, error) {
	updates := map[string]any{}
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		if !usernamePattern.MatchString(v) {
			return nil, apperr.Validation("El username debe tener entre 3-50 caracteres alfanuméricos")
		}
		updates["username"] = v
	}
	if p.Nombre != nil {
		v := strings.TrimSpace(*p.Nombre)
		if v == "" {
			return nil, apperr.Validation("El nombre no puede estar vacío")
		}
		updates["nombre"] = v
	}
	if p.Email != nil {
		updates["email"] = optionalEmail(*p.Email)
	}
	if p.Activo != nil {
		updates["activo"] = *p.Activo
	}
	if p.Password != nil && strings.TrimSpace(*p.Password) != "" {
		if len(*p.Password) < minPasswordLen {
			return nil, apperr.Validationf("La nueva contraseña debe tener al menos %d caracteres", minPasswordLen)
		}
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return nil, apperr.Storage("No se pudo procesar la contraseña", err)
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 && p.RolID == nil {
		return nil, apperr.Validation("No hay datos para actualizar")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockTarget(tx, m, id)
		if err != nil {
			return err
		}
		before := *u

		if p.RolID != nil {
			rol, err := findRol(tx, *p.RolID)
			if err != nil {
				return err
			}
			if err := m.puedeGestionar(rol.Nombre); err != nil {
				return err
			}
			if rol.Nombre != models.RolAdmin {
				if ultimo, err := ultimoAdmin(tx, u); err != nil || ultimo {
					return errOr(err, apperr.Validation("No se puede quitar el rol al último administrador activo"))
				}
			}
			updates["rol_id"] = rol.ID
		}
		if p.Activo != nil && !*p.Activo {
			if ultimo, err := ultimoAdmin(tx, u); err != nil || ultimo {
				return errOr(err, apperr.Validation("No se puede desactivar al último administrador activo"))
			}
		}

		if err := tx.Model(&models.Usuario{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return duplicate(err)
		}
		var after models.Usuario
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     &m.ID,
			UsuarioNombre: m.Nombre,
			EntityType:    "usuario",
			EntityID:      id,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Usuario actualizado: %s", after.Username),
			Before:        before,
			After:         after,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Usuario no encontrado")
	}
	return s.Get(ctx, id)
}

func errOr(err error, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// ToggleStatus invierte el estado activo del usuario.
func (s *Service) ToggleStatus(ctx context.Context, m Manager, id uint) (*models.Usuario, error) {
	if id == m.ID {
		return nil, apperr.Validation("No puedes cambiar el estado de tu propio usuario")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	activo := !u.Activo
	return s.Update(ctx, m, id, Patch{Activo: &activo})
}

// Delete da de baja al usuario. Se conserva por las referencias de ventas
// y movimientos.
func (s *Service) Delete(ctx context.Context, m Manager, id uint) error {
	if id == m.ID {
		return apperr.Validation("No puedes eliminar tu propio usuario")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockTarget(tx, m, id)
		if err != nil {
			return err
		}
		if ultimo, err := ultimoAdmin(tx, u); err != nil || ultimo {
			return errOr(err, apperr.Validation("No se puede eliminar al último administrador activo"))
		}
		if err := tx.Model(&models.Usuario{}).Where("id = ?", id).Update("activo", false).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     &m.ID,
			UsuarioNombre: m.Nombre,
			EntityType:    "usuario",
			EntityID:      id,
			Action:        models.AuditActionDelete,
			Description:   fmt.Sprintf("Usuario dado de baja: %s", u.Username),
			Before:        u,
		})
	})
	return apperr.FromDB(err, "Usuario no encontrado")
}

func (s *Service) ResetPassword(ctx context.Context, m Manager, id uint, password string) error {
	if len(password) < 6 {
		return apperr.Validation("El nuevo password debe tener al menos 6 caracteres")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Storage("No se pudo procesar la contraseña", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockTarget(tx, m, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Usuario{}).Where("id = ?", id).Update("password_hash", hash).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     &m.ID,
			UsuarioNombre: m.Nombre,
			EntityType:    "usuario",
			EntityID:      id,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Password reseteado: %s", u.Username),
		})
	})
	return apperr.FromDB(err, "Usuario no encontrado")
}
