// Package proveedores administra el catálogo de proveedores. Las entradas
// guardan el nombre del proveedor, por eso la baja es lógica.
package proveedores

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"

	"gorm.io/gorm"
)

var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

type Input struct {
	Nombre                 string
	Contacto               string
	Telefono               string
	Email                  string
	Direccion              string
	RFC                    string
	ProductosSuministrados string
	Notas                  string
	Activo                 *bool // nil = true al crear, sin cambio al actualizar
}

func (in *Input) normalize() error {
	in.Nombre = strings.TrimSpace(in.Nombre)
	if in.Nombre == "" {
		return apperr.Validation("El nombre del proveedor es requerido")
	}
	in.Contacto = strings.TrimSpace(in.Contacto)
	in.Telefono = strings.TrimSpace(in.Telefono)
	in.Email = strings.TrimSpace(in.Email)
	in.Direccion = strings.TrimSpace(in.Direccion)
	in.ProductosSuministrados = strings.TrimSpace(in.ProductosSuministrados)
	in.Notas = strings.TrimSpace(in.Notas)
	in.RFC = strings.ToUpper(strings.TrimSpace(in.RFC))
	if in.RFC != "" && !rfcPattern.MatchString(in.RFC) {
		return apperr.Validation("El formato del RFC no es válido")
	}
	return nil
}

func (in *Input) rfc() *string {
	if in.RFC == "" {
		return nil
	}
	v := in.RFC
	return &v
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func conflict(err error) error {
	if apperr.IsUniqueViolation(err) {
		return apperr.Conflict("Ya existe un proveedor con ese nombre o RFC", err)
	}
	return err
}

func (s *Service) Create(ctx context.Context, in Input, actor audit.Actor) (*models.Proveedor, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p := models.Proveedor{
		Nombre:                 in.Nombre,
		Contacto:               in.Contacto,
		Telefono:               in.Telefono,
		Email:                  in.Email,
		Direccion:              in.Direccion,
		RFC:                    in.rfc(),
		ProductosSuministrados: in.ProductosSuministrados,
		Notas:                  in.Notas,
		Activo:                 true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return conflict(err)
		}
		// activo tiene default en la tabla; false se aplica aparte
		if in.Activo != nil && !*in.Activo {
			if err := tx.Model(&p).Update("activo", false).Error; err != nil {
				return err
			}
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "proveedor",
			EntityID:      p.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Proveedor creado: %s", p.Nombre),
			After:         p,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Proveedor no encontrado")
	}
	return &p, nil
}

// Update reemplaza todos los datos del proveedor.
func (s *Service) Update(ctx context.Context, id uint, in Input, actor audit.Actor) (*models.Proveedor, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var p models.Proveedor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		before := p

		activo := p.Activo
		if in.Activo != nil {
			activo = *in.Activo
		}
		err := tx.Model(&p).Updates(map[string]any{
			"nombre":                  in.Nombre,
			"contacto":                in.Contacto,
			"telefono":                in.Telefono,
			"email":                   in.Email,
			"direccion":               in.Direccion,
			"rfc":                     in.rfc(),
			"productos_suministrados": in.ProductosSuministrados,
			"notas":                   in.Notas,
			"activo":                  activo,
		}).Error
		if err != nil {
			return conflict(err)
		}
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "proveedor",
			EntityID:      p.ID,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Proveedor actualizado: %s", p.Nombre),
			Before:        before,
			After:         p,
		})
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Proveedor no encontrado")
	}
	return &p, nil
}

// SetActivo da de baja (false) o reactiva (true) un proveedor.
func (s *Service) SetActivo(ctx context.Context, id uint, activo bool, actor audit.Actor) (*models.Proveedor, error) {
	var p models.Proveedor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&p).Update("activo", activo).Error; err != nil {
			return err
		}
		action, desc := models.AuditActionDelete, "Proveedor dado de baja: "
		if activo {
			action, desc = models.AuditActionUpdate, "Proveedor reactivado: "
		}
		return audit.Write(tx, audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "proveedor",
			EntityID:      p.ID,
			Action:        action,
			Description:   desc + p.Nombre,
			After:         map[string]bool{"activo": activo},
		})
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Proveedor no encontrado")
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Proveedor, error) {
	var p models.Proveedor
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Proveedor no encontrado")
	}
	return &p, nil
}

type Filter struct {
	Activo *bool
	Search string // nombre, contacto, email, productos o RFC
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Proveedor, error) {
	q := s.db.WithContext(ctx)
	if f.Activo != nil {
		q = q.Where("activo = ?", *f.Activo)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where(`(LOWER(nombre) LIKE ? OR LOWER(contacto) LIKE ? OR LOWER(email) LIKE ?
			OR LOWER(productos_suministrados) LIKE ? OR LOWER(rfc) LIKE ?)`,
			like, like, like, like, like)
	}

	var out []models.Proveedor
	if err := q.Order("nombre").Find(&out).Error; err != nil {
		return nil, apperr.Storage("Error al obtener proveedores", err)
	}
	return out, nil
}

// Activo es la forma corta usada por los selectores del front.
type Activo struct {
	ID       uint   `json:"id"`
	Nombre   string `json:"nombre"`
	Contacto string `json:"contacto"`
	Telefono string `json:"telefono"`
	Email    string `json:"email"`
}

func (s *Service) Activos(ctx context.Context) ([]Activo, error) {
	var out []Activo
	err := s.db.WithContext(ctx).Model(&models.Proveedor{}).
		Select("id, nombre, contacto, telefono, email").
		Where("activo = ?", true).
		Order("nombre").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Storage("Error al obtener proveedores activos", err)
	}
	return out, nil
}

type Stats struct {
	Total           int64 `json:"total_proveedores"`
	Activos         int64 `json:"proveedores_activos"`
	Inactivos       int64 `json:"proveedores_inactivos"`
	NuevosUltimoMes int64 `json:"nuevos_ultimo_mes"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats
	hace30 := time.Now().AddDate(0, 0, -30)

	for _, q := range []struct {
		dst  *int64
		cond string
		args []any
	}{
		{&st.Total, "1 = 1", nil},
		{&st.Activos, "activo = ?", []any{true}},
		{&st.NuevosUltimoMes, "created_at >= ?", []any{hace30}},
	} {
		if err := db.Model(&models.Proveedor{}).Where(q.cond, q.args...).Count(q.dst).Error; err != nil {
			return nil, apperr.Storage("Error al obtener estadísticas de proveedores", err)
		}
	}
	st.Inactivos = st.Total - st.Activos
	return &st, nil
}
