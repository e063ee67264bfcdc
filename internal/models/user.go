package models

import "time"

type RolNombre string

const (
	RolAdmin    RolNombre = "admin"
	RolDuenio   RolNombre = "dueño"
	RolVendedor RolNombre = "vendedor"
)

// Permisos: mapa permiso -> habilitado, guardado como JSON
type Permisos map[string]bool

type Rol struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Nombre      RolNombre `gorm:"size:20;not null;uniqueIndex" json:"nombre"`
	Descripcion string    `gorm:"size:255" json:"descripcion"`
	Permisos    Permisos  `gorm:"serializer:json;type:text" json:"permisos"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Rol) TableName() string { return "roles" }

type Usuario struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Nombre       string     `gorm:"size:100;not null" json:"nombre"`
	Email        *string    `gorm:"size:100;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	RolID        uint       `gorm:"not null" json:"rol_id"`
	Rol          *Rol       `gorm:"foreignKey:RolID" json:"rol,omitempty"`
	Activo       bool       `gorm:"not null;default:true" json:"activo"`
	UltimoAcceso *time.Time `json:"ultimo_acceso"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Usuario) TableName() string { return "usuarios" }
