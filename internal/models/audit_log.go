package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionVoid   AuditAction = "void"
	AuditActionAdjust AuditAction = "adjust"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Quién (nil para procesos internos)
	UsuarioID     *uint  `gorm:"index" json:"usuario_id"`
	UsuarioNombre string `gorm:"size:100" json:"usuario_nombre"`

	// Qué entidad: "producto", "entrada", "merma", "venta", "proveedor", "usuario"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Estado anterior y posterior (JSON)
	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`
}
