package models

import "time"

type Proveedor struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Nombre                 string    `gorm:"size:100;not null;uniqueIndex" json:"nombre"`
	Contacto               string    `gorm:"size:100" json:"contacto"`
	Telefono               string    `gorm:"size:30" json:"telefono"`
	Email                  string    `gorm:"size:100" json:"email"`
	Direccion              string    `gorm:"size:255" json:"direccion"`
	RFC                    *string   `gorm:"size:13;uniqueIndex" json:"rfc"`
	ProductosSuministrados string    `gorm:"size:500" json:"productos_suministrados"`
	Notas                  string    `gorm:"size:500" json:"notas"`
	Activo                 bool      `gorm:"not null;default:true" json:"activo"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (Proveedor) TableName() string { return "proveedores" }
