package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MotivoMerma string

const (
	MermaVencimiento MotivoMerma = "vencimiento"
	MermaDanio       MotivoMerma = "daño"
	MermaRobo        MotivoMerma = "robo"
	MermaOtro        MotivoMerma = "otro"
)

func (m MotivoMerma) Valid() bool {
	switch m {
	case MermaVencimiento, MermaDanio, MermaRobo, MermaOtro:
		return true
	}
	return false
}

// Merma: pérdida de inventario (vencimiento, daño, robo, otro)
type Merma struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ProductoID   uint            `gorm:"index;not null" json:"producto_id"`
	Producto     *Producto       `gorm:"foreignKey:ProductoID" json:"producto,omitempty"`
	Cantidad     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"cantidad"`
	Motivo       MotivoMerma     `gorm:"size:20;not null;index" json:"motivo"`
	Descripcion  string          `gorm:"size:500" json:"descripcion,omitempty"`
	FechaMerma   time.Time       `gorm:"index;not null" json:"fecha_merma"`
	MovimientoID uint            `gorm:"not null" json:"movimiento_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Merma) TableName() string { return "mermas" }
