package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UnidadMedida string

const (
	UnidadKg    UnidadMedida = "kg"
	UnidadPieza UnidadMedida = "pza"
	UnidadLitro UnidadMedida = "lt"
	UnidadCaja  UnidadMedida = "caja"
)

func (u UnidadMedida) Valid() bool {
	switch u {
	case UnidadKg, UnidadPieza, UnidadLitro, UnidadCaja:
		return true
	}
	return false
}

// Producto: stock_actual sólo se modifica desde internal/stock
type Producto struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Nombre       string          `gorm:"size:100;not null;index" json:"nombre"`
	Categoria    string          `gorm:"size:50;not null;index" json:"categoria"`
	UnidadMedida UnidadMedida    `gorm:"size:10;not null;default:pza" json:"unidad_medida"`
	PrecioCompra decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"precio_compra"`
	PrecioVenta  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"precio_venta"`
	StockActual  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"stock_actual"`
	StockMinimo  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:5" json:"stock_minimo"`
	ImagenURL    string          `gorm:"size:255" json:"imagen_url,omitempty"`
	Descripcion  string          `gorm:"size:500" json:"descripcion,omitempty"`
	Activo       bool            `gorm:"not null;default:true" json:"activo"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Producto) TableName() string { return "productos" }

// StockBajo: stock_actual <= stock_minimo
func (p *Producto) StockBajo() bool {
	return p.StockActual.LessThanOrEqual(p.StockMinimo)
}
