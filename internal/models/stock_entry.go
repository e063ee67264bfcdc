package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entrada: recepción de mercadería de un proveedor
type Entrada struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ProductoID   uint            `gorm:"index;not null" json:"producto_id"`
	Producto     *Producto       `gorm:"foreignKey:ProductoID" json:"producto,omitempty"`
	Cantidad     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"cantidad"`
	PrecioCompra decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"precio_compra"`
	Proveedor    string          `gorm:"size:100;index" json:"proveedor,omitempty"`
	ProveedorID  *uint           `gorm:"index" json:"proveedor_id,omitempty"`
	Nota         string          `gorm:"size:500" json:"nota,omitempty"`
	FechaEntrada time.Time       `gorm:"index;not null" json:"fecha_entrada"`
	MovimientoID uint            `gorm:"not null" json:"movimiento_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Entrada) TableName() string { return "entradas" }

func (e *Entrada) ValorTotal() decimal.Decimal {
	return e.Cantidad.Mul(e.PrecioCompra)
}
