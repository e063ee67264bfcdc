package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TipoMovimiento string

const (
	MovInicial            TipoMovimiento = "inicial"
	MovEntrada            TipoMovimiento = "entrada"
	MovVenta              TipoMovimiento = "venta"
	MovMerma              TipoMovimiento = "merma"
	MovAnulacionVenta     TipoMovimiento = "anulacion_venta"
	MovEliminacionEntrada TipoMovimiento = "eliminacion_entrada"
	MovEliminacionMerma   TipoMovimiento = "eliminacion_merma"
	MovAjusteEntrada      TipoMovimiento = "ajuste_entrada"
	MovAjusteMerma        TipoMovimiento = "ajuste_merma"
	MovAjusteManual       TipoMovimiento = "ajuste_manual"
)

// RequiereActivo indica si el movimiento es una operación nueva sobre el
// producto. Las reversiones se aplican aunque el producto esté dado de baja.
func (t TipoMovimiento) RequiereActivo() bool {
	switch t {
	case MovInicial, MovEntrada, MovVenta, MovMerma, MovAjusteManual:
		return true
	}
	return false
}

// MovimientoStock: una fila por cada cambio de stock. Cantidad lleva signo.
type MovimientoStock struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ProductoID     uint            `gorm:"index;not null" json:"producto_id"`
	Producto       *Producto       `gorm:"foreignKey:ProductoID" json:"producto,omitempty"`
	Tipo           TipoMovimiento  `gorm:"size:30;not null;index" json:"tipo"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"cantidad"`
	StockAnterior  decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"stock_anterior"`
	StockNuevo     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"stock_nuevo"`
	CostoUnitario  decimal.Decimal `gorm:"type:decimal(12,2)" json:"costo_unitario"`
	Motivo         string          `gorm:"size:255" json:"motivo,omitempty"`
	ReferenciaTipo string          `gorm:"size:30" json:"referencia_tipo,omitempty"`
	ReferenciaID   *uint           `gorm:"index" json:"referencia_id,omitempty"`
	UsuarioID      *uint           `json:"usuario_id,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}

func (MovimientoStock) TableName() string { return "movimientos_stock" }
