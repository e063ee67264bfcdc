package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MetodoPago string

const (
	PagoEfectivo       MetodoPago = "efectivo"
	PagoTarjetaCredito MetodoPago = "tarjeta_credito"
	PagoTarjetaDebito  MetodoPago = "tarjeta_debito"
	PagoTransferencia  MetodoPago = "transferencia"
)

func (m MetodoPago) Valid() bool {
	switch m {
	case PagoEfectivo, PagoTarjetaCredito, PagoTarjetaDebito, PagoTransferencia:
		return true
	}
	return false
}

type EstadoVenta string

const (
	VentaCompletada EstadoVenta = "completada"
	VentaAnulada    EstadoVenta = "anulada"
)

const ClienteGeneral = "Cliente General"

type Venta struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ClienteNombre   string          `gorm:"size:100;not null" json:"cliente_nombre"`
	ClienteTelefono *string         `gorm:"size:30" json:"cliente_telefono"`
	ClienteEmail    *string         `gorm:"size:100" json:"cliente_email"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	MetodoPago      MetodoPago      `gorm:"size:20;not null;index" json:"metodo_pago"`
	ReferenciaPago  *string         `gorm:"size:100" json:"referencia_pago"`
	Estado          EstadoVenta     `gorm:"size:20;not null;default:completada;index" json:"estado"`
	MotivoAnulacion *string         `gorm:"size:255" json:"nota_anulacion"`
	FechaAnulacion  *time.Time      `json:"fecha_anulacion"`
	FechaVenta      time.Time       `gorm:"index;not null" json:"fecha_venta"`
	UsuarioID       *uint           `json:"usuario_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Detalles []DetalleVenta `gorm:"foreignKey:VentaID" json:"detalles,omitempty"`
}

func (Venta) TableName() string { return "ventas" }

func (v *Venta) Anulada() bool { return v.Estado == VentaAnulada }

type DetalleVenta struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	VentaID        uint            `gorm:"index;not null" json:"venta_id"`
	ProductoID     uint            `gorm:"index;not null" json:"producto_id"`
	Producto       *Producto       `gorm:"foreignKey:ProductoID" json:"producto,omitempty"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"cantidad"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"precio_unitario"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	MovimientoID   uint            `gorm:"not null" json:"movimiento_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (DetalleVenta) TableName() string { return "detalle_ventas" }
