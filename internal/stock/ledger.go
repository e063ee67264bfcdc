package stock

import (
	"context"
	"fmt"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger es la vista de sólo lectura sobre movimientos_stock.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

type MovementFilter struct {
	Tipo  models.TipoMovimiento
	Desde *time.Time
	Hasta *time.Time
	Limit int
}

// Movements devuelve el kardex de un producto, del más reciente al más antiguo.
func (l *Ledger) Movements(ctx context.Context, productoID uint, f MovementFilter) ([]models.MovimientoStock, error) {
	q := l.db.WithContext(ctx).Where("producto_id = ?", productoID)
	if f.Tipo != "" {
		q = q.Where("tipo = ?", f.Tipo)
	}
	if f.Desde != nil {
		q = q.Where("created_at >= ?", *f.Desde)
	}
	if f.Hasta != nil {
		q = q.Where("created_at <= ?", *f.Hasta)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var movs []models.MovimientoStock
	if err := q.Order("created_at DESC, id DESC").Find(&movs).Error; err != nil {
		return nil, apperr.Storage("Error al obtener movimientos", err)
	}
	return movs, nil
}

type Reconciliation struct {
	ProductoID      uint            `json:"producto_id"`
	Nombre          string          `json:"nombre"`
	StockActual     decimal.Decimal `json:"stock_actual"`
	SumaMovimientos decimal.Decimal `json:"suma_movimientos"`
	Movimientos     int             `json:"movimientos"`
	Consistente     bool            `json:"consistente"`
}

// Reconcile compara stock_actual con la suma del ledger del producto.
func (l *Ledger) Reconcile(ctx context.Context, productoID uint) (*Reconciliation, error) {
	db := l.db.WithContext(ctx)

	var p models.Producto
	if err := db.First(&p, productoID).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("Producto con ID %d no encontrado", productoID))
	}

	// La suma se hace en Go: SQLite devolvería SUM() como float.
	var cantidades []decimal.Decimal
	if err := db.Model(&models.MovimientoStock{}).
		Where("producto_id = ?", productoID).
		Pluck("cantidad", &cantidades).Error; err != nil {
		return nil, apperr.Storage("Error al obtener movimientos", err)
	}
	suma := decimal.Zero
	for _, c := range cantidades {
		suma = suma.Add(c)
	}

	return &Reconciliation{
		ProductoID:      p.ID,
		Nombre:          p.Nombre,
		StockActual:     p.StockActual,
		SumaMovimientos: suma,
		Movimientos:     len(cantidades),
		Consistente:     suma.Equal(p.StockActual),
	}, nil
}
