// Package stock es el único punto de escritura de productos.stock_actual.
// Cada cambio de stock pasa por Engine, que bloquea las filas de producto,
// valida que ningún stock quede negativo y registra el movimiento en el
// ledger (movimientos_stock) dentro de la misma transacción.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Referencia apunta al documento que originó el movimiento (venta, entrada...).
type Referencia struct {
	Tipo string
	ID   uint
}

// Unit es un cambio de stock con signo sobre un producto.
type Unit struct {
	ProductoID    uint
	Delta         decimal.Decimal
	Tipo          models.TipoMovimiento
	CostoUnitario decimal.Decimal // cero = precio_compra del producto
	Motivo        string
	Referencia    *Referencia
	UsuarioID     *uint
}

type Engine struct {
	db       *gorm.DB
	onCommit []func(context.Context)
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// OnCommit registra fn para ejecutarse tras cada Do confirmado. Se llama sólo
// durante el arranque, antes de servir peticiones.
func (e *Engine) OnCommit(fn func(ctx context.Context)) {
	e.onCommit = append(e.onCommit, fn)
}

// Tx es una unidad de trabajo abierta por Engine.Do.
type Tx struct {
	db *gorm.DB
}

// DB devuelve la transacción para que el llamador inserte sus propias filas
// (cabecera de venta, entrada, merma, auditoría) en la misma unidad.
func (t *Tx) DB() *gorm.DB { return t.db }

// Do ejecuta fn en una transacción. Si fn devuelve error, o el commit falla,
// no queda ningún efecto persistido.
func (e *Engine) Do(ctx context.Context, fn func(tx *Tx) error) error {
	err := e.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx})
	})
	if err != nil {
		return classify(err)
	}
	for _, hook := range e.onCommit {
		hook(ctx)
	}
	return nil
}

// ApplyMovements aplica units como una sola unidad atómica y devuelve los IDs
// de los movimientos registrados, en el mismo orden.
func (e *Engine) ApplyMovements(ctx context.Context, units []Unit) ([]uint, error) {
	var ids []uint
	err := e.Do(ctx, func(tx *Tx) error {
		movs, err := tx.Apply(units)
		if err != nil {
			return err
		}
		ids = make([]uint, len(movs))
		for i := range movs {
			ids[i] = movs[i].ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Apply valida y aplica units dentro de la transacción abierta.
//
// Las filas de producto se bloquean (FOR UPDATE) en orden ascendente de ID
// para que dos lotes concurrentes no se bloqueen mutuamente; la validación
// recorre las unidades en el orden recibido, así que el error reportado es
// el del primer producto que falla, no el peor.
func (t *Tx) Apply(units []Unit) ([]models.MovimientoStock, error) {
	if len(units) == 0 {
		return nil, apperr.Validation("Se requiere al menos un movimiento de stock")
	}

	ids := make([]uint, 0, len(units))
	seen := make(map[uint]bool, len(units))
	for i, u := range units {
		if u.ProductoID == 0 {
			return nil, apperr.Validationf("Movimiento %d: producto_id es obligatorio", i+1)
		}
		if u.Delta.IsZero() {
			return nil, apperr.Validationf("Movimiento %d: la cantidad no puede ser cero", i+1)
		}
		if u.Tipo == "" {
			return nil, apperr.Validationf("Movimiento %d: tipo de movimiento requerido", i+1)
		}
		if err := CheckCantidad(fmt.Sprintf("Movimiento %d: cantidad", i+1), u.Delta); err != nil {
			return nil, err
		}
		if err := CheckMonto(fmt.Sprintf("Movimiento %d: costo_unitario", i+1), u.CostoUnitario); err != nil {
			return nil, err
		}
		if !seen[u.ProductoID] {
			seen[u.ProductoID] = true
			ids = append(ids, u.ProductoID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var productos []models.Producto
	if err := t.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&productos).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]*models.Producto, len(productos))
	saldo := make(map[uint]decimal.Decimal, len(productos))
	for i := range productos {
		p := &productos[i]
		byID[p.ID] = p
		saldo[p.ID] = p.StockActual
	}

	movs := make([]models.MovimientoStock, len(units))
	for i, u := range units {
		p, ok := byID[u.ProductoID]
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf("Producto con ID %d no encontrado", u.ProductoID))
		}
		if u.Tipo.RequiereActivo() && !p.Activo {
			return nil, apperr.Validationf("El producto %s está inactivo", p.Nombre)
		}

		antes := saldo[p.ID]
		despues := antes.Add(u.Delta)
		if despues.IsNegative() {
			return nil, &apperr.InsufficientStockError{
				ProductoID: p.ID,
				Nombre:     p.Nombre,
				Disponible: antes,
				Solicitado: u.Delta.Neg(),
			}
		}
		saldo[p.ID] = despues

		costo := u.CostoUnitario
		if costo.IsZero() {
			costo = p.PrecioCompra
		}
		mov := models.MovimientoStock{
			ProductoID:    p.ID,
			Tipo:          u.Tipo,
			Cantidad:      u.Delta,
			StockAnterior: antes,
			StockNuevo:    despues,
			CostoUnitario: costo,
			Motivo:        u.Motivo,
			UsuarioID:     u.UsuarioID,
		}
		if u.Referencia != nil {
			mov.ReferenciaTipo = u.Referencia.Tipo
			ref := u.Referencia.ID
			mov.ReferenciaID = &ref
		}
		movs[i] = mov
	}

	now := time.Now()
	for _, id := range ids {
		if err := t.db.Model(&models.Producto{}).
			Where("id = ?", id).
			Updates(map[string]any{"stock_actual": saldo[id], "updated_at": now}).Error; err != nil {
			return nil, err
		}
	}

	if err := t.db.Create(&movs).Error; err != nil {
		return nil, err
	}
	return movs, nil
}

// Lock bloquea y devuelve un producto dentro de la transacción.
func (t *Tx) Lock(productoID uint) (*models.Producto, error) {
	var p models.Producto
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, productoID).Error
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("Producto con ID %d no encontrado", productoID))
	}
	return &p, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	var stockErr *apperr.InsufficientStockError
	var voidErr *apperr.AlreadyVoidedError
	if errors.As(err, &appErr) || errors.As(err, &stockErr) || errors.As(err, &voidErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Registro no encontrado")
	}
	if apperr.IsUniqueViolation(err) {
		return apperr.Conflict("Ya existe un registro con esos datos", err)
	}
	return apperr.Storage("La operación no pudo completarse", err)
}
