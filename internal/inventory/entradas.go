package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntradaInput struct {
	ProductoID   uint
	Cantidad     decimal.Decimal
	PrecioCompra decimal.Decimal
	Proveedor    string
	ProveedorID  *uint
	Nota         string
	FechaEntrada *time.Time // nil = ahora
}

func (in *EntradaInput) validate() error {
	if in.ProductoID == 0 {
		return apperr.Validation("producto_id es obligatorio")
	}
	if !in.Cantidad.IsPositive() {
		return apperr.Validation("La cantidad debe ser mayor a 0")
	}
	if in.PrecioCompra.IsNegative() {
		return apperr.Validation("El precio de compra no puede ser negativo")
	}
	if err := stock.CheckCantidad("cantidad", in.Cantidad); err != nil {
		return err
	}
	if err := stock.CheckMonto("precio_compra", in.PrecioCompra); err != nil {
		return err
	}
	in.Proveedor = strings.TrimSpace(in.Proveedor)
	return nil
}

// resolveProveedor completa el nombre del proveedor cuando se indica su ID.
func resolveProveedor(db *gorm.DB, in *EntradaInput) error {
	if in.ProveedorID == nil {
		return nil
	}
	var prov models.Proveedor
	if err := db.Where("activo = ?", true).First(&prov, *in.ProveedorID).Error; err != nil {
		return apperr.FromDB(err, fmt.Sprintf("Proveedor con ID %d no encontrado", *in.ProveedorID))
	}
	in.Proveedor = prov.Nombre
	return nil
}

// actualizarPrecioCompra aplica el último precio de compra al producto.
func actualizarPrecioCompra(db *gorm.DB, productoID uint, precio decimal.Decimal) error {
	return db.Model(&models.Producto{}).
		Where("id = ? AND precio_compra <> ?", productoID, precio).
		Update("precio_compra", precio).Error
}

// RecordEntry registra la recepción de mercadería y suma la cantidad al stock.
func (s *Service) RecordEntry(ctx context.Context, in EntradaInput, actor audit.Actor) (*models.Entrada, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fecha := time.Now()
	if in.FechaEntrada != nil {
		fecha = *in.FechaEntrada
	}

	var entrada models.Entrada
	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		if err := resolveProveedor(tx.DB(), &in); err != nil {
			return err
		}

		if _, err := tx.Lock(in.ProductoID); err != nil {
			return err
		}

		entrada = models.Entrada{
			ProductoID:   in.ProductoID,
			Cantidad:     in.Cantidad,
			PrecioCompra: in.PrecioCompra,
			Proveedor:    in.Proveedor,
			ProveedorID:  in.ProveedorID,
			Nota:         in.Nota,
			FechaEntrada: fecha,
		}
		if err := tx.DB().Omit("Producto").Create(&entrada).Error; err != nil {
			return err
		}

		movs, err := tx.Apply([]stock.Unit{{
			ProductoID:    in.ProductoID,
			Delta:         in.Cantidad,
			Tipo:          models.MovEntrada,
			CostoUnitario: in.PrecioCompra,
			Motivo:        entradaMotivo(in.Proveedor),
			Referencia:    &stock.Referencia{Tipo: "entrada", ID: entrada.ID},
			UsuarioID:     actor.ID,
		}})
		if err != nil {
			return err
		}
		entrada.MovimientoID = movs[0].ID
		if err := tx.DB().Model(&entrada).Update("movimiento_id", entrada.MovimientoID).Error; err != nil {
			return err
		}
		if err := actualizarPrecioCompra(tx.DB(), in.ProductoID, in.PrecioCompra); err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "entrada",
			EntityID:      entrada.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Entrada de %s unidades del producto %d", entrada.Cantidad.String(), entrada.ProductoID),
			After:         entrada,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetEntrada(ctx, entrada.ID)
}

func entradaMotivo(proveedor string) string {
	if proveedor == "" {
		return "Entrada de mercadería"
	}
	return "Entrada de mercadería: " + proveedor
}

// UpdateEntry corrige una entrada. La diferencia de cantidad pasa por el
// motor; si cambia el producto se revierte la entrada original completa y se
// registra la nueva.
func (s *Service) UpdateEntry(ctx context.Context, id uint, in EntradaInput, actor audit.Actor) (*models.Entrada, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		var entrada models.Entrada
		if err := tx.DB().Clauses(clause.Locking{Strength: "UPDATE"}).First(&entrada, id).Error; err != nil {
			return apperr.FromDB(err, "Entrada no encontrada")
		}
		if err := resolveProveedor(tx.DB(), &in); err != nil {
			return err
		}
		before := entrada
		ref := &stock.Referencia{Tipo: "entrada", ID: entrada.ID}

		var units []stock.Unit
		switch {
		case in.ProductoID != entrada.ProductoID:
			units = []stock.Unit{
				{
					ProductoID: entrada.ProductoID,
					Delta:      entrada.Cantidad.Neg(),
					Tipo:       models.MovEliminacionEntrada,
					Motivo:     fmt.Sprintf("Corrección de entrada #%d: cambio de producto", entrada.ID),
					Referencia: ref,
					UsuarioID:  actor.ID,
				},
				{
					ProductoID:    in.ProductoID,
					Delta:         in.Cantidad,
					Tipo:          models.MovEntrada,
					CostoUnitario: in.PrecioCompra,
					Motivo:        entradaMotivo(in.Proveedor),
					Referencia:    ref,
					UsuarioID:     actor.ID,
				},
			}
		case !in.Cantidad.Equal(entrada.Cantidad):
			units = []stock.Unit{{
				ProductoID:    entrada.ProductoID,
				Delta:         in.Cantidad.Sub(entrada.Cantidad),
				Tipo:          models.MovAjusteEntrada,
				CostoUnitario: in.PrecioCompra,
				Motivo:        fmt.Sprintf("Corrección de entrada #%d", entrada.ID),
				Referencia:    ref,
				UsuarioID:     actor.ID,
			}}
		}
		if len(units) > 0 {
			movs, err := tx.Apply(units)
			if err != nil {
				return err
			}
			entrada.MovimientoID = movs[len(movs)-1].ID
		}

		entrada.ProductoID = in.ProductoID
		entrada.Cantidad = in.Cantidad
		entrada.PrecioCompra = in.PrecioCompra
		entrada.Proveedor = in.Proveedor
		entrada.ProveedorID = in.ProveedorID
		entrada.Nota = in.Nota
		if in.FechaEntrada != nil {
			entrada.FechaEntrada = *in.FechaEntrada
		}
		if err := tx.DB().Omit("Producto").Save(&entrada).Error; err != nil {
			return err
		}
		if err := actualizarPrecioCompra(tx.DB(), entrada.ProductoID, entrada.PrecioCompra); err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "entrada",
			EntityID:      entrada.ID,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Entrada #%d actualizada", entrada.ID),
			Before:        before,
			After:         entrada,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetEntrada(ctx, id)
}

// DeleteEntry elimina la entrada restando su cantidad del stock. Falla con
// stock insuficiente si la mercadería ya se vendió o se perdió.
func (s *Service) DeleteEntry(ctx context.Context, id uint, actor audit.Actor) error {
	return s.engine.Do(ctx, func(tx *stock.Tx) error {
		var entrada models.Entrada
		if err := tx.DB().Clauses(clause.Locking{Strength: "UPDATE"}).First(&entrada, id).Error; err != nil {
			return apperr.FromDB(err, "Entrada no encontrada")
		}

		if _, err := tx.Apply([]stock.Unit{{
			ProductoID: entrada.ProductoID,
			Delta:      entrada.Cantidad.Neg(),
			Tipo:       models.MovEliminacionEntrada,
			Motivo:     fmt.Sprintf("Eliminación de entrada #%d", entrada.ID),
			Referencia: &stock.Referencia{Tipo: "entrada", ID: entrada.ID},
			UsuarioID:  actor.ID,
		}}); err != nil {
			return err
		}

		if err := tx.DB().Delete(&models.Entrada{}, entrada.ID).Error; err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "entrada",
			EntityID:      entrada.ID,
			Action:        models.AuditActionDelete,
			Description:   fmt.Sprintf("Entrada #%d eliminada", entrada.ID),
			Before:        entrada,
		})
	})
}

func (s *Service) GetEntrada(ctx context.Context, id uint) (*models.Entrada, error) {
	var e models.Entrada
	if err := s.db.WithContext(ctx).Preload("Producto").First(&e, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Entrada no encontrada")
	}
	return &e, nil
}

type EntradaFilter struct {
	ProductoID  uint
	Proveedor   string
	FechaInicio *time.Time
	FechaFin    *time.Time
}

func (s *Service) ListEntradas(ctx context.Context, f EntradaFilter) ([]models.Entrada, error) {
	q := s.db.WithContext(ctx).Preload("Producto")
	if f.ProductoID > 0 {
		q = q.Where("producto_id = ?", f.ProductoID)
	}
	if f.Proveedor != "" {
		q = q.Where("proveedor = ?", f.Proveedor)
	}
	if f.FechaInicio != nil {
		q = q.Where("fecha_entrada >= ?", startOfDay(*f.FechaInicio))
	}
	if f.FechaFin != nil {
		q = q.Where("fecha_entrada < ?", startOfDay(*f.FechaFin).AddDate(0, 0, 1))
	}

	var entradas []models.Entrada
	if err := q.Order("fecha_entrada DESC, id DESC").Find(&entradas).Error; err != nil {
		return nil, apperr.Storage("Error al obtener entradas", err)
	}
	return entradas, nil
}

type ProveedorResumen struct {
	Proveedor      string          `json:"proveedor"`
	TotalEntradas  int             `json:"total_entradas"`
	TotalInvertido decimal.Decimal `json:"total_invertido"`
	UltimaEntrada  time.Time       `json:"ultima_entrada"`
}

// ResumenProveedores agrupa las entradas por nombre de proveedor, ordenado
// por monto invertido.
func (s *Service) ResumenProveedores(ctx context.Context) ([]ProveedorResumen, error) {
	var entradas []models.Entrada
	if err := s.db.WithContext(ctx).
		Where("proveedor IS NOT NULL AND proveedor <> ''").
		Find(&entradas).Error; err != nil {
		return nil, apperr.Storage("Error al obtener proveedores", err)
	}

	idx := map[string]int{}
	var out []ProveedorResumen
	for _, e := range entradas {
		i, ok := idx[e.Proveedor]
		if !ok {
			i = len(out)
			idx[e.Proveedor] = i
			out = append(out, ProveedorResumen{Proveedor: e.Proveedor, TotalInvertido: decimal.Zero})
		}
		r := &out[i]
		r.TotalEntradas++
		r.TotalInvertido = r.TotalInvertido.Add(e.ValorTotal())
		if e.FechaEntrada.After(r.UltimaEntrada) {
			r.UltimaEntrada = e.FechaEntrada
		}
	}
	sortByDesc(out, func(r ProveedorResumen) decimal.Decimal { return r.TotalInvertido })
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
