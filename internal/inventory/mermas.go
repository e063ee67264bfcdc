package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

type MermaInput struct {
	ProductoID  uint
	Cantidad    decimal.Decimal
	Motivo      models.MotivoMerma
	Descripcion string
	FechaMerma  *time.Time // nil = ahora
}

func (in *MermaInput) validate() error {
	if in.ProductoID == 0 {
		return apperr.Validation("producto_id es obligatorio")
	}
	if !in.Cantidad.IsPositive() {
		return apperr.Validation("La cantidad debe ser mayor a 0")
	}
	if err := stock.CheckCantidad("cantidad", in.Cantidad); err != nil {
		return err
	}
	if !in.Motivo.Valid() {
		return apperr.Validation("Motivo inválido. Debe ser: vencimiento, daño, robo u otro")
	}
	in.Descripcion = strings.TrimSpace(in.Descripcion)
	return nil
}

// MermaDetalle agrega el valor perdido a precio de venta actual.
type MermaDetalle struct {
	models.Merma
	ValorPerdido decimal.Decimal `json:"valor_perdido"`
}

func toDetalle(m models.Merma) MermaDetalle {
	d := MermaDetalle{Merma: m, ValorPerdido: decimal.Zero}
	if m.Producto != nil {
		d.ValorPerdido = m.Cantidad.Mul(m.Producto.PrecioVenta)
	}
	return d
}

// RecordMerma registra una pérdida y la descuenta del stock.
func (s *Service) RecordMerma(ctx context.Context, in MermaInput, actor audit.Actor) (*MermaDetalle, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fecha := time.Now()
	if in.FechaMerma != nil {
		fecha = *in.FechaMerma
	}

	var merma models.Merma
	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		if _, err := tx.Lock(in.ProductoID); err != nil {
			return err
		}

		merma = models.Merma{
			ProductoID:  in.ProductoID,
			Cantidad:    in.Cantidad,
			Motivo:      in.Motivo,
			Descripcion: in.Descripcion,
			FechaMerma:  fecha,
		}
		if err := tx.DB().Omit("Producto").Create(&merma).Error; err != nil {
			return err
		}

		movs, err := tx.Apply([]stock.Unit{{
			ProductoID: in.ProductoID,
			Delta:      in.Cantidad.Neg(),
			Tipo:       models.MovMerma,
			Motivo:     mermaMotivo(in.Motivo, in.Descripcion),
			Referencia: &stock.Referencia{Tipo: "merma", ID: merma.ID},
			UsuarioID:  actor.ID,
		}})
		if err != nil {
			return err
		}
		merma.MovimientoID = movs[0].ID
		if err := tx.DB().Model(&merma).Update("movimiento_id", merma.MovimientoID).Error; err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "merma",
			EntityID:      merma.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Merma de %s unidades del producto %d (%s)", merma.Cantidad.String(), merma.ProductoID, merma.Motivo),
			After:         merma,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetMerma(ctx, merma.ID)
}

func mermaMotivo(motivo models.MotivoMerma, descripcion string) string {
	if descripcion == "" {
		return "Merma: " + string(motivo)
	}
	return fmt.Sprintf("Merma: %s (%s)", motivo, descripcion)
}

// UpdateMerma corrige una merma con la misma lógica de diferencias que
// UpdateEntry, con los signos invertidos.
func (s *Service) UpdateMerma(ctx context.Context, id uint, in MermaInput, actor audit.Actor) (*MermaDetalle, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		var merma models.Merma
		if err := tx.DB().Clauses(clause.Locking{Strength: "UPDATE"}).First(&merma, id).Error; err != nil {
			return apperr.FromDB(err, "Merma no encontrada")
		}
		before := merma
		ref := &stock.Referencia{Tipo: "merma", ID: merma.ID}

		var units []stock.Unit
		switch {
		case in.ProductoID != merma.ProductoID:
			units = []stock.Unit{
				{
					ProductoID: merma.ProductoID,
					Delta:      merma.Cantidad,
					Tipo:       models.MovEliminacionMerma,
					Motivo:     fmt.Sprintf("Corrección de merma #%d: cambio de producto", merma.ID),
					Referencia: ref,
					UsuarioID:  actor.ID,
				},
				{
					ProductoID: in.ProductoID,
					Delta:      in.Cantidad.Neg(),
					Tipo:       models.MovMerma,
					Motivo:     mermaMotivo(in.Motivo, in.Descripcion),
					Referencia: ref,
					UsuarioID:  actor.ID,
				},
			}
		case !in.Cantidad.Equal(merma.Cantidad):
			units = []stock.Unit{{
				ProductoID: merma.ProductoID,
				Delta:      merma.Cantidad.Sub(in.Cantidad),
				Tipo:       models.MovAjusteMerma,
				Motivo:     fmt.Sprintf("Corrección de merma #%d", merma.ID),
				Referencia: ref,
				UsuarioID:  actor.ID,
			}}
		}
		if len(units) > 0 {
			movs, err := tx.Apply(units)
			if err != nil {
				return err
			}
			merma.MovimientoID = movs[len(movs)-1].ID
		}

		merma.ProductoID = in.ProductoID
		merma.Cantidad = in.Cantidad
		merma.Motivo = in.Motivo
		merma.Descripcion = in.Descripcion
		if in.FechaMerma != nil {
			merma.FechaMerma = *in.FechaMerma
		}
		if err := tx.DB().Omit("Producto").Save(&merma).Error; err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "merma",
			EntityID:      merma.ID,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Merma #%d actualizada", merma.ID),
			Before:        before,
			After:         merma,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetMerma(ctx, id)
}

// DeleteMerma elimina la merma y devuelve su cantidad al stock.
func (s *Service) DeleteMerma(ctx context.Context, id uint, actor audit.Actor) error {
	return s.engine.Do(ctx, func(tx *stock.Tx) error {
		var merma models.Merma
		if err := tx.DB().Clauses(clause.Locking{Strength: "UPDATE"}).First(&merma, id).Error; err != nil {
			return apperr.FromDB(err, "Merma no encontrada")
		}

		if _, err := tx.Apply([]stock.Unit{{
			ProductoID: merma.ProductoID,
			Delta:      merma.Cantidad,
			Tipo:       models.MovEliminacionMerma,
			Motivo:     fmt.Sprintf("Eliminación de merma #%d", merma.ID),
			Referencia: &stock.Referencia{Tipo: "merma", ID: merma.ID},
			UsuarioID:  actor.ID,
		}}); err != nil {
			return err
		}

		if err := tx.DB().Delete(&models.Merma{}, merma.ID).Error; err != nil {
			return err
		}

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "merma",
			EntityID:      merma.ID,
			Action:        models.AuditActionDelete,
			Description:   fmt.Sprintf("Merma #%d eliminada", merma.ID),
			Before:        merma,
		})
	})
}

func (s *Service) GetMerma(ctx context.Context, id uint) (*MermaDetalle, error) {
	var m models.Merma
	if err := s.db.WithContext(ctx).Preload("Producto").First(&m, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Merma no encontrada")
	}
	d := toDetalle(m)
	return &d, nil
}

type MermaFilter struct {
	ProductoID  uint
	Motivo      models.MotivoMerma
	FechaInicio *time.Time
	FechaFin    *time.Time
}

func (s *Service) ListMermas(ctx context.Context, f MermaFilter) ([]MermaDetalle, error) {
	q := s.db.WithContext(ctx).Preload("Producto")
	if f.ProductoID > 0 {
		q = q.Where("producto_id = ?", f.ProductoID)
	}
	if f.Motivo != "" {
		q = q.Where("motivo = ?", f.Motivo)
	}
	if f.FechaInicio != nil {
		q = q.Where("fecha_merma >= ?", startOfDay(*f.FechaInicio))
	}
	if f.FechaFin != nil {
		q = q.Where("fecha_merma < ?", startOfDay(*f.FechaFin).AddDate(0, 0, 1))
	}

	var mermas []models.Merma
	if err := q.Order("fecha_merma DESC, id DESC").Find(&mermas).Error; err != nil {
		return nil, apperr.Storage("Error al obtener mermas", err)
	}
	out := make([]MermaDetalle, len(mermas))
	for i, m := range mermas {
		out[i] = toDetalle(m)
	}
	return out, nil
}

type ReporteMerma struct {
	Motivo          models.MotivoMerma `json:"motivo"`
	TotalCasos      int                `json:"total_casos"`
	TotalCantidad   decimal.Decimal    `json:"total_cantidad"`
	ValorPerdido    decimal.Decimal    `json:"valor_perdido"`
	PromedioPerdida decimal.Decimal    `json:"promedio_perdida"`
}

// Reportes agrupa las mermas del período por motivo, mayor pérdida primero.
func (s *Service) Reportes(ctx context.Context, f MermaFilter) ([]ReporteMerma, error) {
	mermas, err := s.ListMermas(ctx, f)
	if err != nil {
		return nil, err
	}

	idx := map[models.MotivoMerma]int{}
	var out []ReporteMerma
	for _, m := range mermas {
		i, ok := idx[m.Motivo]
		if !ok {
			i = len(out)
			idx[m.Motivo] = i
			out = append(out, ReporteMerma{Motivo: m.Motivo, TotalCantidad: decimal.Zero, ValorPerdido: decimal.Zero})
		}
		r := &out[i]
		r.TotalCasos++
		r.TotalCantidad = r.TotalCantidad.Add(m.Cantidad)
		r.ValorPerdido = r.ValorPerdido.Add(m.ValorPerdido)
	}
	for i := range out {
		out[i].PromedioPerdida = out[i].ValorPerdido.Div(decimal.NewFromInt(int64(out[i].TotalCasos))).Round(2)
	}
	sortByDesc(out, func(r ReporteMerma) decimal.Decimal { return r.ValorPerdido })
	return out, nil
}

func sortByDesc[T any](s []T, key func(T) decimal.Decimal) {
	sort.SliceStable(s, func(i, j int) bool { return key(s[i]).GreaterThan(key(s[j])) })
}
