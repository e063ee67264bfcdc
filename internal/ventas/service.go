// Package ventas arma el agregado de venta (cabecera + detalles) sobre el
// motor de stock: una venta y sus movimientos se confirman o se descartan
// juntos.
package ventas

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

// tolerancia entre total y la suma de subtotales
var tolerancia = decimal.NewFromFloat(0.01)

type SaleHeader struct {
	ClienteNombre   string
	ClienteTelefono *string
	ClienteEmail    *string
	Total           decimal.Decimal
	MetodoPago      models.MetodoPago
	ReferenciaPago  *string
	Actor           audit.Actor
}

type SaleLine struct {
	ProductoID     uint
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Subtotal       decimal.Decimal
}

type Service struct {
	db     *gorm.DB
	engine *stock.Engine
}

func NewService(db *gorm.DB, engine *stock.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// CreateSale valida la venta completa antes de tocar el stock y luego, en una
// sola unidad de trabajo, inserta la cabecera, descuenta cada línea y guarda
// los detalles apuntando a su movimiento.
func (s *Service) CreateSale(ctx context.Context, h SaleHeader, lines []SaleLine) (*models.Venta, error) {
	if err := validateSale(h, lines); err != nil {
		return nil, err
	}

	cliente := strings.TrimSpace(h.ClienteNombre)
	if cliente == "" {
		cliente = models.ClienteGeneral
	}

	var ventaID uint
	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		venta := models.Venta{
			ClienteNombre:   cliente,
			ClienteTelefono: h.ClienteTelefono,
			ClienteEmail:    h.ClienteEmail,
			Total:           h.Total,
			MetodoPago:      h.MetodoPago,
			ReferenciaPago:  h.ReferenciaPago,
			Estado:          models.VentaCompletada,
			FechaVenta:      time.Now(),
			UsuarioID:       h.Actor.ID,
		}
		if err := tx.DB().Create(&venta).Error; err != nil {
			return err
		}

		ref := &stock.Referencia{Tipo: "venta", ID: venta.ID}
		units := make([]stock.Unit, len(lines))
		for i, l := range lines {
			units[i] = stock.Unit{
				ProductoID: l.ProductoID,
				Delta:      l.Cantidad.Neg(),
				Tipo:       models.MovVenta,
				Motivo:     fmt.Sprintf("Venta #%d", venta.ID),
				Referencia: ref,
				UsuarioID:  h.Actor.ID,
			}
		}
		movs, err := tx.Apply(units)
		if err != nil {
			return err
		}

		detalles := make([]models.DetalleVenta, len(lines))
		for i, l := range lines {
			detalles[i] = models.DetalleVenta{
				VentaID:        venta.ID,
				ProductoID:     l.ProductoID,
				Cantidad:       l.Cantidad,
				PrecioUnitario: l.PrecioUnitario,
				Subtotal:       l.Subtotal,
				MovimientoID:   movs[i].ID,
			}
		}
		if err := tx.DB().Create(&detalles).Error; err != nil {
			return err
		}
		venta.Detalles = detalles

		ventaID = venta.ID
		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     h.Actor.ID,
			UsuarioNombre: h.Actor.Nombre,
			EntityType:    "venta",
			EntityID:      venta.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Venta #%d por %s (%s)", venta.ID, venta.Total.StringFixed(2), venta.MetodoPago),
			After:         venta,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, ventaID)
}

func validateSale(h SaleHeader, lines []SaleLine) error {
	if len(lines) == 0 {
		return apperr.Validation("La venta debe tener al menos un detalle")
	}
	if !h.Total.IsPositive() {
		return apperr.Validation("El total debe ser mayor a 0")
	}
	if err := stock.CheckMonto("total", h.Total); err != nil {
		return err
	}
	if !h.MetodoPago.Valid() {
		return apperr.Validationf("Método de pago inválido: %q", h.MetodoPago)
	}

	suma := decimal.Zero
	for i, l := range lines {
		n := i + 1
		if l.ProductoID == 0 {
			return apperr.Validationf("Detalle %d: producto_id es obligatorio", n)
		}
		if !l.Cantidad.IsPositive() || !l.PrecioUnitario.IsPositive() || !l.Subtotal.IsPositive() {
			return apperr.Validationf("Detalle %d: cantidad, precio_unitario y subtotal deben ser mayores a 0", n)
		}
		if err := stock.CheckCantidad(fmt.Sprintf("Detalle %d: cantidad", n), l.Cantidad); err != nil {
			return err
		}
		if err := stock.CheckMonto(fmt.Sprintf("Detalle %d: precio_unitario", n), l.PrecioUnitario); err != nil {
			return err
		}
		if err := stock.CheckMonto(fmt.Sprintf("Detalle %d: subtotal", n), l.Subtotal); err != nil {
			return err
		}
		// se permiten descuentos, nunca recargos
		if l.Subtotal.GreaterThan(l.Cantidad.Mul(l.PrecioUnitario).Add(tolerancia)) {
			return apperr.Validationf("Detalle %d: el subtotal %s excede cantidad × precio_unitario", n, l.Subtotal.String())
		}
		suma = suma.Add(l.Subtotal)
	}
	if h.Total.Sub(suma).Abs().GreaterThan(tolerancia) {
		return apperr.Validationf("El total %s no coincide con la suma de los subtotales %s", h.Total.String(), suma.String())
	}
	return nil
}

// VoidSale anula una venta completada y devuelve al stock cada línea. Las
// filas de detalle originales se conservan.
func (s *Service) VoidSale(ctx context.Context, ventaID uint, motivo string, actor audit.Actor) error {
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		return apperr.Validation("El motivo de anulación es requerido")
	}

	return s.engine.Do(ctx, func(tx *stock.Tx) error {
		var venta models.Venta
		err := tx.DB().Clauses(clause.Locking{Strength: "UPDATE"}).First(&venta, ventaID).Error
		if err != nil {
			return apperr.FromDB(err, "Venta no encontrada")
		}
		if venta.Anulada() {
			return &apperr.AlreadyVoidedError{VentaID: venta.ID}
		}

		var detalles []models.DetalleVenta
		if err := tx.DB().Where("venta_id = ?", venta.ID).Order("id").Find(&detalles).Error; err != nil {
			return err
		}

		if len(detalles) > 0 {
			ref := &stock.Referencia{Tipo: "venta", ID: venta.ID}
			units := make([]stock.Unit, len(detalles))
			for i, d := range detalles {
				units[i] = stock.Unit{
					ProductoID: d.ProductoID,
					Delta:      d.Cantidad,
					Tipo:       models.MovAnulacionVenta,
					Motivo:     fmt.Sprintf("Anulación venta #%d: %s", venta.ID, motivo),
					Referencia: ref,
					UsuarioID:  actor.ID,
				}
			}
			if _, err := tx.Apply(units); err != nil {
				return err
			}
		}

		before := venta
		now := time.Now()
		if err := tx.DB().Model(&venta).Updates(map[string]any{
			"estado":           models.VentaAnulada,
			"motivo_anulacion": motivo,
			"fecha_anulacion":  now,
		}).Error; err != nil {
			return err
		}
		venta.Estado = models.VentaAnulada
		venta.MotivoAnulacion = &motivo
		venta.FechaAnulacion = &now

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "venta",
			EntityID:      venta.ID,
			Action:        models.AuditActionVoid,
			Description:   fmt.Sprintf("Venta #%d anulada: %s", venta.ID, motivo),
			Before:        before,
			After:         venta,
		})
	})
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Venta, error) {
	var venta models.Venta
	err := s.db.WithContext(ctx).
		Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Detalles.Producto").
		First(&venta, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Venta no encontrada")
	}
	return &venta, nil
}

type HistorialFilter struct {
	FechaInicio *time.Time // inclusive, desde el inicio del día
	FechaFin    *time.Time // inclusive, hasta el fin del día
	MetodoPago  models.MetodoPago
	Cliente     string
	Estado      models.EstadoVenta
	Limit       int
}

// Historial lista ventas con sus detalles, de la más reciente a la más antigua.
func (s *Service) Historial(ctx context.Context, f HistorialFilter) ([]models.Venta, error) {
	q := s.db.WithContext(ctx).Model(&models.Venta{})
	if f.FechaInicio != nil {
		q = q.Where("fecha_venta >= ?", startOfDay(*f.FechaInicio))
	}
	if f.FechaFin != nil {
		q = q.Where("fecha_venta < ?", startOfDay(*f.FechaFin).AddDate(0, 0, 1))
	}
	if f.MetodoPago != "" {
		q = q.Where("metodo_pago = ?", f.MetodoPago)
	}
	if f.Cliente != "" {
		like := "%" + strings.ToLower(f.Cliente) + "%"
		q = q.Where("(LOWER(cliente_nombre) LIKE ? OR cliente_telefono LIKE ?)", like, like)
	}
	if f.Estado != "" {
		q = q.Where("estado = ?", f.Estado)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var ventas []models.Venta
	err := q.Preload("Detalles").Order("fecha_venta DESC, id DESC").Find(&ventas).Error
	if err != nil {
		return nil, apperr.Storage("Error al obtener el historial de ventas", err)
	}
	return ventas, nil
}

func (s *Service) List(ctx context.Context) ([]models.Venta, error) {
	return s.Historial(ctx, HistorialFilter{})
}

type MetodoResumen struct {
	Cantidad int             `json:"cantidad"`
	Monto    decimal.Decimal `json:"monto"`
}

type ResumenDia struct {
	Fecha          string                              `json:"fecha"`
	TotalVentas    int                                 `json:"total_ventas"`
	TotalIngresos  decimal.Decimal                     `json:"total_ingresos"`
	TotalProductos int                                 `json:"total_productos"`
	PromedioVenta  decimal.Decimal                     `json:"promedio_venta"`
	PorMetodoPago  map[models.MetodoPago]MetodoResumen `json:"por_metodo_pago"`
	VentaMinima    decimal.Decimal                     `json:"venta_minima"`
	VentaMaxima    decimal.Decimal                     `json:"venta_maxima"`
	Anuladas       int                                 `json:"anuladas"`
}

// ResumenDelDia resume las ventas completadas del día de dia. Las anuladas
// sólo se cuentan aparte.
func (s *Service) ResumenDelDia(ctx context.Context, dia time.Time) (*ResumenDia, error) {
	ventas, err := s.Historial(ctx, HistorialFilter{FechaInicio: &dia, FechaFin: &dia})
	if err != nil {
		return nil, err
	}

	r := &ResumenDia{
		Fecha:         dia.Format("2006-01-02"),
		TotalIngresos: decimal.Zero,
		PromedioVenta: decimal.Zero,
		VentaMinima:   decimal.Zero,
		VentaMaxima:   decimal.Zero,
		PorMetodoPago: map[models.MetodoPago]MetodoResumen{},
	}
	for _, v := range ventas {
		if v.Anulada() {
			r.Anuladas++
			continue
		}
		if r.TotalVentas == 0 || v.Total.LessThan(r.VentaMinima) {
			r.VentaMinima = v.Total
		}
		if v.Total.GreaterThan(r.VentaMaxima) {
			r.VentaMaxima = v.Total
		}
		r.TotalVentas++
		r.TotalIngresos = r.TotalIngresos.Add(v.Total)
		r.TotalProductos += len(v.Detalles)

		m := r.PorMetodoPago[v.MetodoPago]
		m.Cantidad++
		m.Monto = m.Monto.Add(v.Total)
		r.PorMetodoPago[v.MetodoPago] = m
	}
	if r.TotalVentas > 0 {
		r.PromedioVenta = r.TotalIngresos.Div(decimal.NewFromInt(int64(r.TotalVentas))).Round(2)
	}
	return r, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
