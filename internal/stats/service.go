// Package stats calcula las proyecciones de lectura de /api/estadisticas.
// Las ventas anuladas nunca cuentan como ingreso. Los agregados se hacen en
// Go sobre filas cargadas para que el resultado no dependa del motor SQL.
package stats

import (
	"context"
	"sort"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/cache"
	"fruteria-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	diasPorDefecto = 30
	fechaLayout    = "2006-01-02"
)

var cien = decimal.NewFromInt(100)

type Service struct {
	db    *gorm.DB
	cache *cache.Cache
	now   func() time.Time
}

// NewService acepta una caché nil: el dashboard se calcula en cada pedido.
func NewService(db *gorm.DB, c *cache.Cache) *Service {
	return &Service{db: db, cache: c, now: time.Now}
}

// Rango de días completos. Nil en cualquiera de los extremos = sin límite.
type Rango struct {
	Desde *time.Time
	Hasta *time.Time
}

func (r Rango) aplicar(q *gorm.DB, col string) *gorm.DB {
	if r.Desde != nil {
		q = q.Where(col+" >= ?", startOfDay(*r.Desde))
	}
	if r.Hasta != nil {
		q = q.Where(col+" < ?", startOfDay(*r.Hasta).AddDate(0, 0, 1))
	}
	return q
}

func (r Rango) validar() error {
	if r.Desde != nil && r.Hasta != nil && r.Hasta.Before(*r.Desde) {
		return apperr.Validation("fecha_fin no puede ser anterior a fecha_inicio")
	}
	return nil
}

// ultimosDias: los n días que terminan hoy, hoy incluido.
func ultimosDias(now time.Time, n int) Rango {
	hasta := startOfDay(now)
	desde := hasta.AddDate(0, 0, -(n - 1))
	return Rango{Desde: &desde, Hasta: &hasta}
}

func (s *Service) ventasCompletadas(ctx context.Context, r Rango) ([]models.Venta, error) {
	var ventas []models.Venta
	q := s.db.WithContext(ctx).Where("estado = ?", models.VentaCompletada)
	q = r.aplicar(q, "fecha_venta")
	if err := q.Order("fecha_venta ASC, id ASC").Find(&ventas).Error; err != nil {
		return nil, apperr.FromDB(err, "Registro no encontrado")
	}
	return ventas, nil
}

// lineaVendida: un renglón de detalle de una venta completada.
type lineaVendida struct {
	ProductoID uint
	VentaID    uint
	Cantidad   decimal.Decimal
	Subtotal   decimal.Decimal
}

func (s *Service) lineasVendidas(ctx context.Context, r Rango) ([]lineaVendida, error) {
	var rows []lineaVendida
	q := s.db.WithContext(ctx).
		Table("detalle_ventas AS d").
		Select("d.producto_id, d.venta_id, d.cantidad, d.subtotal").
		Joins("JOIN ventas v ON v.id = d.venta_id").
		Where("v.estado = ?", models.VentaCompletada)
	q = r.aplicar(q, "v.fecha_venta")
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "Registro no encontrado")
	}
	return rows, nil
}

// ------------------------------------------------------------
// Ventas por día
// ------------------------------------------------------------

type VentaDia struct {
	Fecha         string          `json:"fecha"`
	TotalVentas   int             `json:"total_ventas"`
	TotalIngresos decimal.Decimal `json:"total_ingresos"`
	PromedioVenta decimal.Decimal `json:"promedio_venta"`
	VentaMinima   decimal.Decimal `json:"venta_minima"`
	VentaMaxima   decimal.Decimal `json:"venta_maxima"`
}

type DiaDestacado struct {
	Fecha    string          `json:"fecha"`
	Ingresos decimal.Decimal `json:"ingresos"`
	Ventas   int             `json:"ventas"`
}

type TotalesVentas struct {
	TotalVentas    int             `json:"total_ventas"`
	TotalIngresos  decimal.Decimal `json:"total_ingresos"`
	PromedioVenta  decimal.Decimal `json:"promedio_venta"`
	PromedioDiario decimal.Decimal `json:"promedio_diario"`
	DiasConVentas  int             `json:"dias_con_ventas"`
	MejorDia       *DiaDestacado   `json:"mejor_dia"`
	PeorDia        *DiaDestacado   `json:"peor_dia"`
}

type ReporteVentas struct {
	Dias    []VentaDia    `json:"ventas_por_dia"`
	Totales TotalesVentas `json:"totales"`
}

// Ventas agrupa las ventas completadas por día, del más reciente al más
// antiguo. Sin fechas cubre los últimos 30 días.
func (s *Service) Ventas(ctx context.Context, r Rango) (*ReporteVentas, error) {
	if err := r.validar(); err != nil {
		return nil, err
	}
	if r.Desde == nil && r.Hasta == nil {
		r = ultimosDias(s.now(), diasPorDefecto)
	}

	ventas, err := s.ventasCompletadas(ctx, r)
	if err != nil {
		return nil, err
	}

	porDia := map[string]*VentaDia{}
	for _, v := range ventas {
		key := v.FechaVenta.In(time.Local).Format(fechaLayout)
		d, ok := porDia[key]
		if !ok {
			d = &VentaDia{Fecha: key, VentaMinima: v.Total, VentaMaxima: v.Total}
			porDia[key] = d
		}
		d.TotalVentas++
		d.TotalIngresos = d.TotalIngresos.Add(v.Total)
		if v.Total.LessThan(d.VentaMinima) {
			d.VentaMinima = v.Total
		}
		if v.Total.GreaterThan(d.VentaMaxima) {
			d.VentaMaxima = v.Total
		}
	}

	rep := &ReporteVentas{Dias: make([]VentaDia, 0, len(porDia))}
	for _, d := range porDia {
		d.PromedioVenta = promedio(d.TotalIngresos, d.TotalVentas)
		rep.Dias = append(rep.Dias, *d)
	}
	sort.Slice(rep.Dias, func(i, j int) bool { return rep.Dias[i].Fecha > rep.Dias[j].Fecha })

	t := &rep.Totales
	for _, d := range rep.Dias {
		t.TotalVentas += d.TotalVentas
		t.TotalIngresos = t.TotalIngresos.Add(d.TotalIngresos)

		dd := &DiaDestacado{Fecha: d.Fecha, Ingresos: d.TotalIngresos, Ventas: d.TotalVentas}
		// empates: gana el día más antiguo
		if t.MejorDia == nil || !d.TotalIngresos.LessThan(t.MejorDia.Ingresos) {
			t.MejorDia = dd
		}
		if t.PeorDia == nil || !d.TotalIngresos.GreaterThan(t.PeorDia.Ingresos) {
			t.PeorDia = dd
		}
	}
	t.DiasConVentas = len(rep.Dias)
	t.PromedioVenta = promedio(t.TotalIngresos, t.TotalVentas)
	t.PromedioDiario = promedio(t.TotalIngresos, t.DiasConVentas)
	return rep, nil
}

// ------------------------------------------------------------
// Métodos de pago
// ------------------------------------------------------------

type MetodoPagoStat struct {
	MetodoPago              models.MetodoPago `json:"metodo_pago"`
	TotalTransacciones      int               `json:"total_transacciones"`
	MontoTotal              decimal.Decimal   `json:"monto_total"`
	TicketPromedio          decimal.Decimal   `json:"ticket_promedio"`
	PorcentajeTransacciones decimal.Decimal   `json:"porcentaje_transacciones"`
	PorcentajeMonto         decimal.Decimal   `json:"porcentaje_monto"`
}

type ReporteMetodosPago struct {
	Metodos            []MetodoPagoStat `json:"metodos"`
	TotalTransacciones int              `json:"total_transacciones"`
	MontoTotal         decimal.Decimal  `json:"monto_total"`
}

// MetodosPago ordena por monto descendente; sólo aparecen métodos usados.
func (s *Service) MetodosPago(ctx context.Context, r Rango) (*ReporteMetodosPago, error) {
	if err := r.validar(); err != nil {
		return nil, err
	}
	ventas, err := s.ventasCompletadas(ctx, r)
	if err != nil {
		return nil, err
	}
	return agruparMetodos(ventas), nil
}

func agruparMetodos(ventas []models.Venta) *ReporteMetodosPago {
	rep := &ReporteMetodosPago{Metodos: []MetodoPagoStat{}}
	idx := map[models.MetodoPago]int{}
	for _, v := range ventas {
		i, ok := idx[v.MetodoPago]
		if !ok {
			i = len(rep.Metodos)
			idx[v.MetodoPago] = i
			rep.Metodos = append(rep.Metodos, MetodoPagoStat{MetodoPago: v.MetodoPago})
		}
		m := &rep.Metodos[i]
		m.TotalTransacciones++
		m.MontoTotal = m.MontoTotal.Add(v.Total)

		rep.TotalTransacciones++
		rep.MontoTotal = rep.MontoTotal.Add(v.Total)
	}

	for i := range rep.Metodos {
		m := &rep.Metodos[i]
		m.TicketPromedio = promedio(m.MontoTotal, m.TotalTransacciones)
		m.PorcentajeTransacciones = porcentaje(decimal.NewFromInt(int64(m.TotalTransacciones)), decimal.NewFromInt(int64(rep.TotalTransacciones)))
		m.PorcentajeMonto = porcentaje(m.MontoTotal, rep.MontoTotal)
	}
	sort.SliceStable(rep.Metodos, func(i, j int) bool {
		return rep.Metodos[i].MontoTotal.GreaterThan(rep.Metodos[j].MontoTotal)
	})
	return rep
}

func promedio(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// porcentaje: parte/total*100 con dos decimales; 0 si total es cero.
func porcentaje(parte, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return parte.Mul(cien).Div(total).Round(2)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
