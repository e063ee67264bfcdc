package stats

import (
	"context"
	"fmt"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/cache"
	"fruteria-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dashboardKey = "estadisticas:dashboard"

type ResumenPeriodo struct {
	TotalVentas    int             `json:"total_ventas"`
	TotalIngresos  decimal.Decimal `json:"total_ingresos"`
	TicketPromedio decimal.Decimal `json:"ticket_promedio"`
}

func (r *ResumenPeriodo) sumar(v *models.Venta) {
	r.TotalVentas++
	r.TotalIngresos = r.TotalIngresos.Add(v.Total)
}

type MermasPeriodo struct {
	TotalMermas     int             `json:"total_mermas"`
	CantidadPerdida decimal.Decimal `json:"cantidad_perdida"`
	ValorPerdido    decimal.Decimal `json:"valor_perdido"`
}

type MetodoPagoDia struct {
	Cantidad   int             `json:"cantidad"`
	Monto      decimal.Decimal `json:"monto"`
	Porcentaje decimal.Decimal `json:"porcentaje"`
}

type Dashboard struct {
	VentasHoy           ResumenPeriodo                      `json:"ventas_hoy"`
	VentasSemana        ResumenPeriodo                      `json:"ventas_semana"`
	VentasMes           ResumenPeriodo                      `json:"ventas_mes"`
	TotalProductos      int                                 `json:"total_productos"`
	ValorInventario     decimal.Decimal                     `json:"valor_inventario"`
	ProductosStockBajo  int                                 `json:"productos_stock_bajo"`
	PorcentajeStockBajo decimal.Decimal                     `json:"porcentaje_stock_bajo"`
	EstadoInventario    string                              `json:"estado_inventario"`
	MermasMes           MermasPeriodo                       `json:"mermas_mes"`
	PorcentajeMermas    decimal.Decimal                     `json:"porcentaje_mermas"`
	MetodosPagoHoy      map[models.MetodoPago]MetodoPagoDia `json:"metodos_pago_hoy"`
	GeneradoEn          time.Time                           `json:"generado_en"`
}

// estadoInventario según la cantidad de productos con stock bajo.
func estadoInventario(stockBajo int) string {
	switch {
	case stockBajo == 0:
		return "Excelente"
	case stockBajo <= 5:
		return "Bueno"
	case stockBajo <= 10:
		return "Regular"
	}
	return "Crítico"
}

// Dashboard se guarda en caché con el TTL configurado, así que puede
// quedar hasta ese tiempo detrás de las últimas ventas.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return cache.Remember(ctx, s.cache, dashboardKey, s.calcularDashboard)
}

// InvalidarDashboard descarta el dashboard cacheado. Se registra con
// stock.Engine.OnCommit.
func (s *Service) InvalidarDashboard(ctx context.Context) {
	if err := s.cache.Delete(ctx, dashboardKey); err != nil {
		log.Warn().Err(err).Str("key", dashboardKey).Msg("cache: no se pudo invalidar")
	}
}

func (s *Service) calcularDashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	hoy := startOfDay(now)
	lunes := inicioSemana(hoy)
	mes := inicioMes(hoy)

	desde := lunes
	if mes.Before(desde) {
		desde = mes
	}
	ventas, err := s.ventasCompletadas(ctx, Rango{Desde: &desde, Hasta: &hoy})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{MetodosPagoHoy: map[models.MetodoPago]MetodoPagoDia{}, GeneradoEn: now}
	for i := range ventas {
		v := &ventas[i]
		if !v.FechaVenta.Before(mes) {
			d.VentasMes.sumar(v)
		}
		if !v.FechaVenta.Before(lunes) {
			d.VentasSemana.sumar(v)
		}
		if !v.FechaVenta.Before(hoy) {
			d.VentasHoy.sumar(v)
			m := d.MetodosPagoHoy[v.MetodoPago]
			m.Cantidad++
			m.Monto = m.Monto.Add(v.Total)
			d.MetodosPagoHoy[v.MetodoPago] = m
		}
	}
	for _, r := range []*ResumenPeriodo{&d.VentasHoy, &d.VentasSemana, &d.VentasMes} {
		r.TicketPromedio = promedio(r.TotalIngresos, r.TotalVentas)
	}
	for k, m := range d.MetodosPagoHoy {
		m.Porcentaje = porcentaje(m.Monto, d.VentasHoy.TotalIngresos)
		d.MetodosPagoHoy[k] = m
	}

	var productos []models.Producto
	if err := s.db.WithContext(ctx).Where("activo = ?", true).Find(&productos).Error; err != nil {
		return nil, apperr.FromDB(err, "Registro no encontrado")
	}
	for i := range productos {
		p := &productos[i]
		d.TotalProductos++
		d.ValorInventario = d.ValorInventario.Add(p.StockActual.Mul(p.PrecioVenta))
		if p.StockBajo() {
			d.ProductosStockBajo++
		}
	}
	d.ValorInventario = d.ValorInventario.Round(2)
	total := decimal.NewFromInt(int64(d.TotalProductos))
	d.PorcentajeStockBajo = porcentaje(decimal.NewFromInt(int64(d.ProductosStockBajo)), total)
	d.EstadoInventario = estadoInventario(d.ProductosStockBajo)

	d.MermasMes, err = s.mermasEntre(ctx, mes, mes.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	d.PorcentajeMermas = porcentaje(decimal.NewFromInt(int64(d.MermasMes.TotalMermas)), total)
	return d, nil
}

type mermaValorizada struct {
	Cantidad    decimal.Decimal
	PrecioVenta decimal.Decimal
}

// mermasEntre valoriza las mermas de [desde, hasta) a precio de venta.
func (s *Service) mermasEntre(ctx context.Context, desde, hasta time.Time) (MermasPeriodo, error) {
	var rows []mermaValorizada
	err := s.db.WithContext(ctx).
		Table("mermas AS m").
		Select("m.cantidad, p.precio_venta").
		Joins("JOIN productos p ON p.id = m.producto_id").
		Where("m.fecha_merma >= ? AND m.fecha_merma < ?", desde, hasta).
		Scan(&rows).Error
	if err != nil {
		return MermasPeriodo{}, apperr.FromDB(err, "Registro no encontrado")
	}

	var out MermasPeriodo
	for _, r := range rows {
		out.TotalMermas++
		out.CantidadPerdida = out.CantidadPerdida.Add(r.Cantidad)
		out.ValorPerdido = out.ValorPerdido.Add(r.Cantidad.Mul(r.PrecioVenta))
	}
	out.ValorPerdido = out.ValorPerdido.Round(2)
	return out, nil
}

// ------------------------------------------------------------
// Resumen general
// ------------------------------------------------------------

type VentasPeriodo struct {
	TotalVentas            int             `json:"total_ventas"`
	TotalIngresos          decimal.Decimal `json:"total_ingresos"`
	GananciaEstimada       decimal.Decimal `json:"ganancia_estimada"`
	PromedioDiarioVentas   decimal.Decimal `json:"promedio_diario_ventas"`
	PromedioDiarioIngresos decimal.Decimal `json:"promedio_diario_ingresos"`
	DiasConDatos           int             `json:"dias_con_datos"`
}

type ResumenVentas struct {
	Hoy     ResumenPeriodo `json:"hoy"`
	Semana  ResumenPeriodo `json:"semana"`
	Mes     ResumenPeriodo `json:"mes"`
	Periodo VentasPeriodo  `json:"periodo"`
}

type ResumenInventario struct {
	TotalProductos      int             `json:"total_productos"`
	ProductosStockBajo  int             `json:"productos_stock_bajo"`
	ValorTotal          decimal.Decimal `json:"valor_total"`
	PorcentajeStockBajo decimal.Decimal `json:"porcentaje_stock_bajo"`
}

type Indicadores struct {
	TicketPromedio         decimal.Decimal `json:"ticket_promedio"`
	MargenGananciaEstimado decimal.Decimal `json:"margen_ganancia_estimado"`
	EfectividadVentas      string          `json:"efectividad_ventas"`
}

type Resumen struct {
	Periodo      string            `json:"periodo"`
	FechaInicio  string            `json:"fecha_inicio"`
	FechaFin     string            `json:"fecha_fin"`
	Ventas       ResumenVentas     `json:"ventas"`
	Inventario   ResumenInventario `json:"inventario"`
	MermasMes    MermasPeriodo     `json:"mermas_mes"`
	TopProductos []ProductoStat    `json:"top_productos"`
	MetodosPago  []MetodoPagoStat  `json:"metodos_pago"`
	Indicadores  Indicadores       `json:"indicadores"`
}

const (
	topProductosResumen = 5
	periodoMaximo       = 365
)

// Resumen combina el dashboard con los últimos periodo días (hoy incluido).
func (s *Service) Resumen(ctx context.Context, periodo int) (*Resumen, error) {
	if periodo <= 0 || periodo > periodoMaximo {
		return nil, apperr.Validation(fmt.Sprintf("periodo debe estar entre 1 y %d días", periodoMaximo))
	}

	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	r := ultimosDias(s.now(), periodo)

	ventas, err := s.ventasCompletadas(ctx, r)
	if err != nil {
		return nil, err
	}
	stats, err := s.productoStats(ctx, r)
	if err != nil {
		return nil, err
	}

	vp := VentasPeriodo{}
	dias := map[string]struct{}{}
	for _, v := range ventas {
		vp.TotalVentas++
		vp.TotalIngresos = vp.TotalIngresos.Add(v.Total)
		dias[v.FechaVenta.In(time.Local).Format(fechaLayout)] = struct{}{}
	}
	for _, p := range stats {
		vp.GananciaEstimada = vp.GananciaEstimada.Add(p.GananciaGenerada)
	}
	n := decimal.NewFromInt(int64(periodo))
	vp.PromedioDiarioVentas = decimal.NewFromInt(int64(vp.TotalVentas)).Div(n).Round(2)
	vp.PromedioDiarioIngresos = vp.TotalIngresos.Div(n).Round(2)
	vp.DiasConDatos = len(dias)

	efectividad := "Baja"
	if vp.PromedioDiarioVentas.IsPositive() {
		efectividad = "Buena"
	}

	return &Resumen{
		Periodo:     fmt.Sprintf("%d días", periodo),
		FechaInicio: r.Desde.Format(fechaLayout),
		FechaFin:    r.Hasta.Format(fechaLayout),
		Ventas: ResumenVentas{
			Hoy:     d.VentasHoy,
			Semana:  d.VentasSemana,
			Mes:     d.VentasMes,
			Periodo: vp,
		},
		Inventario: ResumenInventario{
			TotalProductos:      d.TotalProductos,
			ProductosStockBajo:  d.ProductosStockBajo,
			ValorTotal:          d.ValorInventario,
			PorcentajeStockBajo: d.PorcentajeStockBajo,
		},
		MermasMes:    d.MermasMes,
		TopProductos: topPor(stats, topProductosResumen, func(p ProductoStat) decimal.Decimal { return p.IngresosGenerados }),
		MetodosPago:  agruparMetodos(ventas).Metodos,
		Indicadores: Indicadores{
			TicketPromedio:         d.VentasHoy.TicketPromedio,
			MargenGananciaEstimado: porcentaje(vp.GananciaEstimada, vp.TotalIngresos),
			EfectividadVentas:      efectividad,
		},
	}, nil
}

// inicioSemana: lunes de la semana de t.
func inicioSemana(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}

func inicioMes(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
