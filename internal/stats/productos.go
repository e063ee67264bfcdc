package stats

import (
	"context"
	"sort"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/models"

	"github.com/shopspring/decimal"
)

type NivelStock string

const (
	NivelBajo  NivelStock = "Bajo"
	NivelMedio NivelStock = "Medio"
	NivelAlto  NivelStock = "Alto"
)

// nivelStock: Bajo <= mínimo, Medio <= 2×mínimo, Alto por encima.
func nivelStock(p *models.Producto) NivelStock {
	switch {
	case p.StockActual.LessThanOrEqual(p.StockMinimo):
		return NivelBajo
	case p.StockActual.LessThanOrEqual(p.StockMinimo.Mul(decimal.NewFromInt(2))):
		return NivelMedio
	}
	return NivelAlto
}

type ProductoStat struct {
	ID                uint                `json:"id"`
	Nombre            string              `json:"nombre"`
	Categoria         string              `json:"categoria"`
	UnidadMedida      models.UnidadMedida `json:"unidad_medida"`
	StockActual       decimal.Decimal     `json:"stock_actual"`
	StockMinimo       decimal.Decimal     `json:"stock_minimo"`
	PrecioCompra      decimal.Decimal     `json:"precio_compra"`
	PrecioVenta       decimal.Decimal     `json:"precio_venta"`
	TotalVendido      decimal.Decimal     `json:"total_vendido"`
	IngresosGenerados decimal.Decimal     `json:"ingresos_generados"`
	GananciaGenerada  decimal.Decimal     `json:"ganancia_generada"`
	VecesVendido      int                 `json:"veces_vendido"`
	NivelStock        NivelStock          `json:"nivel_stock"`
}

type CategoriaStat struct {
	Categoria          string          `json:"categoria"`
	TotalProductos     int             `json:"total_productos"`
	TotalVendido       decimal.Decimal `json:"total_vendido"`
	IngresosGenerados  decimal.Decimal `json:"ingresos_generados"`
	GananciaGenerada   decimal.Decimal `json:"ganancia_generada"`
	ProductosStockBajo int             `json:"productos_stock_bajo"`
	ValorInventario    decimal.Decimal `json:"valor_inventario"`
}

type TotalesProductos struct {
	TotalProductos         int             `json:"total_productos"`
	TotalVendido           decimal.Decimal `json:"total_vendido"`
	IngresosTotales        decimal.Decimal `json:"ingresos_totales"`
	GananciaTotal          decimal.Decimal `json:"ganancia_total"`
	ValorInventarioTotal   decimal.Decimal `json:"valor_inventario_total"`
	ProductosStockBajo     int             `json:"productos_stock_bajo"`
	ProductosSinMovimiento int             `json:"productos_sin_movimiento"`
}

type ReporteProductos struct {
	Productos     []ProductoStat   `json:"productos"`
	PorCategoria  []CategoriaStat  `json:"por_categoria"`
	MasVendidos   []ProductoStat   `json:"mas_vendidos"`
	MasRentables  []ProductoStat   `json:"mas_rentables"`
	StockBajo     []ProductoStat   `json:"stock_bajo"`
	SinMovimiento []ProductoStat   `json:"sin_movimiento"`
	Totales       TotalesProductos `json:"totales"`
}

const topProductosReporte = 10

// productoStats cruza los productos activos con lo vendido en r. La ganancia
// usa los precios actuales del producto.
func (s *Service) productoStats(ctx context.Context, r Rango) ([]ProductoStat, error) {
	var productos []models.Producto
	if err := s.db.WithContext(ctx).Where("activo = ?", true).Order("nombre ASC").Find(&productos).Error; err != nil {
		return nil, apperr.FromDB(err, "Registro no encontrado")
	}
	lineas, err := s.lineasVendidas(ctx, r)
	if err != nil {
		return nil, err
	}

	out := make([]ProductoStat, len(productos))
	idx := make(map[uint]int, len(productos))
	for i := range productos {
		p := &productos[i]
		idx[p.ID] = i
		out[i] = ProductoStat{
			ID:           p.ID,
			Nombre:       p.Nombre,
			Categoria:    p.Categoria,
			UnidadMedida: p.UnidadMedida,
			StockActual:  p.StockActual,
			StockMinimo:  p.StockMinimo,
			PrecioCompra: p.PrecioCompra,
			PrecioVenta:  p.PrecioVenta,
			NivelStock:   nivelStock(p),
		}
	}

	ventas := make(map[uint]map[uint]struct{})
	for _, l := range lineas {
		i, ok := idx[l.ProductoID]
		if !ok {
			continue // producto dado de baja
		}
		ps := &out[i]
		ps.TotalVendido = ps.TotalVendido.Add(l.Cantidad)
		ps.IngresosGenerados = ps.IngresosGenerados.Add(l.Subtotal)
		if ventas[l.ProductoID] == nil {
			ventas[l.ProductoID] = map[uint]struct{}{}
		}
		ventas[l.ProductoID][l.VentaID] = struct{}{}
	}
	for i := range out {
		ps := &out[i]
		ps.GananciaGenerada = ps.TotalVendido.Mul(ps.PrecioVenta.Sub(ps.PrecioCompra)).Round(2)
		ps.VecesVendido = len(ventas[ps.ID])
	}
	return out, nil
}

// Productos es el reporte histórico de productos activos.
func (s *Service) Productos(ctx context.Context) (*ReporteProductos, error) {
	stats, err := s.productoStats(ctx, Rango{})
	if err != nil {
		return nil, err
	}

	rep := &ReporteProductos{
		Productos:     stats,
		PorCategoria:  []CategoriaStat{},
		StockBajo:     []ProductoStat{},
		SinMovimiento: []ProductoStat{},
	}

	cats := map[string]*CategoriaStat{}
	t := &rep.Totales
	for _, p := range stats {
		valor := p.StockActual.Mul(p.PrecioVenta)

		nombre := p.Categoria
		if nombre == "" {
			nombre = "Sin categoría"
		}
		c, ok := cats[nombre]
		if !ok {
			c = &CategoriaStat{Categoria: nombre}
			cats[nombre] = c
		}
		c.TotalProductos++
		c.TotalVendido = c.TotalVendido.Add(p.TotalVendido)
		c.IngresosGenerados = c.IngresosGenerados.Add(p.IngresosGenerados)
		c.GananciaGenerada = c.GananciaGenerada.Add(p.GananciaGenerada)
		c.ValorInventario = c.ValorInventario.Add(valor)

		t.TotalProductos++
		t.TotalVendido = t.TotalVendido.Add(p.TotalVendido)
		t.IngresosTotales = t.IngresosTotales.Add(p.IngresosGenerados)
		t.GananciaTotal = t.GananciaTotal.Add(p.GananciaGenerada)
		t.ValorInventarioTotal = t.ValorInventarioTotal.Add(valor)

		if p.NivelStock == NivelBajo {
			c.ProductosStockBajo++
			rep.StockBajo = append(rep.StockBajo, p)
		}
		if p.TotalVendido.IsZero() {
			rep.SinMovimiento = append(rep.SinMovimiento, p)
		}
	}
	t.ProductosStockBajo = len(rep.StockBajo)
	t.ProductosSinMovimiento = len(rep.SinMovimiento)

	for _, c := range cats {
		c.ValorInventario = c.ValorInventario.Round(2)
		rep.PorCategoria = append(rep.PorCategoria, *c)
	}
	sort.Slice(rep.PorCategoria, func(i, j int) bool {
		return rep.PorCategoria[i].Categoria < rep.PorCategoria[j].Categoria
	})
	t.ValorInventarioTotal = t.ValorInventarioTotal.Round(2)

	rep.MasVendidos = topPor(stats, topProductosReporte, func(p ProductoStat) decimal.Decimal { return p.TotalVendido })
	rep.MasRentables = topPor(stats, topProductosReporte, func(p ProductoStat) decimal.Decimal { return p.GananciaGenerada })
	return rep, nil
}

// TopProductos devuelve los limit productos activos con más ingresos en r.
func (s *Service) TopProductos(ctx context.Context, limit int, r Rango) ([]ProductoStat, error) {
	if limit <= 0 {
		return nil, apperr.Validation("limit debe ser mayor a 0")
	}
	if err := r.validar(); err != nil {
		return nil, err
	}
	stats, err := s.productoStats(ctx, r)
	if err != nil {
		return nil, err
	}
	return topPor(stats, limit, func(p ProductoStat) decimal.Decimal { return p.IngresosGenerados }), nil
}

// topPor ordena una copia de src por key descendente (estable por nombre).
func topPor(src []ProductoStat, n int, key func(ProductoStat) decimal.Decimal) []ProductoStat {
	out := make([]ProductoStat, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).GreaterThan(key(out[j]))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
