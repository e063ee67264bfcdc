package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductoInput struct {
	Nombre       string
	Categoria    string
	UnidadMedida models.UnidadMedida
	PrecioCompra decimal.Decimal
	PrecioVenta  decimal.Decimal
	StockInicial decimal.Decimal
	StockMinimo  *decimal.Decimal // nil = 5
	ImagenURL    string
	Descripcion  string
}

// ProductoPatch: sólo los campos no nil se actualizan. El stock no se
// modifica por esta vía.
type ProductoPatch struct {
	Nombre       *string
	Categoria    *string
	UnidadMedida *models.UnidadMedida
	PrecioCompra *decimal.Decimal
	PrecioVenta  *decimal.Decimal
	StockMinimo  *decimal.Decimal
	ImagenURL    *string
	Descripcion  *string
	Activo       *bool
}

// ProductoResumen agrega al producto lo vendido en ventas no anuladas.
type ProductoResumen struct {
	models.Producto
	TotalVendido      decimal.Decimal `json:"total_vendido"`
	IngresosGenerados decimal.Decimal `json:"ingresos_generados"`
	TotalEntradas     int64           `json:"total_entradas,omitempty"`
	TotalMermas       int64           `json:"total_mermas,omitempty"`
}

type Alerta struct {
	models.Producto
	PorcentajeStock *decimal.Decimal `json:"porcentaje_stock"`
	ValorStock      decimal.Decimal  `json:"valor_stock"`
}

type Categoria struct {
	Nombre    string `json:"nombre"`
	Productos int64  `json:"productos"`
}

var defaultStockMinimo = decimal.NewFromInt(5)

func (s *Service) CreateProducto(ctx context.Context, in ProductoInput, actor audit.Actor) (*models.Producto, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Categoria = strings.TrimSpace(in.Categoria)
	if in.Nombre == "" || in.Categoria == "" {
		return nil, apperr.Validation("Nombre y categoría son obligatorios")
	}
	if in.UnidadMedida == "" {
		in.UnidadMedida = models.UnidadPieza
	}
	if !in.UnidadMedida.Valid() {
		return nil, apperr.Validationf("Unidad de medida inválida: %q", in.UnidadMedida)
	}
	if in.PrecioCompra.IsNegative() || in.PrecioVenta.IsNegative() || in.StockInicial.IsNegative() {
		return nil, apperr.Validation("Precios y stock inicial no pueden ser negativos")
	}
	minimo := defaultStockMinimo
	if in.StockMinimo != nil {
		if in.StockMinimo.IsNegative() {
			return nil, apperr.Validation("stock_minimo no puede ser negativo")
		}
		minimo = *in.StockMinimo
	}
	if err := checkEscalas(map[string]decimal.Decimal{
		"precio_compra": in.PrecioCompra,
		"precio_venta":  in.PrecioVenta,
		"stock_inicial": in.StockInicial,
		"stock_minimo":  minimo,
	}); err != nil {
		return nil, err
	}

	p := models.Producto{
		Nombre:       in.Nombre,
		Categoria:    in.Categoria,
		UnidadMedida: in.UnidadMedida,
		PrecioCompra: in.PrecioCompra,
		PrecioVenta:  in.PrecioVenta,
		StockMinimo:  minimo,
		ImagenURL:    in.ImagenURL,
		Descripcion:  in.Descripcion,
		Activo:       true,
	}

	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		if err := tx.DB().Create(&p).Error; err != nil {
			return err
		}
		if in.StockInicial.IsPositive() {
			movs, err := tx.Apply([]stock.Unit{{
				ProductoID:    p.ID,
				Delta:         in.StockInicial,
				Tipo:          models.MovInicial,
				CostoUnitario: p.PrecioCompra,
				Motivo:        "Stock inicial",
				Referencia:    &stock.Referencia{Tipo: "producto", ID: p.ID},
				UsuarioID:     actor.ID,
			}})
			if err != nil {
				return err
			}
			p.StockActual = movs[0].StockNuevo
		}
		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "producto",
			EntityID:      p.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Producto creado: %s", p.Nombre),
			After:         p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) UpdateProducto(ctx context.Context, id uint, patch ProductoPatch, actor audit.Actor) (*models.Producto, error) {
	updates := map[string]any{}
	if patch.Nombre != nil {
		v := strings.TrimSpace(*patch.Nombre)
		if v == "" {
			return nil, apperr.Validation("El nombre no puede estar vacío")
		}
		updates["nombre"] = v
	}
	if patch.Categoria != nil {
		v := strings.TrimSpace(*patch.Categoria)
		if v == "" {
			return nil, apperr.Validation("La categoría no puede estar vacía")
		}
		updates["categoria"] = v
	}
	if patch.UnidadMedida != nil {
		if !patch.UnidadMedida.Valid() {
			return nil, apperr.Validationf("Unidad de medida inválida: %q", *patch.UnidadMedida)
		}
		updates["unidad_medida"] = *patch.UnidadMedida
	}
	for col, v := range map[string]*decimal.Decimal{
		"precio_compra": patch.PrecioCompra,
		"precio_venta":  patch.PrecioVenta,
		"stock_minimo":  patch.StockMinimo,
	} {
		if v == nil {
			continue
		}
		if v.IsNegative() {
			return nil, apperr.Validationf("%s no puede ser negativo", col)
		}
		if err := checkEscalas(map[string]decimal.Decimal{col: *v}); err != nil {
			return nil, err
		}
		updates[col] = *v
	}
	if patch.ImagenURL != nil {
		updates["imagen_url"] = *patch.ImagenURL
	}
	if patch.Descripcion != nil {
		updates["descripcion"] = *patch.Descripcion
	}
	if patch.Activo != nil {
		updates["activo"] = *patch.Activo
	}

	var p models.Producto
	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		locked, err := tx.Lock(id)
		if err != nil {
			return err
		}
		before := *locked
		if len(updates) == 0 {
			p = before
			return nil
		}
		if err := tx.DB().Model(&models.Producto{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.DB().First(&p, id).Error; err != nil {
			return err
		}
		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "producto",
			EntityID:      id,
			Action:        models.AuditActionUpdate,
			Description:   fmt.Sprintf("Producto actualizado: %s", p.Nombre),
			Before:        before,
			After:         p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProducto da de baja el producto; su historial se conserva.
func (s *Service) DeleteProducto(ctx context.Context, id uint, actor audit.Actor) error {
	return s.engine.Do(ctx, func(tx *stock.Tx) error {
		p, err := tx.Lock(id)
		if err != nil {
			return err
		}
		if !p.Activo {
			return apperr.NotFound(fmt.Sprintf("Producto con ID %d no encontrado", id))
		}
		if err := tx.DB().Model(&models.Producto{}).Where("id = ?", id).Update("activo", false).Error; err != nil {
			return err
		}
		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "producto",
			EntityID:      id,
			Action:        models.AuditActionDelete,
			Description:   fmt.Sprintf("Producto dado de baja: %s", p.Nombre),
			Before:        p,
		})
	})
}

// AjustarStock lleva el stock a nuevoStock (conteo físico) con un
// movimiento ajuste_manual por la diferencia.
func (s *Service) AjustarStock(ctx context.Context, id uint, nuevoStock decimal.Decimal, motivo string, actor audit.Actor) (*models.Producto, error) {
	if nuevoStock.IsNegative() {
		return nil, apperr.Validation("El stock no puede ser negativo")
	}
	if err := stock.CheckCantidad("nuevo_stock", nuevoStock); err != nil {
		return nil, err
	}
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		motivo = "Ajuste manual de inventario"
	}

	var p *models.Producto
	err := s.engine.Do(ctx, func(tx *stock.Tx) error {
		var err error
		p, err = tx.Lock(id)
		if err != nil {
			return err
		}
		delta := nuevoStock.Sub(p.StockActual)
		if delta.IsZero() {
			return nil
		}
		anterior := p.StockActual
		movs, err := tx.Apply([]stock.Unit{{
			ProductoID: id,
			Delta:      delta,
			Tipo:       models.MovAjusteManual,
			Motivo:     motivo,
			Referencia: &stock.Referencia{Tipo: "producto", ID: id},
			UsuarioID:  actor.ID,
		}})
		if err != nil {
			return err
		}
		p.StockActual = movs[0].StockNuevo

		return audit.Write(tx.DB(), audit.LogOptions{
			UsuarioID:     actor.ID,
			UsuarioNombre: actor.Nombre,
			EntityType:    "producto",
			EntityID:      id,
			Action:        models.AuditActionAdjust,
			Description: fmt.Sprintf("Ajuste de stock %s: %s → %s (%s)",
				p.Nombre, anterior.String(), p.StockActual.String(), motivo),
			Before: map[string]string{"stock_actual": anterior.String()},
			After:  map[string]string{"stock_actual": p.StockActual.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// checkEscalas valida cada campo contra la escala de su columna. Los campos
// stock_* son cantidades; el resto, montos.
func checkEscalas(campos map[string]decimal.Decimal) error {
	nombres := make([]string, 0, len(campos))
	for k := range campos {
		nombres = append(nombres, k)
	}
	sort.Strings(nombres)
	for _, k := range nombres {
		check := stock.CheckMonto
		if strings.HasPrefix(k, "stock_") {
			check = stock.CheckCantidad
		}
		if err := check(k, campos[k]); err != nil {
			return err
		}
	}
	return nil
}

type ventaTotal struct {
	ProductoID uint
	Cantidad   decimal.Decimal
	Subtotal   decimal.Decimal
}

// totalesVendidos suma detalle_ventas de ventas completadas por producto.
func (s *Service) totalesVendidos(db *gorm.DB, ids []uint) (map[uint]ventaTotal, error) {
	q := db.Table("detalle_ventas AS dv").
		Select("dv.producto_id AS producto_id, SUM(dv.cantidad) AS cantidad, SUM(dv.subtotal) AS subtotal").
		Joins("JOIN ventas v ON v.id = dv.venta_id").
		Where("v.estado = ?", models.VentaCompletada).
		Group("dv.producto_id")
	if ids != nil {
		q = q.Where("dv.producto_id IN ?", ids)
	}
	var rows []ventaTotal
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]ventaTotal, len(rows))
	for _, r := range rows {
		out[r.ProductoID] = r
	}
	return out, nil
}

func (s *Service) withTotales(db *gorm.DB, productos []models.Producto) ([]ProductoResumen, error) {
	ids := make([]uint, len(productos))
	for i := range productos {
		ids[i] = productos[i].ID
	}
	totales := map[uint]ventaTotal{}
	if len(ids) > 0 {
		var err error
		if totales, err = s.totalesVendidos(db, ids); err != nil {
			return nil, err
		}
	}
	out := make([]ProductoResumen, len(productos))
	for i, p := range productos {
		t := totales[p.ID]
		out[i] = ProductoResumen{Producto: p, TotalVendido: t.Cantidad, IngresosGenerados: t.Subtotal}
	}
	return out, nil
}

type ProductoFilter struct {
	Buscar    string // nombre o categoría
	Categoria string
}

// ListProductos devuelve los productos activos ordenados por nombre.
func (s *Service) ListProductos(ctx context.Context, f ProductoFilter) ([]ProductoResumen, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("activo = ?", true)
	if f.Categoria != "" {
		q = q.Where("categoria = ?", f.Categoria)
	}
	if term := strings.TrimSpace(f.Buscar); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(nombre) LIKE ? OR LOWER(categoria) LIKE ?)", like, like)
	}

	var productos []models.Producto
	if err := q.Order("nombre").Find(&productos).Error; err != nil {
		return nil, apperr.Storage("Error al obtener productos", err)
	}
	out, err := s.withTotales(db, productos)
	if err != nil {
		return nil, apperr.Storage("Error al obtener productos", err)
	}
	return out, nil
}

func (s *Service) GetProducto(ctx context.Context, id uint) (*ProductoResumen, error) {
	db := s.db.WithContext(ctx)

	var p models.Producto
	if err := db.Where("activo = ?", true).First(&p, id).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("Producto con ID %d no encontrado", id))
	}
	out, err := s.withTotales(db, []models.Producto{p})
	if err != nil {
		return nil, apperr.Storage("Error al obtener el producto", err)
	}
	r := out[0]
	if err := db.Model(&models.Entrada{}).Where("producto_id = ?", id).Count(&r.TotalEntradas).Error; err != nil {
		return nil, apperr.Storage("Error al obtener el producto", err)
	}
	if err := db.Model(&models.Merma{}).Where("producto_id = ?", id).Count(&r.TotalMermas).Error; err != nil {
		return nil, apperr.Storage("Error al obtener el producto", err)
	}
	return &r, nil
}

// Alertas lista los productos activos con stock_actual <= stock_minimo, los
// más críticos primero.
func (s *Service) Alertas(ctx context.Context) ([]Alerta, error) {
	var productos []models.Producto
	if err := s.db.WithContext(ctx).
		Where("activo = ? AND stock_actual <= stock_minimo", true).
		Find(&productos).Error; err != nil {
		return nil, apperr.Storage("Error al obtener alertas de stock", err)
	}

	cien := decimal.NewFromInt(100)
	out := make([]Alerta, len(productos))
	for i, p := range productos {
		a := Alerta{Producto: p, ValorStock: p.StockActual.Mul(p.PrecioVenta)}
		if !p.StockMinimo.IsZero() {
			pct := p.StockActual.Div(p.StockMinimo).Mul(cien).Round(2)
			a.PorcentajeStock = &pct
		}
		out[i] = a
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].PorcentajeStock, out[j].PorcentajeStock
		if pi != nil && pj != nil && !pi.Equal(*pj) {
			return pi.LessThan(*pj)
		}
		return out[i].StockActual.LessThan(out[j].StockActual)
	})
	return out, nil
}

func (s *Service) Categorias(ctx context.Context) ([]Categoria, error) {
	var out []Categoria
	err := s.db.WithContext(ctx).Model(&models.Producto{}).
		Select("categoria AS nombre, COUNT(*) AS productos").
		Where("activo = ?", true).
		Group("categoria").
		Order("categoria").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Storage("Error al obtener categorías", err)
	}
	return out, nil
}

type Kardex struct {
	Reconciliacion *stock.Reconciliation   `json:"reconciliacion"`
	Movimientos    []models.MovimientoStock `json:"movimientos"`
}

func (s *Service) Kardex(ctx context.Context, id uint, f stock.MovementFilter) (*Kardex, error) {
	rec, err := s.ledger.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}
	movs, err := s.ledger.Movements(ctx, id, f)
	if err != nil {
		return nil, err
	}
	return &Kardex{Reconciliacion: rec, Movimientos: movs}, nil
}
