package inventory

import (
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateProductoRequest struct {
	Nombre       string              `json:"nombre" validate:"required,max=100"`
	Categoria    string              `json:"categoria" validate:"required,max=50"`
	UnidadMedida models.UnidadMedida `json:"unidad_medida" validate:"omitempty,oneof=kg pza lt caja"`
	PrecioCompra decimal.Decimal     `json:"precio_compra" validate:"gte=0"`
	PrecioVenta  decimal.Decimal     `json:"precio_venta" validate:"gte=0"`
	StockActual  decimal.Decimal     `json:"stock_actual" validate:"gte=0"` // stock inicial
	StockMinimo  *decimal.Decimal    `json:"stock_minimo"`
	ImagenURL    string              `json:"imagen_url" validate:"omitempty,max=255"`
	Descripcion  string              `json:"descripcion" validate:"omitempty,max=500"`
}

type UpdateProductoRequest struct {
	Nombre       *string              `json:"nombre" validate:"omitempty,max=100"`
	Categoria    *string              `json:"categoria" validate:"omitempty,max=50"`
	UnidadMedida *models.UnidadMedida `json:"unidad_medida" validate:"omitempty,oneof=kg pza lt caja"`
	PrecioCompra *decimal.Decimal     `json:"precio_compra"`
	PrecioVenta  *decimal.Decimal     `json:"precio_venta"`
	StockMinimo  *decimal.Decimal     `json:"stock_minimo"`
	ImagenURL    *string              `json:"imagen_url" validate:"omitempty,max=255"`
	Descripcion  *string              `json:"descripcion" validate:"omitempty,max=500"`
	Activo       *bool                `json:"activo"`
}

type AjusteStockRequest struct {
	StockActual decimal.Decimal `json:"stock_actual" validate:"gte=0"`
	Motivo      string          `json:"motivo" validate:"max=255"`
}

// GET /api/productos?buscar=man&categoria=frutas
func ListProductosHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productos, err := svc.ListProductos(c.UserContext(), ProductoFilter{
			Buscar:    c.Query("buscar"),
			Categoria: c.Query("categoria"),
		})
		if err != nil {
			return err
		}
		return httpx.List(c, productos)
	}
}

// GET /api/productos/categoria/:categoria
func ProductosPorCategoriaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productos, err := svc.ListProductos(c.UserContext(), ProductoFilter{Categoria: c.Params("categoria")})
		if err != nil {
			return err
		}
		return httpx.List(c, productos)
	}
}

// GET /api/productos/alertas
func AlertasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		alertas, err := svc.Alertas(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, alertas)
	}
}

// GET /api/productos/:id
func GetProductoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.GetProducto(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, p)
	}
}

// POST /api/productos
func CreateProductoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductoRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.CreateProducto(c.UserContext(), ProductoInput{
			Nombre:       body.Nombre,
			Categoria:    body.Categoria,
			UnidadMedida: body.UnidadMedida,
			PrecioCompra: body.PrecioCompra,
			PrecioVenta:  body.PrecioVenta,
			StockInicial: body.StockActual,
			StockMinimo:  body.StockMinimo,
			ImagenURL:    body.ImagenURL,
			Descripcion:  body.Descripcion,
		}, auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Producto creado exitosamente", p)
	}
}

// PUT /api/productos/:id
func UpdateProductoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateProductoRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.UpdateProducto(c.UserContext(), id, ProductoPatch(body), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Producto actualizado exitosamente", p)
	}
}

// DELETE /api/productos/:id
func DeleteProductoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteProducto(c.UserContext(), id, auth.Actor(c)); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Producto eliminado exitosamente", nil)
	}
}

// PUT /api/productos/:id/stock
func AjustarStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body AjusteStockRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.AjustarStock(c.UserContext(), id, body.StockActual, body.Motivo, auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Stock actualizado exitosamente", p)
	}
}

// GET /api/productos/:id/kardex?tipo=venta&fecha_inicio=2024-01-01&fecha_fin=2024-01-31&limit=100
func KardexHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		f := stock.MovementFilter{
			Tipo:  models.TipoMovimiento(c.Query("tipo")),
			Limit: httpx.QueryInt(c, "limit", 200),
		}
		if f.Desde, err = httpx.QueryDate(c, "fecha_inicio"); err != nil {
			return err
		}
		hasta, err := httpx.QueryDate(c, "fecha_fin")
		if err != nil {
			return err
		}
		if hasta != nil {
			fin := startOfDay(*hasta).AddDate(0, 0, 1).Add(-1)
			f.Hasta = &fin
		}

		k, err := svc.Kardex(c.UserContext(), id, f)
		if err != nil {
			return err
		}
		return httpx.OK(c, k)
	}
}
