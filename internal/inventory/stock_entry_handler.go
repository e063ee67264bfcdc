package inventory

import (
	"strconv"
	"time"

	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type EntradaRequest struct {
	ProductoID   uint            `json:"producto_id" validate:"required"`
	Cantidad     decimal.Decimal `json:"cantidad" validate:"gt=0"`
	PrecioCompra decimal.Decimal `json:"precio_compra" validate:"gte=0"`
	Proveedor    string          `json:"proveedor" validate:"max=100"`
	ProveedorID  *uint           `json:"proveedor_id"`
	Nota         string          `json:"nota" validate:"max=500"`
	FechaEntrada string          `json:"fecha_entrada" validate:"omitempty,datetime=2006-01-02"`
}

func (r EntradaRequest) input() EntradaInput {
	return EntradaInput{
		ProductoID:   r.ProductoID,
		Cantidad:     r.Cantidad,
		PrecioCompra: r.PrecioCompra,
		Proveedor:    r.Proveedor,
		ProveedorID:  r.ProveedorID,
		Nota:         r.Nota,
		FechaEntrada: parseFecha(r.FechaEntrada),
	}
}

// parseFecha asume formato ya validado por el tag datetime.
func parseFecha(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil
	}
	return &t
}

// GET /api/entradas?producto_id=1&proveedor=...&fecha_inicio=...&fecha_fin=...
func ListEntradasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := EntradaFilter{Proveedor: c.Query("proveedor")}
		if v, err := strconv.ParseUint(c.Query("producto_id"), 10, 64); err == nil {
			f.ProductoID = uint(v)
		}
		var err error
		if f.FechaInicio, err = httpx.QueryDate(c, "fecha_inicio"); err != nil {
			return err
		}
		if f.FechaFin, err = httpx.QueryDate(c, "fecha_fin"); err != nil {
			return err
		}

		entradas, err := svc.ListEntradas(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.List(c, entradas)
	}
}

// GET /api/entradas/proveedores
func ResumenProveedoresHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resumen, err := svc.ResumenProveedores(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, resumen)
	}
}

// GET /api/entradas/:id
func GetEntradaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		e, err := svc.GetEntrada(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, e)
	}
}

// POST /api/entradas
func CreateEntradaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body EntradaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		e, err := svc.RecordEntry(c.UserContext(), body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Entrada registrada exitosamente", e)
	}
}

// PUT /api/entradas/:id
func UpdateEntradaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body EntradaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		e, err := svc.UpdateEntry(c.UserContext(), id, body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Entrada actualizada exitosamente", e)
	}
}

// DELETE /api/entradas/:id
func DeleteEntradaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteEntry(c.UserContext(), id, auth.Actor(c)); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Entrada eliminada exitosamente", nil)
	}
}
