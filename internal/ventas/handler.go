package ventas

import (
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type DetalleRequest struct {
	ProductoID     uint            `json:"producto_id" validate:"required"`
	Cantidad       decimal.Decimal `json:"cantidad" validate:"gt=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"gt=0"`
	Subtotal       decimal.Decimal `json:"subtotal" validate:"gt=0"`
}

type CreateVentaRequest struct {
	ClienteNombre   string            `json:"cliente_nombre" validate:"max=100"`
	ClienteTelefono *string           `json:"cliente_telefono" validate:"omitempty,max=30"`
	ClienteEmail    *string           `json:"cliente_email" validate:"omitempty,email"`
	Total           decimal.Decimal   `json:"total" validate:"gt=0"`
	MetodoPago      models.MetodoPago `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta_credito tarjeta_debito transferencia"`
	ReferenciaPago  *string           `json:"referencia_pago" validate:"omitempty,max=100"`
	Detalles        []DetalleRequest  `json:"detalles" validate:"required,min=1,dive"`
}

type AnularVentaRequest struct {
	Motivo string `json:"motivo" validate:"required,max=255"`
}

// GET /api/ventas
func ListVentasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ventas, err := svc.List(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.List(c, ventas)
	}
}

// GET /api/ventas/:id
func GetVentaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		venta, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, venta)
	}
}

// POST /api/ventas
func CreateVentaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateVentaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		lines := make([]SaleLine, len(body.Detalles))
		for i, d := range body.Detalles {
			lines[i] = SaleLine(d)
		}

		venta, err := svc.CreateSale(c.UserContext(), SaleHeader{
			ClienteNombre:   body.ClienteNombre,
			ClienteTelefono: body.ClienteTelefono,
			ClienteEmail:    body.ClienteEmail,
			Total:           body.Total,
			MetodoPago:      body.MetodoPago,
			ReferenciaPago:  body.ReferenciaPago,
			Actor:           auth.Actor(c),
		}, lines)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Venta registrada exitosamente", venta)
	}
}

// GET /api/ventas/historial?fecha_inicio=2024-01-01&fecha_fin=2024-01-31&metodo_pago=efectivo&cliente=ana&estado=completada&limit=50
func HistorialHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := HistorialFilter{
			MetodoPago: models.MetodoPago(c.Query("metodo_pago")),
			Cliente:    c.Query("cliente"),
			Estado:     models.EstadoVenta(c.Query("estado")),
			Limit:      httpx.QueryInt(c, "limit", 0),
		}
		if f.MetodoPago != "" && !f.MetodoPago.Valid() {
			return apperr.Validationf("metodo_pago inválido: %q", f.MetodoPago)
		}

		var err error
		if f.FechaInicio, err = httpx.QueryDate(c, "fecha_inicio"); err != nil {
			return err
		}
		if f.FechaFin, err = httpx.QueryDate(c, "fecha_fin"); err != nil {
			return err
		}
		if f.FechaInicio != nil && f.FechaFin != nil && f.FechaFin.Before(*f.FechaInicio) {
			return apperr.Validation("fecha_fin no puede ser anterior a fecha_inicio")
		}

		ventas, err := svc.Historial(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.List(c, ventas)
	}
}

// GET /api/ventas/resumen/dia
func ResumenDiaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resumen, err := svc.ResumenDelDia(c.UserContext(), time.Now())
		if err != nil {
			return err
		}
		return httpx.OK(c, resumen)
	}
}

// POST /api/ventas/:id/anular
func AnularVentaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body AnularVentaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		if err := svc.VoidSale(c.UserContext(), id, body.Motivo, auth.Actor(c)); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Venta anulada exitosamente", nil)
	}
}
