package pagos

import (
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PagoTarjetaRequest struct {
	NumeroTarjeta   string          `json:"numero_tarjeta" validate:"required,numeric,min=13,max=19"`
	FechaExpiracion string          `json:"fecha_expiracion" validate:"required,datetime=01/06"`
	CVV             string          `json:"cvv" validate:"required,numeric,min=3,max=4"`
	NombreTitular   string          `json:"nombre_titular" validate:"required,max=100"`
	Monto           decimal.Decimal `json:"monto" validate:"gt=0"`
	TipoTarjeta     string          `json:"tipo_tarjeta" validate:"omitempty,oneof=credito debito"`
}

type ReembolsoRequest struct {
	ReferenciaOriginal string          `json:"referencia_original" validate:"required"`
	Monto              decimal.Decimal `json:"monto_reembolso" validate:"gt=0"`
	Motivo             string          `json:"motivo" validate:"max=255"`
}

// POST /api/pagos/tarjeta
func PagoTarjetaHandler(sim *Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PagoTarjetaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		tx, err := sim.ProcesarTarjeta(PagoTarjeta(body))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Pago procesado exitosamente", tx)
	}
}

// GET /api/pagos/transaccion/:referencia
func TransaccionHandler(sim *Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tx, err := sim.Transaccion(c.Params("referencia"))
		if err != nil {
			return err
		}
		return httpx.OK(c, tx)
	}
}

// POST /api/pagos/reembolso
func ReembolsoHandler(sim *Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ReembolsoRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		r, err := sim.Reembolsar(SolicitudReembolso(body))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Reembolso procesado exitosamente", r)
	}
}

// GET /api/pagos/metodos
func MetodosHandler(sim *Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return httpx.List(c, sim.MetodosPago())
	}
}
