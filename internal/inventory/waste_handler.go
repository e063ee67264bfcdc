package inventory

import (
	"strconv"

	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type MermaRequest struct {
	ProductoID  uint               `json:"producto_id" validate:"required"`
	Cantidad    decimal.Decimal    `json:"cantidad" validate:"gt=0"`
	Motivo      models.MotivoMerma `json:"motivo" validate:"required,oneof=vencimiento daño robo otro"`
	Descripcion string             `json:"descripcion" validate:"max=500"`
	FechaMerma  string             `json:"fecha_merma" validate:"omitempty,datetime=2006-01-02"`
}

func (r MermaRequest) input() MermaInput {
	return MermaInput{
		ProductoID:  r.ProductoID,
		Cantidad:    r.Cantidad,
		Motivo:      r.Motivo,
		Descripcion: r.Descripcion,
		FechaMerma:  parseFecha(r.FechaMerma),
	}
}

func mermaFilter(c *fiber.Ctx) (MermaFilter, error) {
	f := MermaFilter{Motivo: models.MotivoMerma(c.Query("motivo"))}
	if v, err := strconv.ParseUint(c.Query("producto_id"), 10, 64); err == nil {
		f.ProductoID = uint(v)
	}
	var err error
	if f.FechaInicio, err = httpx.QueryDate(c, "fecha_inicio"); err != nil {
		return f, err
	}
	if f.FechaFin, err = httpx.QueryDate(c, "fecha_fin"); err != nil {
		return f, err
	}
	return f, nil
}

// GET /api/mermas?motivo=robo&producto_id=1&fecha_inicio=...&fecha_fin=...
func ListMermasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := mermaFilter(c)
		if err != nil {
			return err
		}
		mermas, err := svc.ListMermas(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.List(c, mermas)
	}
}

// GET /api/mermas/reportes?fecha_inicio=...&fecha_fin=...&motivo=...
func ReportesMermasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := mermaFilter(c)
		if err != nil {
			return err
		}
		reportes, err := svc.Reportes(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.List(c, reportes)
	}
}

// GET /api/mermas/:id
func GetMermaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		m, err := svc.GetMerma(c.UserContext(), id)
		if err != nil {
			return err
		}
		return httpx.OK(c, m)
	}
}

// POST /api/mermas
func CreateMermaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MermaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		m, err := svc.RecordMerma(c.UserContext(), body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Merma registrada exitosamente", m)
	}
}

// PUT /api/mermas/:id
func UpdateMermaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body MermaRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		m, err := svc.UpdateMerma(c.UserContext(), id, body.input(), auth.Actor(c))
		if err != nil {
			return err
		}
		return httpx.OKMessage(c, "Merma actualizada exitosamente", m)
	}
}

// DELETE /api/mermas/:id
func DeleteMermaHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteMerma(c.UserContext(), id, auth.Actor(c)); err != nil {
			return err
		}
		return httpx.OKMessage(c, "Merma eliminada exitosamente", nil)
	}
}
