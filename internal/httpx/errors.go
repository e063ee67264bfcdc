package httpx

import (
	"errors"
	"strconv"

	"fruteria-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler se instala como fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Envelope{Success: false, Error: fe.Message})
	}

	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Interface("request_id", c.Locals("requestid")).
			Msg("error interno")
		return c.Status(status).JSON(Envelope{Success: false, Error: "Error interno del servidor"})
	}

	env := Envelope{Success: false, Error: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		env.Error = appErr.Message
		env.Fields = appErr.Fields
	}
	var stockErr *apperr.InsufficientStockError
	if errors.As(err, &stockErr) {
		env.Fields = map[string]string{
			"codigo_error": "INSUFFICIENT_STOCK",
			"producto_id":  strconv.FormatUint(uint64(stockErr.ProductoID), 10),
			"nombre":       stockErr.Nombre,
			"disponible":   stockErr.Disponible.String(),
			"solicitado":   stockErr.Solicitado.String(),
		}
	}
	return c.Status(status).JSON(env)
}

// StatusOf mapea la clase del error a un código HTTP.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInsufficientStock, apperr.KindAlreadyVoided:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
