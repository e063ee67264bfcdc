// Package httpx reúne lo común a todos los handlers: el sobre JSON de
// respuesta, el bind + validación de requests y el ErrorHandler de fiber.
package httpx

import (
	"strconv"
	"time"

	"fruteria-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// Envelope es la forma de toda respuesta de la API.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func OKMessage(c *fiber.Ctx, msg string, data any) error {
	return c.JSON(Envelope{Success: true, Message: msg, Data: data})
}

func Created(c *fiber.Ctx, msg string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Message: msg, Data: data})
}

// List agrega count al sobre.
func List[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return c.JSON(Envelope{Success: true, Data: items, Count: &n})
}

// ParamID lee un parámetro de ruta numérico positivo.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validationf("%s inválido", name)
	}
	return uint(id), nil
}

// QueryInt devuelve def si el parámetro falta o no es un entero positivo.
func QueryInt(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// QueryDate lee un parámetro YYYY-MM-DD opcional en hora local.
func QueryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, apperr.Validationf("%s debe tener formato YYYY-MM-DD", name)
	}
	return &t, nil
}
