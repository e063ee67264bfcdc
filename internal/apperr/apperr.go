// Package apperr define los tipos de error que el núcleo devuelve. La capa
// HTTP los traduce a códigos de estado; el núcleo nunca los registra ni los
// descarta.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientStock
	KindAlreadyVoided
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindAlreadyVoided:
		return "already_voided"
	case KindForbidden:
		return "forbidden"
	default:
		return "storage"
	}
}

// Error es el error genérico con clasificación.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // sólo para KindValidation
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Error de validación", Fields: fields}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

// Forbidden: el usuario autenticado no puede operar sobre el recurso.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// InsufficientStockError identifica el primer producto (en el orden
// recibido) cuyo stock quedaría negativo.
type InsufficientStockError struct {
	ProductoID uint
	Nombre     string
	Disponible decimal.Decimal
	Solicitado decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Stock insuficiente para %s (ID %d). Disponible: %s, solicitado: %s",
		e.Nombre, e.ProductoID, e.Disponible.String(), e.Solicitado.String())
}

// AlreadyVoidedError: la venta ya estaba anulada.
type AlreadyVoidedError struct {
	VentaID uint
}

func (e *AlreadyVoidedError) Error() string {
	return fmt.Sprintf("La venta %d ya está anulada", e.VentaID)
}

// KindOf clasifica cualquier error. Los errores no reconocidos son de
// almacenamiento.
func KindOf(err error) Kind {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindInsufficientStock
	}
	var voidErr *AlreadyVoidedError
	if errors.As(err, &voidErr) {
		return KindAlreadyVoided
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// Is reporta si err pertenece a la clase k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// FromDB traduce errores de gorm/postgres. Registro inexistente pasa a
// NotFound con el mensaje dado; clave única duplicada pasa a Conflict.
func FromDB(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	if IsUniqueViolation(err) {
		return Conflict("Ya existe un registro con esos datos", err)
	}
	return Storage("Error de base de datos", err)
}

func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
