package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	stockErr := &InsufficientStockError{ProductoID: 7, Nombre: "Manzana", Disponible: decimal.NewFromInt(3), Solicitado: decimal.NewFromInt(5)}

	assert.Equal(t, KindInsufficientStock, KindOf(stockErr))
	assert.Equal(t, KindInsufficientStock, KindOf(fmt.Errorf("venta: %w", stockErr)))
	assert.Equal(t, KindAlreadyVoided, KindOf(&AlreadyVoidedError{VentaID: 1}))
	assert.Equal(t, KindValidation, KindOf(Validation("x")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("x")))
	assert.Equal(t, KindStorage, KindOf(errors.New("conexión perdida")))
	assert.False(t, Is(nil, KindStorage))
}

func TestInsufficientStockMessage(t *testing.T) {
	err := &InsufficientStockError{ProductoID: 7, Nombre: "Manzana", Disponible: decimal.NewFromInt(3), Solicitado: decimal.NewFromInt(5)}
	assert.Contains(t, err.Error(), "Stock insuficiente")
	assert.Contains(t, err.Error(), "Disponible: 3")
}

func TestFromDB(t *testing.T) {
	assert.NoError(t, FromDB(nil, ""))
	assert.Equal(t, KindNotFound, KindOf(FromDB(gorm.ErrRecordNotFound, "Producto no encontrado")))
	assert.Equal(t, KindConflict, KindOf(FromDB(gorm.ErrDuplicatedKey, "")))
	assert.Equal(t, KindConflict, KindOf(FromDB(&pgconn.PgError{Code: "23505"}, "")))
	assert.Equal(t, KindStorage, KindOf(FromDB(errors.New("timeout"), "")))

	v := Validation("campo")
	assert.Same(t, v, FromDB(v, ""))
}
