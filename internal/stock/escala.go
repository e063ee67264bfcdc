package stock

import (
	"fruteria-backend/internal/apperr"

	"github.com/shopspring/decimal"
)

// Decimales que guardan las columnas: cantidades decimal(12,3), montos
// decimal(12,2).
const (
	DecimalesCantidad = 3
	DecimalesMonto    = 2
)

// CheckCantidad rechaza una cantidad que la columna redondearía. Los ceros a
// la derecha no cuentan: "1.5000" es válido.
func CheckCantidad(campo string, d decimal.Decimal) error {
	if excede(d, DecimalesCantidad) {
		return apperr.Validationf("%s admite como máximo %d decimales", campo, DecimalesCantidad)
	}
	return nil
}

// CheckMonto es CheckCantidad para importes.
func CheckMonto(campo string, d decimal.Decimal) error {
	if excede(d, DecimalesMonto) {
		return apperr.Validationf("%s admite como máximo %d decimales", campo, DecimalesMonto)
	}
	return nil
}

func excede(d decimal.Decimal, decimales int32) bool {
	return d.Exponent() < -decimales && !d.Equal(d.Truncate(decimales))
}
