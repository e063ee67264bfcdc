package ventas

import (
	"context"
	"errors"
	"testing"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"
	"fruteria-backend/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoidSale_LocksSaleRowForUpdate(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, stock.NewEngine(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "ventas" WHERE .*"ventas"\."id" = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "estado"}).AddRow(12, string(models.VentaAnulada)))
	mock.ExpectRollback()

	err := svc.VoidSale(context.Background(), 12, "error de cobro", audit.Actor{})

	var voided *apperr.AlreadyVoidedError
	require.True(t, errors.As(err, &voided), "got %v", err)
	assert.Equal(t, uint(12), voided.VentaID)
}
