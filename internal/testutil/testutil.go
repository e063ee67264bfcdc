// Package testutil provides shared fixtures for package tests. It is only
// imported from _test.go files.
package testutil

import (
	"testing"

	"fruteria-backend/internal/database"
	"fruteria-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database. The pool is pinned to a
// single connection so the in-memory schema survives and transactions run one
// at a time (SQLite ignores FOR UPDATE).
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewMockDB returns a gorm handle speaking the postgres dialect over sqlmock,
// for asserting on the SQL that SQLite would rewrite (row locks). Unmet
// expectations fail the test at cleanup.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})
	return db, mock
}

// Dec parses a decimal literal, failing the test on malformed input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// CreateProducto inserts an active product whose initial stock is backed by
// an "inicial" ledger row, keeping stock_actual equal to the ledger sum.
func CreateProducto(t *testing.T, db *gorm.DB, nombre string, stock string) *models.Producto {
	t.Helper()

	p := &models.Producto{
		Nombre:       nombre,
		Categoria:    "frutas",
		UnidadMedida: models.UnidadKg,
		PrecioCompra: decimal.NewFromInt(1),
		PrecioVenta:  decimal.NewFromInt(3),
		StockActual:  Dec(t, stock),
		StockMinimo:  decimal.NewFromInt(5),
		Activo:       true,
	}
	require.NoError(t, db.Create(p).Error)

	if p.StockActual.IsPositive() {
		mov := models.MovimientoStock{
			ProductoID:    p.ID,
			Tipo:          models.MovInicial,
			Cantidad:      p.StockActual,
			StockAnterior: decimal.Zero,
			StockNuevo:    p.StockActual,
			CostoUnitario: p.PrecioCompra,
			Motivo:        "stock inicial",
		}
		require.NoError(t, db.Create(&mov).Error)
	}
	return p
}

// Stock reloads the current stock of a product.
func Stock(t *testing.T, db *gorm.DB, productoID uint) decimal.Decimal {
	t.Helper()
	var p models.Producto
	require.NoError(t, db.First(&p, productoID).Error)
	return p.StockActual
}

// RequireDecimal compares decimals by value ("15" equals "15.000").
func RequireDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, Dec(t, expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

// CreateUsuario inserts an active user with the given seeded role.
func CreateUsuario(t *testing.T, db *gorm.DB, username, password string, rol models.RolNombre) *models.Usuario {
	t.Helper()

	var r models.Rol
	require.NoError(t, db.Where("nombre = ?", rol).First(&r).Error)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.Usuario{
		Username:     username,
		Nombre:       username,
		PasswordHash: string(hash),
		RolID:        r.ID,
		Activo:       true,
	}
	require.NoError(t, db.Create(u).Error)
	u.Rol = &r
	return u
}
