package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func venta(t *testing.T, productoID uint, cantidad string) Unit {
	return Unit{
		ProductoID: productoID,
		Delta:      testutil.Dec(t, cantidad).Neg(),
		Tipo:       models.MovVenta,
	}
}

func countMovs(t *testing.T, db *gorm.DB, productoID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.MovimientoStock{}).Where("producto_id = ?", productoID).Count(&n).Error)
	return n
}

func TestApplyMovements_DecrementsStockAndRecordsLedger(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	manzana := testutil.CreateProducto(t, db, "Manzana", "10")

	ids, err := engine.ApplyMovements(context.Background(), []Unit{venta(t, manzana.ID, "3")})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	testutil.RequireDecimal(t, "7", testutil.Stock(t, db, manzana.ID))

	var mov models.MovimientoStock
	require.NoError(t, db.First(&mov, ids[0]).Error)
	assert.Equal(t, models.MovVenta, mov.Tipo)
	testutil.RequireDecimal(t, "-3", mov.Cantidad)
	testutil.RequireDecimal(t, "10", mov.StockAnterior)
	testutil.RequireDecimal(t, "7", mov.StockNuevo)
}

func TestApplyMovements_InsufficientStock(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	pera := testutil.CreateProducto(t, db, "Pera", "3")

	_, err := engine.ApplyMovements(context.Background(), []Unit{venta(t, pera.ID, "5")})
	require.Error(t, err)

	var stockErr *apperr.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, pera.ID, stockErr.ProductoID)
	assert.Equal(t, "Pera", stockErr.Nombre)
	testutil.RequireDecimal(t, "3", stockErr.Disponible)
	testutil.RequireDecimal(t, "5", stockErr.Solicitado)

	testutil.RequireDecimal(t, "3", testutil.Stock(t, db, pera.ID))
	assert.Equal(t, int64(1), countMovs(t, db, pera.ID))
}

func TestApplyMovements_BatchIsAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p1 := testutil.CreateProducto(t, db, "Plátano", "10")
	p2 := testutil.CreateProducto(t, db, "Mango", "2")

	_, err := engine.ApplyMovements(context.Background(), []Unit{
		venta(t, p1.ID, "4"),
		venta(t, p2.ID, "5"),
	})
	require.True(t, apperr.Is(err, apperr.KindInsufficientStock))

	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, p1.ID))
	testutil.RequireDecimal(t, "2", testutil.Stock(t, db, p2.ID))
	assert.Equal(t, int64(1), countMovs(t, db, p1.ID))
}

func TestApplyMovements_RepeatedProductAccumulates(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	uva := testutil.CreateProducto(t, db, "Uva", "5")

	_, err := engine.ApplyMovements(context.Background(), []Unit{
		venta(t, uva.ID, "3"),
		venta(t, uva.ID, "3"),
	})
	var stockErr *apperr.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	testutil.RequireDecimal(t, "2", stockErr.Disponible)
	testutil.RequireDecimal(t, "3", stockErr.Solicitado)
	testutil.RequireDecimal(t, "5", testutil.Stock(t, db, uva.ID))

	ids, err := engine.ApplyMovements(context.Background(), []Unit{
		venta(t, uva.ID, "2"),
		venta(t, uva.ID, "3"),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	testutil.RequireDecimal(t, "0", testutil.Stock(t, db, uva.ID))

	var segundo models.MovimientoStock
	require.NoError(t, db.First(&segundo, ids[1]).Error)
	testutil.RequireDecimal(t, "3", segundo.StockAnterior)
	testutil.RequireDecimal(t, "0", segundo.StockNuevo)
}

func TestApplyMovements_ReportsFirstFailureInSubmittedOrder(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	escaso := testutil.CreateProducto(t, db, "Kiwi", "1")

	_, err := engine.ApplyMovements(context.Background(), []Unit{
		venta(t, 9999, "1"),
		venta(t, escaso.ID, "5"),
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = engine.ApplyMovements(context.Background(), []Unit{
		venta(t, escaso.ID, "5"),
		venta(t, 9999, "1"),
	})
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))
}

func TestApplyMovements_RejectsMalformedBatches(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Limón", "10")

	_, err := engine.ApplyMovements(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = engine.ApplyMovements(context.Background(), []Unit{
		{ProductoID: p.ID, Delta: decimal.Zero, Tipo: models.MovVenta},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = engine.ApplyMovements(context.Background(), []Unit{
		{ProductoID: p.ID, Delta: decimal.NewFromInt(1)},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestApplyMovements_RejectsValuesBeyondColumnScale(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Mango", "1")

	_, err := engine.ApplyMovements(context.Background(), []Unit{venta(t, p.ID, "0.0005")})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	_, err = engine.ApplyMovements(context.Background(), []Unit{{
		ProductoID:    p.ID,
		Delta:         decimal.NewFromInt(2),
		Tipo:          models.MovEntrada,
		CostoUnitario: testutil.Dec(t, "1.255"),
	}})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	testutil.RequireDecimal(t, "1", testutil.Stock(t, db, p.ID))
	assert.Equal(t, int64(1), countMovs(t, db, p.ID))

	_, err = engine.ApplyMovements(context.Background(), []Unit{venta(t, p.ID, "0.2500")})
	require.NoError(t, err)
	testutil.RequireDecimal(t, "0.75", testutil.Stock(t, db, p.ID))
}

func TestApplyMovements_InactiveProduct(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Durazno", "4")
	require.NoError(t, db.Model(p).Update("activo", false).Error)

	_, err := engine.ApplyMovements(context.Background(), []Unit{venta(t, p.ID, "1")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// las reversiones no exigen producto activo
	_, err = engine.ApplyMovements(context.Background(), []Unit{{
		ProductoID: p.ID,
		Delta:      decimal.NewFromInt(1),
		Tipo:       models.MovAnulacionVenta,
	}})
	require.NoError(t, err)
	testutil.RequireDecimal(t, "5", testutil.Stock(t, db, p.ID))
}

func TestApplyMovements_StoresReference(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	usuario := uint(7)
	p := testutil.CreateProducto(t, db, "Sandía", "0")

	ids, err := engine.ApplyMovements(context.Background(), []Unit{{
		ProductoID:    p.ID,
		Delta:         testutil.Dec(t, "12.5"),
		Tipo:          models.MovEntrada,
		CostoUnitario: testutil.Dec(t, "8.40"),
		Referencia:    &Referencia{Tipo: "entrada", ID: 42},
		UsuarioID:     &usuario,
	}})
	require.NoError(t, err)

	var mov models.MovimientoStock
	require.NoError(t, db.First(&mov, ids[0]).Error)
	assert.Equal(t, "entrada", mov.ReferenciaTipo)
	require.NotNil(t, mov.ReferenciaID)
	assert.Equal(t, uint(42), *mov.ReferenciaID)
	require.NotNil(t, mov.UsuarioID)
	assert.Equal(t, usuario, *mov.UsuarioID)
	testutil.RequireDecimal(t, "12.5", testutil.Stock(t, db, p.ID))
}

func TestDo_RollsBackCallerWritesOnError(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Naranja", "10")
	boom := apperr.Validation("cabecera inválida")

	err := engine.Do(context.Background(), func(tx *Tx) error {
		if _, err := tx.Apply([]Unit{venta(t, p.ID, "4")}); err != nil {
			return err
		}
		if err := tx.DB().Create(&models.Proveedor{Nombre: "Huerta Norte"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, p.ID))
	var n int64
	require.NoError(t, db.Model(&models.Proveedor{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDo_RunsCommitHooksOnlyAfterCommit(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Papaya", "2")

	calls := 0
	engine.OnCommit(func(context.Context) { calls++ })

	_, err := engine.ApplyMovements(context.Background(), []Unit{venta(t, p.ID, "1")})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = engine.ApplyMovements(context.Background(), []Unit{venta(t, p.ID, "5")})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ClassifiesUnknownErrorsAsStorage(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)

	err := engine.Do(context.Background(), func(tx *Tx) error {
		return errors.New("conexión perdida")
	})
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}

func TestApplyMovements_ConcurrentSalesNeverOversell(t *testing.T) {
	db := testutil.NewDB(t)
	engine := NewEngine(db)
	p := testutil.CreateProducto(t, db, "Fresa", "5")

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ApplyMovements(context.Background(), []Unit{{
				ProductoID: p.ID,
				Delta:      decimal.NewFromInt(-1),
				Tipo:       models.MovVenta,
			}})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.Is(err, apperr.KindInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, rejected)
	testutil.RequireDecimal(t, "0", testutil.Stock(t, db, p.ID))
}
