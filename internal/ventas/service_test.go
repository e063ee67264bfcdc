package ventas

import (
	"context"
	"errors"
	"testing"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/stock"
	"fruteria-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	return NewService(db, stock.NewEngine(db)), db
}

func line(t *testing.T, productoID uint, cantidad, precio string) SaleLine {
	c, p := testutil.Dec(t, cantidad), testutil.Dec(t, precio)
	return SaleLine{ProductoID: productoID, Cantidad: c, PrecioUnitario: p, Subtotal: c.Mul(p)}
}

func header(t *testing.T, total string) SaleHeader {
	return SaleHeader{Total: testutil.Dec(t, total), MetodoPago: models.PagoEfectivo}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateSale_SingleLine(t *testing.T) {
	svc, db := newService(t)
	manzana := testutil.CreateProducto(t, db, "Manzana", "10")

	venta, err := svc.CreateSale(context.Background(), header(t, "7.50"), []SaleLine{line(t, manzana.ID, "3", "2.50")})
	require.NoError(t, err)

	assert.Equal(t, models.VentaCompletada, venta.Estado)
	assert.Equal(t, models.ClienteGeneral, venta.ClienteNombre)
	require.Len(t, venta.Detalles, 1)
	assert.NotZero(t, venta.Detalles[0].MovimientoID)
	require.NotNil(t, venta.Detalles[0].Producto)
	assert.Equal(t, "Manzana", venta.Detalles[0].Producto.Nombre)

	testutil.RequireDecimal(t, "7", testutil.Stock(t, db, manzana.ID))

	var mov models.MovimientoStock
	require.NoError(t, db.First(&mov, venta.Detalles[0].MovimientoID).Error)
	assert.Equal(t, models.MovVenta, mov.Tipo)
	require.NotNil(t, mov.ReferenciaID)
	assert.Equal(t, venta.ID, *mov.ReferenciaID)

	assert.Equal(t, int64(1), count(t, db, &models.AuditLog{}))
}

func TestCreateSale_InsufficientStockLeavesNoTrace(t *testing.T) {
	svc, db := newService(t)
	pera := testutil.CreateProducto(t, db, "Pera", "3")

	_, err := svc.CreateSale(context.Background(), header(t, "10"), []SaleLine{line(t, pera.ID, "5", "2")})

	var stockErr *apperr.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	testutil.RequireDecimal(t, "3", stockErr.Disponible)
	testutil.RequireDecimal(t, "5", stockErr.Solicitado)

	testutil.RequireDecimal(t, "3", testutil.Stock(t, db, pera.ID))
	assert.Zero(t, count(t, db, &models.Venta{}))
	assert.Zero(t, count(t, db, &models.DetalleVenta{}))
	assert.Zero(t, count(t, db, &models.AuditLog{}))
}

func TestCreateSale_MultiLineIsAtomic(t *testing.T) {
	svc, db := newService(t)
	platano := testutil.CreateProducto(t, db, "Plátano", "10")
	mango := testutil.CreateProducto(t, db, "Mango", "2")

	_, err := svc.CreateSale(context.Background(), header(t, "18"), []SaleLine{
		line(t, platano.ID, "4", "2"),
		line(t, mango.ID, "5", "2"),
	})
	require.True(t, apperr.Is(err, apperr.KindInsufficientStock))

	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, platano.ID))
	testutil.RequireDecimal(t, "2", testutil.Stock(t, db, mango.ID))
	assert.Zero(t, count(t, db, &models.Venta{}))
}

func TestCreateSale_Validation(t *testing.T) {
	svc, db := newService(t)
	p := testutil.CreateProducto(t, db, "Limón", "10")
	ctx := context.Background()

	cases := map[string]struct {
		h     SaleHeader
		lines []SaleLine
	}{
		"sin detalles":    {header(t, "1"), nil},
		"total cero":      {header(t, "0"), []SaleLine{line(t, p.ID, "1", "1")}},
		"metodo inválido": {SaleHeader{Total: testutil.Dec(t, "1"), MetodoPago: "cheque"}, []SaleLine{line(t, p.ID, "1", "1")}},
		"cantidad cero":   {header(t, "1"), []SaleLine{{ProductoID: p.ID, Cantidad: testutil.Dec(t, "0"), PrecioUnitario: testutil.Dec(t, "1"), Subtotal: testutil.Dec(t, "1")}}},
		"subtotal mayor":  {header(t, "5"), []SaleLine{{ProductoID: p.ID, Cantidad: testutil.Dec(t, "1"), PrecioUnitario: testutil.Dec(t, "2"), Subtotal: testutil.Dec(t, "5")}}},
		"total distinto":  {header(t, "9"), []SaleLine{line(t, p.ID, "2", "2")}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, tc.h, tc.lines)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, p.ID))
	assert.Equal(t, int64(1), count(t, db, &models.MovimientoStock{}))
}

func TestCreateSale_RejectsValuesBeyondColumnScale(t *testing.T) {
	svc, db := newService(t)
	p := testutil.CreateProducto(t, db, "Cereza", "10")
	ctx := context.Background()

	detalle := func(cantidad, precio, subtotal string) []SaleLine {
		return []SaleLine{{
			ProductoID:     p.ID,
			Cantidad:       testutil.Dec(t, cantidad),
			PrecioUnitario: testutil.Dec(t, precio),
			Subtotal:       testutil.Dec(t, subtotal),
		}}
	}
	cases := map[string]struct {
		h     SaleHeader
		lines []SaleLine
	}{
		"total por debajo del centavo":  {header(t, "0.004"), detalle("0.0001", "40", "0.004")},
		"cantidad con cuatro decimales": {header(t, "2.00"), detalle("1.0005", "2", "2.00")},
		"precio con tres decimales":     {header(t, "2.50"), detalle("1", "2.505", "2.50")},
		"subtotal con tres decimales":   {header(t, "2.50"), detalle("1", "2.50", "2.495")},
		"total con tres decimales":      {header(t, "2.505"), detalle("1", "2.50", "2.50")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, tc.h, tc.lines)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
	assert.Zero(t, count(t, db, &models.Venta{}))
	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, p.ID))

	t.Run("trailing zeros are accepted", func(t *testing.T) {
		venta, err := svc.CreateSale(ctx, header(t, "3.0000"), detalle("1.5000", "2.000", "3.00"))
		require.NoError(t, err)
		testutil.RequireDecimal(t, "3", venta.Total)
		testutil.RequireDecimal(t, "8.5", testutil.Stock(t, db, p.ID))
	})
}

func TestCreateSale_AllowsDiscountedSubtotal(t *testing.T) {
	svc, db := newService(t)
	p := testutil.CreateProducto(t, db, "Sandía", "5")

	venta, err := svc.CreateSale(context.Background(),
		SaleHeader{ClienteNombre: "Doña Rosa", Total: testutil.Dec(t, "9"), MetodoPago: models.PagoTarjetaDebito},
		[]SaleLine{{ProductoID: p.ID, Cantidad: testutil.Dec(t, "2"), PrecioUnitario: testutil.Dec(t, "5"), Subtotal: testutil.Dec(t, "9")}},
	)
	require.NoError(t, err)
	assert.Equal(t, "Doña Rosa", venta.ClienteNombre)
	testutil.RequireDecimal(t, "9", venta.Total)
}

func TestVoidSale_RestoresStock(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	kiwi := testutil.CreateProducto(t, db, "Kiwi", "10")
	uva := testutil.CreateProducto(t, db, "Uva", "4")

	venta, err := svc.CreateSale(ctx, header(t, "14"), []SaleLine{
		line(t, kiwi.ID, "3", "2"),
		line(t, uva.ID, "4", "2"),
	})
	require.NoError(t, err)
	testutil.RequireDecimal(t, "0", testutil.Stock(t, db, uva.ID))

	require.NoError(t, svc.VoidSale(ctx, venta.ID, "cliente devolvió", audit.Actor{}))

	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, kiwi.ID))
	testutil.RequireDecimal(t, "4", testutil.Stock(t, db, uva.ID))

	anulada, err := svc.Get(ctx, venta.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VentaAnulada, anulada.Estado)
	require.NotNil(t, anulada.MotivoAnulacion)
	assert.Equal(t, "cliente devolvió", *anulada.MotivoAnulacion)
	assert.NotNil(t, anulada.FechaAnulacion)
	assert.Len(t, anulada.Detalles, 2)

	ledger := stock.NewLedger(db)
	for _, id := range []uint{kiwi.ID, uva.ID} {
		rec, err := ledger.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Consistente)
	}
}

func TestVoidSale_Twice(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	p := testutil.CreateProducto(t, db, "Coco", "5")

	venta, err := svc.CreateSale(ctx, header(t, "2"), []SaleLine{line(t, p.ID, "1", "2")})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, venta.ID, "error de captura", audit.Actor{}))

	err = svc.VoidSale(ctx, venta.ID, "otra vez", audit.Actor{})
	var voided *apperr.AlreadyVoidedError
	require.True(t, errors.As(err, &voided))
	assert.Equal(t, venta.ID, voided.VentaID)

	testutil.RequireDecimal(t, "5", testutil.Stock(t, db, p.ID))
}

func TestVoidSale_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.True(t, apperr.Is(svc.VoidSale(ctx, 77, "motivo", audit.Actor{}), apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.VoidSale(ctx, 77, "  ", audit.Actor{}), apperr.KindValidation))
}

func TestVoidSale_ProductDeactivatedAfterSale(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	p := testutil.CreateProducto(t, db, "Guayaba", "5")

	venta, err := svc.CreateSale(ctx, header(t, "4"), []SaleLine{line(t, p.ID, "2", "2")})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Producto{}).Where("id = ?", p.ID).Update("activo", false).Error)

	require.NoError(t, svc.VoidSale(ctx, venta.ID, "devolución", audit.Actor{}))
	testutil.RequireDecimal(t, "5", testutil.Stock(t, db, p.ID))
}

func TestHistorialAndResumen(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	p := testutil.CreateProducto(t, db, "Naranja", "100")

	_, err := svc.CreateSale(ctx, SaleHeader{ClienteNombre: "Ana López", Total: testutil.Dec(t, "10"), MetodoPago: models.PagoEfectivo},
		[]SaleLine{line(t, p.ID, "5", "2")})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, SaleHeader{Total: testutil.Dec(t, "4"), MetodoPago: models.PagoTransferencia},
		[]SaleLine{line(t, p.ID, "2", "2")})
	require.NoError(t, err)
	anulada, err := svc.CreateSale(ctx, SaleHeader{Total: testutil.Dec(t, "6"), MetodoPago: models.PagoEfectivo},
		[]SaleLine{line(t, p.ID, "3", "2")})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, anulada.ID, "error", audit.Actor{}))

	todas, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, todas, 3)

	efectivo, err := svc.Historial(ctx, HistorialFilter{MetodoPago: models.PagoEfectivo})
	require.NoError(t, err)
	assert.Len(t, efectivo, 2)

	ana, err := svc.Historial(ctx, HistorialFilter{Cliente: "lópez"})
	require.NoError(t, err)
	require.Len(t, ana, 1)
	assert.Equal(t, "Ana López", ana[0].ClienteNombre)

	ayer := time.Now().AddDate(0, 0, -1)
	viejas, err := svc.Historial(ctx, HistorialFilter{FechaFin: &ayer})
	require.NoError(t, err)
	assert.Empty(t, viejas)

	r, err := svc.ResumenDelDia(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalVentas)
	assert.Equal(t, 1, r.Anuladas)
	testutil.RequireDecimal(t, "14", r.TotalIngresos)
	testutil.RequireDecimal(t, "7", r.PromedioVenta)
	testutil.RequireDecimal(t, "4", r.VentaMinima)
	testutil.RequireDecimal(t, "10", r.VentaMaxima)
	assert.Equal(t, 1, r.PorMetodoPago[models.PagoEfectivo].Cantidad)
}
