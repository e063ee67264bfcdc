package inventory

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/stock"
	"fruteria-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newApp(db *gorm.DB) *fiber.App {
	svc := NewService(db, stock.NewEngine(db))
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})

	productos := app.Group("/productos")
	productos.Get("/", ListProductosHandler(svc))
	productos.Get("/categorias", ListCategoriasHandler(svc))
	productos.Get("/alertas", AlertasHandler(svc))
	productos.Get("/categoria/:categoria", ProductosPorCategoriaHandler(svc))
	productos.Get("/:id", GetProductoHandler(svc))
	productos.Get("/:id/kardex", KardexHandler(svc))
	productos.Post("/", CreateProductoHandler(svc))
	productos.Put("/:id", UpdateProductoHandler(svc))
	productos.Put("/:id/stock", AjustarStockHandler(svc))
	productos.Delete("/:id", DeleteProductoHandler(svc))

	entradas := app.Group("/entradas")
	entradas.Get("/", ListEntradasHandler(svc))
	entradas.Get("/proveedores", ResumenProveedoresHandler(svc))
	entradas.Post("/", CreateEntradaHandler(svc))
	entradas.Delete("/:id", DeleteEntradaHandler(svc))

	mermas := app.Group("/mermas")
	mermas.Get("/reportes", ReportesMermasHandler(svc))
	mermas.Post("/", CreateMermaHandler(svc))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, httpx.Envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestProductoHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	app := newApp(db)

	resp, env := do(t, app, fiber.MethodPost, "/productos", `{
		"nombre": "Mandarina", "categoria": "frutas", "unidad_medida": "kg",
		"precio_compra": 8, "precio_venta": 14.5, "stock_actual": 12
	}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	data := env.Data.(map[string]any)
	id := strconv.Itoa(int(data["id"].(float64)))

	resp, env = do(t, app, fiber.MethodGet, "/productos?buscar=mandar", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	resp, _ = do(t, app, fiber.MethodPut, "/productos/"+id+"/stock", `{"stock_actual": 10, "motivo": "conteo"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutil.RequireDecimal(t, "10", testutil.Stock(t, db, uint(data["id"].(float64))))

	resp, env = do(t, app, fiber.MethodGet, "/productos/"+id+"/kardex?tipo=ajuste_manual", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	kardex := env.Data.(map[string]any)
	assert.Len(t, kardex["movimientos"], 1)
	assert.Equal(t, true, kardex["reconciliacion"].(map[string]any)["consistente"])

	resp, _ = do(t, app, fiber.MethodDelete, "/productos/"+id, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodGet, "/productos/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCreateProductoHandler_Validation(t *testing.T) {
	app := newApp(testutil.NewDB(t))

	resp, env := do(t, app, fiber.MethodPost, "/productos", `{"categoria": "frutas", "unidad_medida": "ton", "precio_venta": -2}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Fields, "nombre")
	assert.Contains(t, env.Fields, "unidad_medida")
	assert.Contains(t, env.Fields, "precio_venta")
}

func TestEntradaHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	app := newApp(db)
	p := testutil.CreateProducto(t, db, "Higo", "2")
	pid := strconv.Itoa(int(p.ID))

	resp, env := do(t, app, fiber.MethodPost, "/entradas", `{"producto_id": `+pid+`, "cantidad": 6, "precio_compra": 3, "proveedor": "Rancho Sur", "fecha_entrada": "2024-03-01"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	testutil.RequireDecimal(t, "8", testutil.Stock(t, db, p.ID))
	entradaID := strconv.Itoa(int(env.Data.(map[string]any)["id"].(float64)))

	resp, env = do(t, app, fiber.MethodPost, "/entradas", `{"producto_id": `+pid+`, "cantidad": 0, "fecha_entrada": "01/03/2024"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Fields, "cantidad")
	assert.Contains(t, env.Fields, "fecha_entrada")

	resp, env = do(t, app, fiber.MethodGet, "/entradas?fecha_inicio=2024-03-01&fecha_fin=2024-03-01", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *env.Count)

	resp, env = do(t, app, fiber.MethodGet, "/entradas/proveedores", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *env.Count)

	require.NoError(t, db.Model(p).Update("stock_actual", 1).Error)
	resp, env = do(t, app, fiber.MethodDelete, "/entradas/"+entradaID, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Error, "Stock insuficiente")
}

func TestMermaHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	app := newApp(db)
	p := testutil.CreateProducto(t, db, "Espinaca", "3")
	pid := strconv.Itoa(int(p.ID))

	resp, env := do(t, app, fiber.MethodPost, "/mermas", `{"producto_id": `+pid+`, "cantidad": 1, "motivo": "daño"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	assert.Equal(t, "3", env.Data.(map[string]any)["valor_perdido"])

	resp, env = do(t, app, fiber.MethodPost, "/mermas", `{"producto_id": `+pid+`, "cantidad": 1, "motivo": "podrido"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Fields, "motivo")

	resp, env = do(t, app, fiber.MethodGet, "/mermas/reportes", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *env.Count)
}
