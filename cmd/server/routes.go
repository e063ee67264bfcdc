package main

import (
	"fruteria-backend/internal/audit"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/cache"
	"fruteria-backend/internal/config"
	"fruteria-backend/internal/health"
	"fruteria-backend/internal/inventory"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/pagos"
	"fruteria-backend/internal/proveedores"
	"fruteria-backend/internal/stats"
	"fruteria-backend/internal/stock"
	"fruteria-backend/internal/users"
	"fruteria-backend/internal/ventas"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func registerRoutes(app *fiber.App, cfg *config.Config, db *gorm.DB, statsCache *cache.Cache) {
	engine := stock.NewEngine(db)
	inventorySvc := inventory.NewService(db, engine)
	ventasSvc := ventas.NewService(db, engine)
	proveedoresSvc := proveedores.NewService(db)
	usersSvc := users.NewService(db)
	statsSvc := stats.NewService(db, statsCache)
	engine.OnCommit(statsSvc.InvalidarDashboard)
	simulator := pagos.NewSimulator()

	gestion := auth.RequireRole(models.RolAdmin, models.RolDuenio)

	api := app.Group("/api")
	api.Get("/health", health.Handler(db, statsCache))

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))
	api.Post("/auth/logout", auth.LogoutHandler())

	protected := api.Group("", auth.JWTMiddleware(db, cfg))
	protected.Get("/auth/validate", auth.ValidateHandler(db))
	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Post("/auth/change-password", auth.ChangePasswordHandler(db))

	// Productos
	leerProductos := auth.RequirePermission("productos_lectura")
	escribirProductos := auth.RequirePermission("productos_escritura")
	productos := protected.Group("/productos")
	productos.Get("/", leerProductos, inventory.ListProductosHandler(inventorySvc))
	productos.Get("/categorias", leerProductos, inventory.ListCategoriasHandler(inventorySvc))
	productos.Get("/alertas", leerProductos, inventory.AlertasHandler(inventorySvc))
	productos.Get("/categoria/:categoria", leerProductos, inventory.ProductosPorCategoriaHandler(inventorySvc))
	productos.Get("/:id", leerProductos, inventory.GetProductoHandler(inventorySvc))
	productos.Get("/:id/kardex", leerProductos, inventory.KardexHandler(inventorySvc))
	productos.Post("/", escribirProductos, inventory.CreateProductoHandler(inventorySvc))
	productos.Put("/:id", escribirProductos, inventory.UpdateProductoHandler(inventorySvc))
	productos.Put("/:id/stock", gestion, inventory.AjustarStockHandler(inventorySvc))
	productos.Delete("/:id", gestion, inventory.DeleteProductoHandler(inventorySvc))

	// Entradas de mercancía
	escribirInventario := auth.RequirePermission("inventario_escritura")
	entradas := protected.Group("/entradas", leerProductos)
	entradas.Get("/", inventory.ListEntradasHandler(inventorySvc))
	entradas.Get("/proveedores", inventory.ResumenProveedoresHandler(inventorySvc))
	entradas.Get("/:id", inventory.GetEntradaHandler(inventorySvc))
	entradas.Post("/", escribirInventario, inventory.CreateEntradaHandler(inventorySvc))
	entradas.Put("/:id", escribirInventario, inventory.UpdateEntradaHandler(inventorySvc))
	entradas.Delete("/:id", gestion, inventory.DeleteEntradaHandler(inventorySvc))

	// Mermas
	mermas := protected.Group("/mermas", leerProductos)
	mermas.Get("/", inventory.ListMermasHandler(inventorySvc))
	mermas.Get("/reportes", inventory.ReportesMermasHandler(inventorySvc))
	mermas.Get("/:id", inventory.GetMermaHandler(inventorySvc))
	mermas.Post("/", escribirInventario, inventory.CreateMermaHandler(inventorySvc))
	mermas.Put("/:id", escribirInventario, inventory.UpdateMermaHandler(inventorySvc))
	mermas.Delete("/:id", gestion, inventory.DeleteMermaHandler(inventorySvc))

	// Ventas
	ventasGroup := protected.Group("/ventas", auth.RequirePermission("ventas_lectura"))
	ventasGroup.Get("/", ventas.ListVentasHandler(ventasSvc))
	ventasGroup.Get("/historial", ventas.HistorialHandler(ventasSvc))
	ventasGroup.Get("/resumen/dia", ventas.ResumenDiaHandler(ventasSvc))
	ventasGroup.Get("/:id", ventas.GetVentaHandler(ventasSvc))
	ventasGroup.Post("/", auth.RequirePermission("ventas_escritura"), ventas.CreateVentaHandler(ventasSvc))
	ventasGroup.Post("/:id/anular", gestion, auth.RequirePermission("ventas_anular"), ventas.AnularVentaHandler(ventasSvc))

	// Proveedores
	escribirProveedores := auth.RequirePermission("proveedores_escritura")
	prov := protected.Group("/proveedores", leerProductos)
	prov.Get("/", proveedores.ListProveedoresHandler(proveedoresSvc))
	prov.Get("/activos", proveedores.ListActivosHandler(proveedoresSvc))
	prov.Get("/stats", proveedores.StatsHandler(proveedoresSvc))
	prov.Get("/:id", proveedores.GetProveedorHandler(proveedoresSvc))
	prov.Post("/", escribirProveedores, proveedores.CreateProveedorHandler(proveedoresSvc))
	prov.Put("/:id", escribirProveedores, proveedores.UpdateProveedorHandler(proveedoresSvc))
	prov.Patch("/:id/reactivar", gestion, proveedores.ReactivarProveedorHandler(proveedoresSvc))
	prov.Delete("/:id", gestion, proveedores.DeleteProveedorHandler(proveedoresSvc))

	// Usuarios
	usersGroup := protected.Group("/users")
	usersGroup.Get("/roles", users.RolesHandler(usersSvc))
	adminUsers := usersGroup.Group("/admin", gestion, auth.RequirePermission("usuarios_lectura"))
	escribirUsuarios := auth.RequirePermission("usuarios_escritura")
	adminUsers.Get("/roles", users.RolesHandler(usersSvc))
	adminUsers.Get("/usuarios", users.ListUsuariosHandler(usersSvc))
	adminUsers.Get("/usuarios/stats", users.StatsHandler(usersSvc))
	adminUsers.Get("/usuarios/:id", users.GetUsuarioHandler(usersSvc))
	adminUsers.Post("/usuarios", escribirUsuarios, users.CreateUsuarioHandler(usersSvc))
	adminUsers.Put("/usuarios/:id", escribirUsuarios, users.UpdateUsuarioHandler(usersSvc))
	adminUsers.Patch("/usuarios/:id/toggle-status", escribirUsuarios, users.ToggleStatusHandler(usersSvc))
	adminUsers.Post("/usuarios/:id/reset-password", escribirUsuarios, users.ResetPasswordHandler(usersSvc))
	adminUsers.Delete("/usuarios/:id", escribirUsuarios, users.DeleteUsuarioHandler(usersSvc))

	// Estadísticas
	est := protected.Group("/estadisticas", auth.RequirePermission("estadisticas_lectura"))
	est.Get("/ventas", stats.VentasHandler(statsSvc))
	est.Get("/productos", stats.ProductosHandler(statsSvc))
	est.Get("/dashboard", stats.DashboardHandler(statsSvc))
	est.Get("/resumen", stats.ResumenHandler(statsSvc))
	est.Get("/top-productos", stats.TopProductosHandler(statsSvc))
	est.Get("/metodos-pago", stats.MetodosPagoHandler(statsSvc))
	est.Get("/grafico", stats.GraficoHandler(statsSvc))

	// Pagos (simulador)
	pagosGroup := protected.Group("/pagos", auth.RequirePermission("ventas_escritura"))
	pagosGroup.Get("/metodos", pagos.MetodosHandler(simulator))
	pagosGroup.Get("/transaccion/:referencia", pagos.TransaccionHandler(simulator))
	pagosGroup.Post("/tarjeta", pagos.PagoTarjetaHandler(simulator))
	pagosGroup.Post("/reembolso", gestion, pagos.ReembolsoHandler(simulator))

	// Auditoría
	protected.Get("/audit-logs", auth.RequirePermission("auditoria_lectura"), audit.ListAuditLogsHandler(db))
}
