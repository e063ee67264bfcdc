package stats

import (
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

func rangoQuery(c *fiber.Ctx) (Rango, error) {
	desde, err := httpx.QueryDate(c, "fecha_inicio")
	if err != nil {
		return Rango{}, err
	}
	hasta, err := httpx.QueryDate(c, "fecha_fin")
	if err != nil {
		return Rango{}, err
	}
	return Rango{Desde: desde, Hasta: hasta}, nil
}

// GET /api/estadisticas/ventas?fecha_inicio=&fecha_fin=
func VentasHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := rangoQuery(c)
		if err != nil {
			return err
		}
		rep, err := svc.Ventas(c.UserContext(), r)
		if err != nil {
			return err
		}
		return httpx.OK(c, rep)
	}
}

// GET /api/estadisticas/productos
func ProductosHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rep, err := svc.Productos(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.OK(c, rep)
	}
}

// GET /api/estadisticas/dashboard
func DashboardHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := svc.Dashboard(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.OK(c, d)
	}
}

// GET /api/estadisticas/resumen?periodo=30
func ResumenHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := svc.Resumen(c.UserContext(), httpx.QueryInt(c, "periodo", diasPorDefecto))
		if err != nil {
			return err
		}
		return httpx.OK(c, r)
	}
}

// GET /api/estadisticas/top-productos?limit=10&fecha_inicio=&fecha_fin=
func TopProductosHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := rangoQuery(c)
		if err != nil {
			return err
		}
		top, err := svc.TopProductos(c.UserContext(), httpx.QueryInt(c, "limit", topProductosReporte), r)
		if err != nil {
			return err
		}
		return httpx.List(c, top)
	}
}

// GET /api/estadisticas/metodos-pago?fecha_inicio=&fecha_fin=
func MetodosPagoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := rangoQuery(c)
		if err != nil {
			return err
		}
		rep, err := svc.MetodosPago(c.UserContext(), r)
		if err != nil {
			return err
		}
		return httpx.OK(c, rep)
	}
}

// GET /api/estadisticas/grafico?periodo=diario&count=7
func GraficoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		periodo := PeriodoGrafico(c.Query("periodo", string(GraficoDiario)))
		g, err := svc.GraficoVentas(c.UserContext(), periodo, httpx.QueryInt(c, "count", 0))
		if err != nil {
			return err
		}
		return httpx.OK(c, g)
	}
}
