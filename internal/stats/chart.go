package stats

import (
	"context"
	"time"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/models"

	"github.com/shopspring/decimal"
)

type PeriodoGrafico string

const (
	GraficoDiario  PeriodoGrafico = "diario"
	GraficoSemanal PeriodoGrafico = "semanal"
	GraficoMensual PeriodoGrafico = "mensual"
)

const maxPuntosGrafico = 366

// cantidadPorDefecto: una semana de días, dos meses de semanas, un año de meses.
func (p PeriodoGrafico) cantidadPorDefecto() int {
	switch p {
	case GraficoSemanal:
		return 8
	case GraficoMensual:
		return 12
	}
	return 7
}

func (p PeriodoGrafico) bucket(t time.Time) time.Time {
	switch p {
	case GraficoSemanal:
		return inicioSemana(t)
	case GraficoMensual:
		return inicioMes(t)
	}
	return startOfDay(t)
}

func (p PeriodoGrafico) siguiente(t time.Time) time.Time {
	switch p {
	case GraficoSemanal:
		return t.AddDate(0, 0, 7)
	case GraficoMensual:
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

type PuntoGrafico struct {
	Etiqueta  string                                `json:"etiqueta"` // fecha / inicio de semana / inicio de mes
	PorMetodo map[models.MetodoPago]decimal.Decimal `json:"por_metodo"`
	Total     decimal.Decimal                       `json:"total"`
}

type Grafico struct {
	Periodo   PeriodoGrafico                        `json:"periodo"`
	Desde     string                                `json:"desde"`
	Hasta     string                                `json:"hasta"`
	Puntos    []PuntoGrafico                        `json:"puntos"`
	PorMetodo map[models.MetodoPago]decimal.Decimal `json:"por_metodo"`
	Total     decimal.Decimal                       `json:"total"`
}

// GraficoVentas reparte los ingresos por método de pago en count intervalos
// que terminan en el actual. Los intervalos sin ventas aparecen en cero.
func (s *Service) GraficoVentas(ctx context.Context, periodo PeriodoGrafico, count int) (*Grafico, error) {
	switch periodo {
	case "":
		periodo = GraficoDiario
	case GraficoDiario, GraficoSemanal, GraficoMensual:
	default:
		return nil, apperr.Validation("periodo debe ser diario, semanal o mensual")
	}
	if count == 0 {
		count = periodo.cantidadPorDefecto()
	}
	if count < 0 || count > maxPuntosGrafico {
		return nil, apperr.Validation("count inválido")
	}

	hoy := startOfDay(s.now())
	ultimo := periodo.bucket(hoy)
	inicio := ultimo
	for i := 1; i < count; i++ {
		switch periodo {
		case GraficoSemanal:
			inicio = inicio.AddDate(0, 0, -7)
		case GraficoMensual:
			inicio = inicio.AddDate(0, -1, 0)
		default:
			inicio = inicio.AddDate(0, 0, -1)
		}
	}

	ventas, err := s.ventasCompletadas(ctx, Rango{Desde: &inicio, Hasta: &hoy})
	if err != nil {
		return nil, err
	}

	g := &Grafico{
		Periodo:   periodo,
		Desde:     inicio.Format(fechaLayout),
		Hasta:     hoy.Format(fechaLayout),
		Puntos:    make([]PuntoGrafico, 0, count),
		PorMetodo: map[models.MetodoPago]decimal.Decimal{},
	}
	idx := make(map[string]int, count)
	for b := inicio; !b.After(ultimo); b = periodo.siguiente(b) {
		label := b.Format(fechaLayout)
		idx[label] = len(g.Puntos)
		g.Puntos = append(g.Puntos, PuntoGrafico{
			Etiqueta:  label,
			PorMetodo: map[models.MetodoPago]decimal.Decimal{},
		})
	}

	for _, v := range ventas {
		label := periodo.bucket(v.FechaVenta.In(hoy.Location())).Format(fechaLayout)
		i, ok := idx[label]
		if !ok {
			continue
		}
		p := &g.Puntos[i]
		p.PorMetodo[v.MetodoPago] = p.PorMetodo[v.MetodoPago].Add(v.Total)
		p.Total = p.Total.Add(v.Total)

		g.PorMetodo[v.MetodoPago] = g.PorMetodo[v.MetodoPago].Add(v.Total)
		g.Total = g.Total.Add(v.Total)
	}
	return g, nil
}
