// Package pagos simula un procesador de pagos con tarjeta. Las transacciones
// viven en memoria del proceso y se pierden al reiniciar.
package pagos

import (
	"strings"
	"sync"
	"time"

	"fruteria-backend/internal/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	Moneda             = "MXN"
	sufijoRechazo      = "0000"
	tiempoAcreditacion = "3-5 días hábiles"
)

type EstadoTransaccion string

const (
	EstadoAprobado         EstadoTransaccion = "aprobado"
	EstadoReembolsoParcial EstadoTransaccion = "reembolso_parcial"
	EstadoReembolsado      EstadoTransaccion = "reembolsado"
)

type PagoTarjeta struct {
	NumeroTarjeta   string
	FechaExpiracion string // MM/YY
	CVV             string
	NombreTitular   string
	Monto           decimal.Decimal
	TipoTarjeta     string
}

type Transaccion struct {
	Referencia         string            `json:"referencia_transaccion"`
	Monto              decimal.Decimal   `json:"monto"`
	MontoReembolsado   decimal.Decimal   `json:"monto_reembolsado"`
	Moneda             string            `json:"moneda"`
	MarcaTarjeta       string            `json:"marca_tarjeta"`
	TipoTarjeta        string            `json:"tipo_tarjeta"`
	UltimosDigitos     string            `json:"ultimos_digitos"`
	NombreTitular      string            `json:"nombre_titular"`
	FechaProcesamiento time.Time         `json:"fecha_procesamiento"`
	Estado             EstadoTransaccion `json:"estado"`
	CodigoAutorizacion string            `json:"codigo_autorizacion"`
}

type SolicitudReembolso struct {
	ReferenciaOriginal string
	Monto              decimal.Decimal
	Motivo             string
}

type Reembolso struct {
	Referencia                 string          `json:"referencia_reembolso"`
	ReferenciaOriginal         string          `json:"referencia_original"`
	Monto                      decimal.Decimal `json:"monto_reembolso"`
	Motivo                     string          `json:"motivo"`
	FechaProcesamiento         time.Time       `json:"fecha_procesamiento"`
	Estado                     string          `json:"estado"`
	TiempoEstimadoAcreditacion string          `json:"tiempo_estimado_acreditacion"`
}

type MetodoPago struct {
	ID          string          `json:"id"`
	Nombre      string          `json:"nombre"`
	Descripcion string          `json:"descripcion"`
	Activo      bool            `json:"activo"`
	Comision    decimal.Decimal `json:"comision"` // porcentaje
}

var metodos = []MetodoPago{
	{ID: "efectivo", Nombre: "Efectivo", Descripcion: "Pago en efectivo", Activo: true, Comision: decimal.Zero},
	{ID: "tarjeta_credito", Nombre: "Tarjeta de Crédito", Descripcion: "Visa, Mastercard, American Express", Activo: true, Comision: decimal.RequireFromString("3.5")},
	{ID: "tarjeta_debito", Nombre: "Tarjeta de Débito", Descripcion: "Tarjetas de débito bancarias", Activo: true, Comision: decimal.RequireFromString("2.0")},
	{ID: "transferencia", Nombre: "Transferencia Bancaria", Descripcion: "Transferencia electrónica", Activo: true, Comision: decimal.RequireFromString("1.0")},
}

type Simulator struct {
	mu  sync.RWMutex
	txs map[string]*Transaccion
	now func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{txs: map[string]*Transaccion{}, now: time.Now}
}

func nuevaReferencia(prefijo string) string {
	return prefijo + "-" + strings.ToUpper(uuid.NewString())
}

// marca por el primer dígito del número.
func marca(numero string) string {
	switch numero[0] {
	case '4':
		return "Visa"
	case '5':
		return "Mastercard"
	case '3':
		return "American Express"
	}
	return "Desconocida"
}

// vencida: la tarjeta vale hasta el último día del mes impreso.
func vencida(fecha string, now time.Time) (bool, error) {
	t, err := time.ParseInLocation("01/06", fecha, now.Location())
	if err != nil {
		return false, apperr.Validation("Fecha de expiración inválida. Formato esperado: MM/YY")
	}
	return !now.Before(t.AddDate(0, 1, 0)), nil
}

// ProcesarTarjeta aprueba el cargo salvo que la tarjeta esté vencida o
// termine en 0000, que el banco simulado siempre rechaza.
func (s *Simulator) ProcesarTarjeta(in PagoTarjeta) (*Transaccion, error) {
	if !in.Monto.IsPositive() {
		return nil, apperr.Validation("El monto debe ser mayor a 0")
	}
	if n := len(in.NumeroTarjeta); n < 13 || n > 19 {
		return nil, apperr.Validation("Número de tarjeta inválido")
	}
	if n := len(in.CVV); n < 3 || n > 4 {
		return nil, apperr.Validation("CVV inválido")
	}

	now := s.now()
	exp, err := vencida(in.FechaExpiracion, now)
	if err != nil {
		return nil, err
	}
	if exp {
		return nil, apperr.Validation("La tarjeta está vencida")
	}

	ultimos := in.NumeroTarjeta[len(in.NumeroTarjeta)-4:]
	if ultimos == sufijoRechazo {
		log.Info().Str("ultimos_digitos", ultimos).Msg("pagos: cargo rechazado")
		return nil, &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: "Pago rechazado por el banco. Verifique los datos de la tarjeta.",
			Fields:  map[string]string{"codigo_error": "PAYMENT_DECLINED"},
		}
	}

	tipo := in.TipoTarjeta
	if tipo == "" {
		tipo = "credito"
	}
	tx := &Transaccion{
		Referencia:         nuevaReferencia("TXN"),
		Monto:              in.Monto,
		Moneda:             Moneda,
		MarcaTarjeta:       marca(in.NumeroTarjeta),
		TipoTarjeta:        tipo,
		UltimosDigitos:     ultimos,
		NombreTitular:      in.NombreTitular,
		FechaProcesamiento: now,
		Estado:             EstadoAprobado,
		CodigoAutorizacion: "AUTH" + strings.ToUpper(uuid.NewString()[:6]),
	}

	s.mu.Lock()
	s.txs[tx.Referencia] = tx
	s.mu.Unlock()

	log.Info().Str("referencia", tx.Referencia).Str("monto", tx.Monto.String()).Msg("pagos: cargo aprobado")
	out := *tx
	return &out, nil
}

func (s *Simulator) Transaccion(ref string) (*Transaccion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[ref]
	if !ok {
		return nil, apperr.NotFound("Transacción no encontrada")
	}
	out := *tx
	return &out, nil
}

// Reembolsar admite reembolsos parciales hasta cubrir el monto original.
func (s *Simulator) Reembolsar(in SolicitudReembolso) (*Reembolso, error) {
	if !in.Monto.IsPositive() {
		return nil, apperr.Validation("El monto del reembolso debe ser mayor a 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[in.ReferenciaOriginal]
	if !ok {
		return nil, apperr.NotFound("Transacción no encontrada")
	}
	disponible := tx.Monto.Sub(tx.MontoReembolsado)
	if in.Monto.GreaterThan(disponible) {
		return nil, apperr.Validationf("El monto del reembolso excede lo disponible (%s)", disponible.StringFixed(2))
	}

	tx.MontoReembolsado = tx.MontoReembolsado.Add(in.Monto)
	tx.Estado = EstadoReembolsoParcial
	if tx.MontoReembolsado.Equal(tx.Monto) {
		tx.Estado = EstadoReembolsado
	}

	motivo := in.Motivo
	if motivo == "" {
		motivo = "Reembolso solicitado"
	}
	r := &Reembolso{
		Referencia:                 nuevaReferencia("REF"),
		ReferenciaOriginal:         tx.Referencia,
		Monto:                      in.Monto,
		Motivo:                     motivo,
		FechaProcesamiento:         s.now(),
		Estado:                     "procesado",
		TiempoEstimadoAcreditacion: tiempoAcreditacion,
	}
	log.Info().Str("referencia", r.Referencia).Str("original", tx.Referencia).Msg("pagos: reembolso procesado")
	return r, nil
}

func (s *Simulator) MetodosPago() []MetodoPago {
	out := make([]MetodoPago, len(metodos))
	copy(out, metodos)
	return out
}
