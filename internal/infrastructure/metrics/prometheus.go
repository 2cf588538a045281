// Package metrics expone los contadores del motor de inventario en Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
)

var _ inventory.Metrics = (*InventoryMetrics)(nil)

const namespace = "inventory"

// InventoryMetrics implementa inventory.Metrics sobre un registro propio.
type InventoryMetrics struct {
	registry *prometheus.Registry

	movements    *prometheus.CounterVec
	units        *prometheus.CounterVec
	insufficient *prometheus.CounterVec
	fallbacks    prometheus.Counter
	fallbackQty  prometheus.Counter
	validations  prometheus.Counter
	txs          *prometheus.CounterVec
}

// New registra los colectores. Con withRuntime también los de proceso y Go.
func New(withRuntime bool) *InventoryMetrics {
	m := &InventoryMetrics{
		registry: prometheus.NewRegistry(),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "movements_total",
			Help: "Movimientos registrados en el libro.",
		}, []string{"type", "kind"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "units_moved_total",
			Help: "Unidades movidas por tipo de movimiento.",
		}, []string{"type", "kind"}),
		insufficient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "insufficient_stock_total",
			Help: "Operaciones rechazadas por falta de existencias.",
		}, []string{"kind"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cost_fallback_total",
			Help: "Estimaciones de costo que recurrieron al costo de compra.",
		}),
		fallbackQty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cost_fallback_units_total",
			Help: "Unidades valuadas con el costo de compra por falta de lotes.",
		}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "validation_failures_total",
			Help: "Validaciones de venta rechazadas.",
		}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_total",
			Help: "Transacciones de inventario por operación y resultado.",
		}, []string{"op", "result"}),
	}
	m.registry.MustRegister(m.movements, m.units, m.insufficient, m.fallbacks, m.fallbackQty, m.validations, m.txs)
	if withRuntime {
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Handler sirve el registro en formato de exposición de Prometheus.
func (m *InventoryMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry para pruebas y para registrar colectores adicionales.
func (m *InventoryMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *InventoryMetrics) MovementRecorded(movementType, kind string, qty int) {
	m.movements.WithLabelValues(movementType, kind).Inc()
	m.units.WithLabelValues(movementType, kind).Add(float64(qty))
}

func (m *InventoryMetrics) InsufficientStock(kind string) {
	m.insufficient.WithLabelValues(kind).Inc()
}

// CostFallback no etiqueta por producto para no disparar la cardinalidad.
func (m *InventoryMetrics) CostFallback(_ string, qty int) {
	m.fallbacks.Inc()
	m.fallbackQty.Add(float64(qty))
}

func (m *InventoryMetrics) ValidationFailed(int) {
	m.validations.Inc()
}

func (m *InventoryMetrics) TxCompleted(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.txs.WithLabelValues(op, result).Inc()
}
