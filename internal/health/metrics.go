package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
)

// Metrics are the session's Prometheus collectors, registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks         prometheus.Counter
	heartbeat     prometheus.Gauge
	openPositions prometheus.Gauge
	phase         *prometheus.GaugeVec
	orders        *prometheus.CounterVec
	exits         *prometheus.CounterVec
	errors        prometheus.Counter
	buyingPower   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autotrade_ticks_total",
			Help: "Scheduler ticks processed",
		}),
		heartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autotrade_heartbeat_timestamp_seconds",
			Help: "Unix time of the last scheduler tick",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autotrade_open_positions",
			Help: "Positions held in the ledger",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autotrade_session_phase",
			Help: "1 for the current session phase, 0 otherwise",
		}, []string{"phase"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotrade_orders_total",
			Help: "Orders submitted by side and outcome",
		}, []string{"side", "outcome"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotrade_exit_signals_total",
			Help: "Exit signals by reason",
		}, []string{"reason"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autotrade_errors_total",
			Help: "Non-fatal errors reported by the scheduler",
		}),
		buyingPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autotrade_buying_power_usd",
			Help: "Buying power at session start",
		}),
	}

	m.registry.MustRegister(m.ticks, m.heartbeat, m.openPositions, m.phase, m.orders, m.exits, m.errors, m.buyingPower)

	return m
}

// Registry is the registry served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTick(at time.Time, phase types.Phase, openPositions int) {
	m.ticks.Inc()
	m.heartbeat.Set(float64(at.Unix()))
	m.openPositions.Set(float64(openPositions))
	m.SetPhase(phase)
}

func (m *Metrics) SetPhase(phase types.Phase) {
	for _, p := range []types.Phase{
		types.PhaseClosed, types.PhasePreOpenFlatten, types.PhaseActive, types.PhaseCloseOutFlatten, types.PhaseTerminated,
	} {
		v := 0.0
		if p == phase {
			v = 1
		}

		m.phase.WithLabelValues(string(p)).Set(v)
	}
}

func (m *Metrics) ObserveOrder(side types.PurchaseType, status types.OrderStatus) {
	m.orders.WithLabelValues(string(side), string(status)).Inc()
}

func (m *Metrics) ObserveExit(reason string) {
	m.exits.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveError() {
	m.errors.Inc()
}

func (m *Metrics) SetBuyingPower(usd float64) {
	m.buyingPower.Set(usd)
}
