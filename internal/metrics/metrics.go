package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de un dispatch. Cada hook es un proceso nuevo, así que se vuelcan a un
// archivo del textfile collector de node_exporter en vez de exponerse por HTTP.

type Metrics struct {
	reg *prometheus.Registry

	HookDuration          *prometheus.HistogramVec
	HookOutcomes          *prometheus.CounterVec
	BlockedTotal          prometheus.Counter
	KeystoreRegenerations *prometheus.CounterVec
	Peers                 prometheus.Gauge
}

// New crea las métricas sobre un registry propio.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		HookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_broker_hook_duration_seconds",
			Help:    "Duración de cada hook",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"hook"}),
		HookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_broker_hook_outcomes_total",
			Help: "Hooks por resultado",
		}, []string{"hook", "outcome"}), // outcome: active|blocked|waiting|error
		BlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_broker_blocked_total",
			Help: "Dispatches que terminaron en blocked",
		}),
		KeystoreRegenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_broker_keystore_regenerations_total",
			Help: "Regeneraciones de keystore por dominio y modo",
		}, []string{"domain", "mode"}),
		Peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kafka_broker_peers",
			Help: "Unidades vistas en la relación de peers (incluida la local)",
		}),
	}
	// registry nuevo: no puede haber colisiones.
	m.reg.MustRegister(m.HookDuration, m.HookOutcomes, m.BlockedTotal, m.KeystoreRegenerations, m.Peers)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveHook registra duración y resultado.
func (m *Metrics) ObserveHook(hook, outcome string, d time.Duration) {
	m.HookDuration.WithLabelValues(hook).Observe(d.Seconds())
	m.HookOutcomes.WithLabelValues(hook, outcome).Inc()
	if outcome == "blocked" {
		m.BlockedTotal.Inc()
	}
}

// Keystore cuenta una regeneración.
func (m *Metrics) Keystore(domain, mode string) {
	m.KeystoreRegenerations.WithLabelValues(domain, mode).Inc()
}

// TextfilePath devuelve el .prom de la unidad dentro de dir.
func TextfilePath(dir, unit string) string {
	name := strings.NewReplacer("/", "_", "-", "_").Replace(unit)
	return filepath.Join(dir, "kafka_broker_"+name+".prom")
}

// WriteTextfile vuelca el registry. dir vacío => no-op.
func (m *Metrics) WriteTextfile(dir, unit string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	if err := prometheus.WriteToTextfile(TextfilePath(dir, unit), m.reg); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return nil
}
