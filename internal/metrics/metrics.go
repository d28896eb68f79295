package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/store"
)

const namespace = "grocery"

// Metrics holds the shop's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	occupiedZones prometheus.Gauge
	totalZones    prometheus.Gauge
	indexedNames  prometheus.Gauge
	journalDrops  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Shelf operations by kind and outcome.",
		}, []string{"op", "result"}),
		occupiedZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied_zones",
			Help:      "Zones currently holding an item.",
		}),
		totalZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zones",
			Help:      "Zone slots across all racks.",
		}),
		indexedNames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_names",
			Help:      "Distinct item names in the name index.",
		}),
		journalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_failures_total",
			Help:      "Movements that could not be written to the journal.",
		}),
	}
	reg.MustRegister(m.operations, m.occupiedZones, m.totalZones, m.indexedNames, m.journalDrops)
	return m
}

// Observe counts one operation and its outcome.
func (m *Metrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Result(err)).Inc()
}

func (m *Metrics) SetShelves(st store.Stats) {
	if m == nil {
		return
	}
	m.occupiedZones.Set(float64(st.Occupied))
	m.totalZones.Set(float64(st.Zones))
	m.indexedNames.Set(float64(st.Names))
}

func (m *Metrics) JournalFailed() {
	if m == nil {
		return
	}
	m.journalDrops.Inc()
}

// Result maps an error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrMoveFailed):
		return "move_failed"
	case errors.Is(err, domain.ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, domain.ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrSlotExists):
		return "slot_exists"
	default:
		return "error"
	}
}
