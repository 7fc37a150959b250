package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики сканирования мира. Нулевой *Metrics допустим и ничего не считает.
type Metrics struct {
	regions      *prometheus.CounterVec
	withLocs     prometheus.Counter
	scanDuration prometheus.Histogram
	indexed      prometheus.Gauge
}

// Метки результата загрузки региона
const (
	resultLoaded    = "loaded"
	resultMissing   = "missing"
	resultMalformed = "malformed"
)

// NewMetrics создаёт метрики и регистрирует их в reg (nil означает глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		regions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapcache",
			Subsystem: "world",
			Name:      "regions_total",
			Help:      "Обработанные идентификаторы регионов по результату.",
		}, []string{"result"}),
		withLocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapcache",
			Subsystem: "world",
			Name:      "regions_with_locations_total",
			Help:      "Регионы, для которых загружены расположения объектов.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mapcache",
			Subsystem: "world",
			Name:      "scan_duration_seconds",
			Help:      "Длительность полного сканирования мира.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		indexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapcache",
			Subsystem: "world",
			Name:      "regions_indexed",
			Help:      "Регионы в индексе после последнего сканирования.",
		}),
	}

	reg.MustRegister(m.regions, m.withLocs, m.scanDuration, m.indexed)
	return m
}

func (m *Metrics) region(result string) {
	if m == nil {
		return
	}
	m.regions.WithLabelValues(result).Inc()
}

func (m *Metrics) locations() {
	if m == nil {
		return
	}
	m.withLocs.Inc()
}

func (m *Metrics) scanned(start time.Time, indexed int) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(time.Since(start).Seconds())
	m.indexed.Set(float64(indexed))
}
