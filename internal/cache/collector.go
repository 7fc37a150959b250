package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterCollector публикует счётчики кеша и рассылки инвалидации в reg.
// inv может быть nil, тогда регистрируются только метрики кеша.
func RegisterCollector(reg prometheus.Registerer, c PayloadCache, inv *NATSInvalidator) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "mapcache",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Попадания в кеш архивов.",
		}, func() float64 { return float64(c.GetMetrics().CacheHits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "mapcache",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Промахи кеша архивов.",
		}, func() float64 { return float64(c.GetMetrics().CacheMisses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mapcache",
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Доля попаданий в кеш архивов.",
		}, func() float64 { return c.GetMetrics().HitRatio }),
	}

	if inv != nil {
		collectors = append(collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "mapcache",
				Subsystem: "invalidation",
				Name:      "published_total",
				Help:      "Отправленные уведомления об инвалидации.",
			}, func() float64 { return counter(inv.GetMetrics(), "published_count") }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "mapcache",
				Subsystem: "invalidation",
				Name:      "received_total",
				Help:      "Полученные уведомления об инвалидации.",
			}, func() float64 { return counter(inv.GetMetrics(), "received_count") }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "mapcache",
				Subsystem: "invalidation",
				Name:      "errors_total",
				Help:      "Ошибки обработки уведомлений об инвалидации.",
			}, func() float64 { return counter(inv.GetMetrics(), "errors_count") }),
		)
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func counter(metrics map[string]interface{}, name string) float64 {
	v, _ := metrics[name].(int64)
	return float64(v)
}
