package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/mapcache/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer HTTP-эндпоинт Prometheus /metrics
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer создаёт сервер для gatherer (nil означает глобальный регистр)
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler обработчик запросов сервера
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// Start запускает сервер в отдельной горутине
func (s *MetricsServer) Start() {
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}

// Shutdown останавливает сервер
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
