// Package metrics содержит Prometheus-метрики клуба участников.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memberclub"

// Metrics хранит счётчики бизнес-событий и HTTP-запросов в собственном реестре.
// Нулевой указатель допустим: все методы записи тогда ничего не делают.
type Metrics struct {
	registry         *prometheus.Registry
	giftClaims       *prometheus.CounterVec
	paymentDecisions *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New создаёт и регистрирует метрики.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		giftClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gift_claims_total",
			Help:      "Gift claim attempts by outcome.",
		}, []string{"outcome"}),
		paymentDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_decisions_total",
			Help:      "Admin payment decisions by decision and outcome.",
		}, []string{"decision", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.giftClaims,
		m.paymentDecisions,
		m.requests,
		m.requestDuration,
	)
	return m
}

// GiftClaim учитывает попытку получить подарок.
func (m *Metrics) GiftClaim(outcome string) {
	if m == nil {
		return
	}
	m.giftClaims.WithLabelValues(outcome).Inc()
}

// PaymentDecision учитывает решение администратора по платежу.
func (m *Metrics) PaymentDecision(decision, outcome string) {
	if m == nil {
		return
	}
	m.paymentDecisions.WithLabelValues(decision, outcome).Inc()
}

// Handler возвращает обработчик /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	// Сжатие ответа выполняет общий gzip-middleware роутера.
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:           m.registry,
		DisableCompression: true,
	})
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware учитывает количество и длительность HTTP-запросов по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
