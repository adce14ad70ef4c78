package metrics

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Route labels for requests echo could not match to a registered route.
const unmatchedRoute = "unmatched"

// HTTPMetrics tracks console API traffic by route template, so
// /api/earnings/:id/approve is one series however many earnings are decided.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   *prometheus.GaugeVec
	SocketUpgrades  *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of console HTTP requests in seconds, by route template.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route", "status_class"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of console HTTP requests, by route template.",
		}, []string{"method", "route", "status_class"}),
		InFlightGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Console HTTP requests currently being processed, by area.",
		}, []string{"area"}),
		SocketUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "socket_upgrades_total",
			Help:      "Console socket upgrade attempts, by status class.",
		}, []string{"status_class"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.SocketUpgrades)
	return m
}

// Middleware records console request metrics. Operational endpoints are
// skipped. Console socket requests live as long as the socket, so they are
// counted as upgrades instead of timed.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeLabel(c.Path())
			area := routeArea(route)
			switch area {
			case "ops":
				return next(c)
			case "console":
				err := next(c)
				m.SocketUpgrades.WithLabelValues(statusClass(c.Response().Status)).Inc()
				return err
			}

			inFlight := m.InFlightGauge.WithLabelValues(area)
			inFlight.Inc()
			defer inFlight.Dec()

			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				method := c.Request().Method
				class := statusClass(c.Response().Status)
				m.RequestDuration.WithLabelValues(method, route, class).Observe(v)
				m.RequestsTotal.WithLabelValues(method, route, class).Inc()
			}))

			err := next(c)
			timer.ObserveDuration()
			return err
		}
	}
}

// routeLabel keeps the route template and folds unknown paths into one label.
func routeLabel(path string) string {
	if path == "" || path == "/*" || path == "/" {
		return unmatchedRoute
	}
	return path
}

// routeArea groups a route template into api, auth, console, ops or other.
func routeArea(route string) string {
	switch {
	case route == "/metrics", route == "/version", strings.HasPrefix(route, "/health/"):
		return "ops"
	case strings.HasPrefix(route, "/ws/"):
		return "console"
	case strings.HasPrefix(route, "/api/"):
		return "api"
	case strings.HasPrefix(route, "/auth/"):
		return "auth"
	default:
		return "other"
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
