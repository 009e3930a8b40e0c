package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cloudpulse"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	scansTotal        prometheus.Counter
	anomaliesFound    *prometheus.GaugeVec
	scanDuration      prometheus.Histogram
	forecastsTotal    *prometheus.CounterVec
	forecastDuration  *prometheus.HistogramVec
	forecastFallbacks *prometheus.CounterVec
	circuitState      *prometheus.GaugeVec

	liveAppends   *prometheus.CounterVec
	anomalyFlag   prometheus.Gauge
	notifications *prometheus.CounterVec
	wsClients     prometheus.Gauge
	eventsDropped prometheus.Counter
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics set.
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a metrics set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),

		scansTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anomaly",
			Name:      "scans_total",
			Help:      "Total number of anomaly scans",
		}),
		anomaliesFound: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "anomaly",
			Name:      "current_count",
			Help:      "Anomalies found by the most recent scan",
		}, []string{"severity"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "anomaly",
			Name:      "scan_duration_seconds",
			Help:      "Duration of anomaly scans in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		forecastsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "runs_total",
			Help:      "Total number of forecast reconciliations",
		}, []string{"source"}),
		forecastDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "duration_seconds",
			Help:      "Duration of forecast fits in seconds",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"forecaster"}),
		forecastFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "fallbacks_total",
			Help:      "Forecasts served by the fallback estimator",
		}, []string{"reason"}),
		circuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),

		liveAppends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "appends_total",
			Help:      "Synthetic hours appended to the cost table",
		}, []string{"service", "spiked"}),
		anomalyFlag: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "anomaly_flag",
			Help:      "1 while anomaly injection is active",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Anomaly notifications by outcome",
		}, []string{"status"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber was full",
		}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordScan(duration time.Duration, bySeverity map[string]int) {
	m.scansTotal.Inc()
	m.scanDuration.Observe(duration.Seconds())
	for severity, n := range bySeverity {
		m.anomaliesFound.WithLabelValues(severity).Set(float64(n))
	}
}

func (m *Metrics) RecordForecast(source, forecaster string, duration time.Duration) {
	m.forecastsTotal.WithLabelValues(source).Inc()
	m.forecastDuration.WithLabelValues(forecaster).Observe(duration.Seconds())
}

func (m *Metrics) IncForecastFallback(reason string) {
	m.forecastFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.circuitState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) IncLiveAppend(service string, spiked bool) {
	m.liveAppends.WithLabelValues(service, strconv.FormatBool(spiked)).Inc()
}

func (m *Metrics) SetAnomalyFlag(active bool) {
	if active {
		m.anomalyFlag.Set(1)
		return
	}
	m.anomalyFlag.Set(0)
}

func (m *Metrics) IncNotification(status string) {
	m.notifications.WithLabelValues(status).Inc()
}

func (m *Metrics) SetWebSocketClients(n int) {
	m.wsClients.Set(float64(n))
}

func (m *Metrics) IncEventsDropped() {
	m.eventsDropped.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
