// Package metrics exposes Prometheus instruments for the HTTP surface and domain events.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// HTTPMetrics captures request-level signals.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// Metrics exposes domain-level instruments.
type Metrics struct {
	ticketsSubmitted   *prometheus.CounterVec
	invoicesApproved   prometheus.Counter
	invoicesRejected   prometheus.Counter
	emailDeliveries    *prometheus.CounterVec
	ocrRequests        *prometheus.CounterVec
	rateLimitedDenials *prometheus.CounterVec
}

// NewHTTPMetrics registers HTTP metrics on the default registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	labels := constLabels(cfg)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "facturio_http_requests_total",
		Help:        "Counts HTTP requests by method, route and status.",
		ConstLabels: labels,
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "facturio_http_request_duration_seconds",
		Help:        "HTTP request latency by method and route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	}, []string{"method", "route"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "facturio_http_requests_in_flight",
		Help:        "Number of HTTP requests currently being served.",
		ConstLabels: labels,
	})

	prometheus.MustRegister(requests, duration, inFlight)

	return &HTTPMetrics{requests: requests, duration: duration, inFlight: inFlight}
}

// New registers domain metrics on the default registerer.
func New(cfg Config) *Metrics {
	labels := constLabels(cfg)

	ticketsSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "facturio_tickets_submitted_total",
		Help:        "Ticket submissions by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})

	invoicesApproved := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "facturio_invoices_approved_total",
		Help:        "Invoices approved and generated.",
		ConstLabels: labels,
	})

	invoicesRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "facturio_invoices_rejected_total",
		Help:        "Invoice requests rejected.",
		ConstLabels: labels,
	})

	emailDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "facturio_email_deliveries_total",
		Help:        "Invoice email delivery attempts by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})

	ocrRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "facturio_ocr_requests_total",
		Help:        "Upstream OCR calls by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})

	rateLimitedDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "facturio_rate_limit_denied_total",
		Help:        "Requests denied by the rate limiter per endpoint.",
		ConstLabels: labels,
	}, []string{"endpoint"})

	prometheus.MustRegister(
		ticketsSubmitted,
		invoicesApproved,
		invoicesRejected,
		emailDeliveries,
		ocrRequests,
		rateLimitedDenials,
	)

	return &Metrics{
		ticketsSubmitted:   ticketsSubmitted,
		invoicesApproved:   invoicesApproved,
		invoicesRejected:   invoicesRejected,
		emailDeliveries:    emailDeliveries,
		ocrRequests:        ocrRequests,
		rateLimitedDenials: rateLimitedDenials,
	}
}

// RecordTicketSubmitted increments ticket submission counts.
func (m *Metrics) RecordTicketSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.ticketsSubmitted.WithLabelValues(outcome).Inc()
}

// RecordInvoiceApproved increments the approval counter.
func (m *Metrics) RecordInvoiceApproved() {
	if m == nil {
		return
	}
	m.invoicesApproved.Inc()
}

// RecordInvoiceRejected increments the rejection counter.
func (m *Metrics) RecordInvoiceRejected() {
	if m == nil {
		return
	}
	m.invoicesRejected.Inc()
}

// RecordEmailDelivery increments delivery attempt counts.
func (m *Metrics) RecordEmailDelivery(outcome string) {
	if m == nil {
		return
	}
	m.emailDeliveries.WithLabelValues(outcome).Inc()
}

// RecordOCRRequest increments upstream OCR call counts.
func (m *Metrics) RecordOCRRequest(outcome string) {
	if m == nil {
		return
	}
	m.ocrRequests.WithLabelValues(outcome).Inc()
}

// RecordRateLimitDenied increments rate limit denial counts.
func (m *Metrics) RecordRateLimitDenied(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitedDenials.WithLabelValues(endpoint).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.inFlight.Inc()
		start := time.Now()
		c.Next()
		m.inFlight.Dec()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "facturio"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "environment": environment}
}
