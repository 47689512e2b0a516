package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusClient struct {
	registry            *prometheus.Registry
	reqCnt              *prometheus.CounterVec
	resSz               *prometheus.SummaryVec
	reqDur              *prometheus.SummaryVec
	reqSz               *prometheus.SummaryVec
	up                  *prometheus.GaugeVec
	originRequestsTotal *prometheus.CounterVec
	succeedWebhooks     *prometheus.CounterVec
	failedWebhooks      *prometheus.CounterVec
	deferredJobsTotal   *prometheus.CounterVec
}

// Instrument will instrument http routes.
func (cl *prometheusClient) Instrument(serverLabel string, metricsCfg *config.MetricsConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Begin timer
			start := time.Now()
			// Calculate request size
			reqSz := computeApproximateRequestSize(r)

			// Next request with new response writer
			sw := statusWriter{ResponseWriter: w}
			next.ServeHTTP(&sw, r)

			// Nothing written means an implicit 200
			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			// Get status as string
			status := strconv.Itoa(sw.status)
			// Calculate request time
			elapsed := float64(time.Since(start)) / float64(time.Second)
			// Get response size
			resSz := float64(sw.length)

			// Init path
			path := r.URL.Path
			// Check if router path metrics is disabled
			if metricsCfg != nil && metricsCfg.DisableRouterPath {
				path = ""
			}

			// Manage prometheus metrics
			cl.reqDur.WithLabelValues(serverLabel, status, r.Method, r.Host, path).Observe(elapsed)
			cl.reqCnt.WithLabelValues(serverLabel, status, r.Method, r.Host, path).Inc()
			cl.reqSz.WithLabelValues(serverLabel, status, r.Method, r.Host, path).Observe(float64(reqSz))
			cl.resSz.WithLabelValues(serverLabel, status, r.Method, r.Host, path).Observe(resSz)
		})
	}
}

// GetExposeHandler Get handler to expose metrics for resquest.
func (cl *prometheusClient) GetExposeHandler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, cl.registry},
		promhttp.HandlerOpts{},
	)
}

// IncOriginRequests Increment origin request counter.
func (cl *prometheusClient) IncOriginRequests(target, backend, method, statusCode string) {
	cl.originRequestsTotal.WithLabelValues(target, backend, method, statusCode).Inc()
}

func (cl *prometheusClient) IncSucceedWebhooks(backend string) {
	cl.succeedWebhooks.WithLabelValues(backend).Inc()
}

func (cl *prometheusClient) IncFailedWebhooks(backend string) {
	cl.failedWebhooks.WithLabelValues(backend).Inc()
}

func (cl *prometheusClient) IncDeferredJobs(name, status string) {
	cl.deferredJobsTotal.WithLabelValues(name, status).Inc()
}

func (cl *prometheusClient) register() {
	// Process, go and tracer metrics stay on the default registry
	cl.registry = prometheus.NewRegistry()

	cl.reqCnt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "How many HTTP requests have been processed ?",
		},
		[]string{"server", "status_code", "method", "host", "path"},
	)
	cl.registry.MustRegister(cl.reqCnt)

	cl.reqDur = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_request_duration_seconds",
			Help: "The HTTP request latencies in seconds.",
		},
		[]string{"server", "status_code", "method", "host", "path"},
	)
	cl.registry.MustRegister(cl.reqDur)

	cl.reqSz = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_request_size_bytes",
			Help: "The HTTP request sizes in bytes.",
		},
		[]string{"server", "status_code", "method", "host", "path"},
	)
	cl.registry.MustRegister(cl.reqSz)

	cl.resSz = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_response_size_bytes",
			Help: "The HTTP response sizes in bytes.",
		},
		[]string{"server", "status_code", "method", "host", "path"},
	)
	cl.registry.MustRegister(cl.resSz)

	cl.up = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "up",
			Help: "1 = up, 0 = down",
		},
		[]string{"component"},
	)
	cl.up.WithLabelValues(version.ServiceName).Set(1)
	cl.registry.MustRegister(cl.up)

	cl.originRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_requests_total",
			Help: "How many requests have been sent to origins ?",
		},
		[]string{"target", "backend", "method", "status_code"},
	)
	cl.registry.MustRegister(cl.originRequestsTotal)

	cl.succeedWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "succeed_webhooks_total",
			Help: "How many webhooks have been succeed ?",
		},
		[]string{"backend"},
	)
	cl.registry.MustRegister(cl.succeedWebhooks)

	cl.failedWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failed_webhooks_total",
			Help: "How many webhooks have been failed ?",
		},
		[]string{"backend"},
	)
	cl.registry.MustRegister(cl.failedWebhooks)

	cl.deferredJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deferred_jobs_total",
			Help: "How many background jobs have been run after responses ?",
		},
		[]string{"name", "status"},
	)
	cl.registry.MustRegister(cl.deferredJobsTotal)
}

// From https://github.com/DanielHeckrath/gin-prometheus/blob/master/gin_prometheus.go
func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}

	s += len(r.Method)
	s += len(r.Proto)

	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}

	s += len(r.Host)

	// N.B. r.Form and r.MultipartForm are assumed to be included in r.URL.

	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}

	return s
}
