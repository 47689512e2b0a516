package tracing

import (
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
)

// Service interface
type Service interface {
	// Reload service (useful for configuration change)
	Reload() error
	// Get global tracer object
	GetTracer() opentracing.Tracer
	// Close tracer and flush pending spans
	Close() error
}

// Trace object interface
type Trace interface {
	// Set tag on trace
	SetTag(key string, value interface{})
	// Get child trace with an operation name
	GetChildTrace(operationName string) Trace
	// Will finish the trace
	Finish()
	// Get trace id as a string (useful for logs)
	GetTraceID() string
	// Inject trace context in http headers for outgoing requests
	InjectInHTTPHeader(header http.Header) error
}

// New tracing service.
func New(cfgManager config.Manager, logger log.Logger) (Service, error) {
	return newService(cfgManager, logger)
}
