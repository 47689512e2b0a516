package metrics

import (
	"net/http"

	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
)

// Client Client metrics interface.
//
//go:generate mockgen -destination=./mocks/mock_Client.go -package=mocks github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics Client
type Client interface {
	// Will return a middleware to instrument http routers.
	Instrument(serverLabel string, metricsCfg *config.MetricsConfig) func(next http.Handler) http.Handler
	// Will return a handler to expose metrics over a http server.
	GetExposeHandler() http.Handler
	// Will increase counter of requests sent to origins.
	IncOriginRequests(target, backend, method, statusCode string)
	// Will increase counter of succeed webhooks.
	IncSucceedWebhooks(backend string)
	// Will increase counter of failed webhooks.
	IncFailedWebhooks(backend string)
	// Will increase counter of background jobs by outcome.
	IncDeferredJobs(name, status string)
}

// NewClient will generate a new client instance.
func NewClient() Client {
	client := &prometheusClient{}
	// Call register to create all prometheus instances objects
	client.register()

	return client
}
