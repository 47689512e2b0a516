package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/utils/generalutils"
)

// ImproveTracing tags the request span with request details.
func ImproveTracing() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			// Get trace from request
			trace := tracing.GetTraceFromRequest(req)
			// Check if trace exists
			if trace != nil {
				// Add request id to trace
				trace.SetTag("http.request_id", middleware.GetReqID(req.Context()))
				// Add request host
				trace.SetTag("http.request_host", generalutils.GetRequestHost(req))
				// Add request path
				trace.SetTag("http.request_path", req.URL.Path)
			}

			// Next
			next.ServeHTTP(rw, req)
		})
	}
}
