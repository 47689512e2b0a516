package router

import (
	"context"
	"io"
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin"
)

// MethodNotAllowedBody Body sent for unsupported methods.
const MethodNotAllowedBody = "This method is not allowed"

// BypassValue Bypass header value that marks requests coming from the migration worker.
const BypassValue = "1"

// ErrUpstreamFailure is matched by errors returned when an origin could not be reached.
var ErrUpstreamFailure = errors.New("upstream failure")

// Request Inbound request data used for routing.
type Request struct {
	Header      http.Header
	Method      string
	Path        string
	EscapedPath string
	RawQuery    string
}

// Result Routing result.
type Result struct {
	// Response to send back. Synthetic for filtered requests.
	Response *origin.Response
	// Resolved configuration, nil for filtered requests
	Bundle *config.Bundle
	// Object key, still percent-encoded
	Key string
	// Targets called, in order
	UpstreamCalls []origin.Target
	// Whether the migration worker must be notified
	ShouldNotify bool
}

// Router Origin fallback router.
type Router interface {
	// Route a request to Current then Legacy.
	Route(ctx context.Context, cfg *config.Config, req *Request) (*Result, error)
}

// NewRouter New origin fallback router.
func NewRouter(originManager origin.Manager) Router {
	return &router{originManager: originManager}
}

// ObjectKey returns the request path with exactly one leading slash removed.
func ObjectKey(requestPath string) string {
	return strings.TrimPrefix(requestPath, "/")
}

// IsBypass returns true when the bypass header is set to "1".
func IsBypass(header http.Header, headerName string) bool {
	return header.Get(headerName) == BypassValue
}

// IsAllowedMethod returns true for methods served by the proxy.
func IsAllowedMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

type upstreamError struct {
	err     error
	target  origin.Target
	backend string
}

func (e *upstreamError) Error() string {
	return "upstream failure on " + e.target.String() + " origin " + e.backend + ": " + e.err.Error()
}

func (e *upstreamError) Unwrap() error { return e.err }

func (e *upstreamError) Is(target error) bool { return target == ErrUpstreamFailure } //nolint: errorlint // Sentinel

func syntheticResponse(status int, contentType, body string) *origin.Response {
	h := http.Header{}

	var rc io.ReadCloser = http.NoBody

	if body != "" {
		h.Set("Content-Type", contentType)
		rc = io.NopCloser(strings.NewReader(body))
	}

	return &origin.Response{
		Header:     h,
		Body:       rc,
		StatusCode: status,
	}
}
