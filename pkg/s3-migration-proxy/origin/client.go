package origin

import (
	"context"
	"io"
	"net/http"

	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
)

// Target identifies one of the two storage origins.
type Target int

const (
	// Current is the destination storage, tried first.
	Current Target = iota
	// Legacy is the storage being migrated away from.
	Legacy
)

func (t Target) String() string {
	switch t {
	case Current:
		return "current"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// FetchInput Fetch input.
type FetchInput struct {
	// Request method (GET or HEAD)
	Method string
	// Object key (escaped request path without leading slash)
	Key string
	// Escaped request path with leading slash
	Path string
	// Raw query without "?"
	RawQuery string
	// Base url resolved from store, only used by HTTP backends
	BaseURL string
}

// Response Upstream response.
type Response struct {
	Header     http.Header
	Body       io.ReadCloser
	Target     Target
	Backend    string
	URL        string
	StatusCode int
}

// IsSuccess returns true for 2xx statuses.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Close closes the body if present.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}

	return r.Body.Close()
}

// Backend is a named upstream origin.
//
//go:generate mockgen -destination=./mocks/mock_Backend.go -package=mocks github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin Backend
type Backend interface {
	// Backend name used in logs and metrics
	Name() string
	// Fetch an object. Non 2xx statuses are responses, not errors.
	Fetch(ctx context.Context, input *FetchInput) (*Response, error)
}

// Manager keeps one backend per target.
//
//go:generate mockgen -destination=./mocks/mock_Manager.go -package=mocks github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin Manager
type Manager interface {
	// Load (or reload) backends from configuration
	Load() error
	// Get backend for target
	GetBackend(target Target) Backend
}

// NewManager New origin manager.
func NewManager(cfgManager config.Manager, metricsCl metrics.Client, logger log.Logger) Manager {
	return &manager{
		cfgManager: cfgManager,
		metricsCl:  metricsCl,
		logger:     logger,
		backends:   map[Target]Backend{},
	}
}
