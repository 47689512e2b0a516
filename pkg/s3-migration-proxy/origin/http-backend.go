package origin

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
)

// TransportErrorStatus Status label used in metrics when no response has been received.
const TransportErrorStatus = "error"

type httpBackend struct {
	client    *resty.Client
	cfg       *config.OriginConfig
	metricsCl metrics.Client
	target    Target
}

func newHTTPBackend(target Target, ocfg *config.OriginConfig, metricsCl metrics.Client, logger log.Logger) *httpBackend {
	// Create client
	cli := resty.New()
	// Redirects are given back to the client
	cli = cli.SetRedirectPolicy(resty.RedirectPolicyFunc(func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	// Manage timeout
	if ocfg.TimeoutDuration != 0 {
		cli = cli.SetTimeout(ocfg.TimeoutDuration)
	}
	// Manage logger
	if logger != nil {
		cli = cli.SetLogger(logger)
	}

	return &httpBackend{
		client:    cli,
		cfg:       ocfg,
		metricsCl: metricsCl,
		target:    target,
	}
}

func (b *httpBackend) Name() string { return b.cfg.Name }

// BuildURL builds upstream url from base url, escaped path and raw query.
func BuildURL(baseURL, escapedPath, rawQuery string) string {
	u := strings.TrimSuffix(baseURL, "/") + escapedPath
	// Add query if present
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	return u
}

func (b *httpBackend) Fetch(ctx context.Context, input *FetchInput) (*Response, error) {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)

	// Build url
	u := BuildURL(input.BaseURL, input.Path, input.RawQuery)

	// Create child trace
	childTrace := tracing.StartChildTrace(ctx, "origin.http-request")
	childTrace.SetTag("origin.target", b.target.String())
	childTrace.SetTag("origin.backend", b.cfg.Name)
	childTrace.SetTag("origin.url", u)

	defer childTrace.Finish()

	// Create request
	req := b.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	// Add trace to http header for forwarding
	err := childTrace.InjectInHTTPHeader(req.Header)
	// Check error
	if err != nil {
		return nil, err
	}

	logger.Infof("Attempting to %s %s from %s", input.Method, u, b.cfg.Name)

	// Execute request
	res, err := req.Execute(input.Method, u)
	// Check error
	if err != nil {
		// Metrics
		b.metricsCl.IncOriginRequests(b.target.String(), b.cfg.Name, input.Method, TransportErrorStatus)

		return nil, errors.WithStack(err)
	}

	// Metrics
	b.metricsCl.IncOriginRequests(b.target.String(), b.cfg.Name, input.Method, strconv.Itoa(res.StatusCode()))

	childTrace.SetTag("origin.status-code", res.StatusCode())

	// Log content length when known
	if res.RawResponse.ContentLength >= 0 {
		logger.Debugf("Content length from %s is %s", b.cfg.Name, humanize.Bytes(uint64(res.RawResponse.ContentLength)))
	}

	return &Response{
		Header:     res.Header(),
		Body:       res.RawBody(),
		Target:     b.target,
		Backend:    b.cfg.Name,
		URL:        u,
		StatusCode: res.StatusCode(),
	}, nil
}
