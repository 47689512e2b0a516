package router

import (
	"context"
	"io"
	"net/http"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin"
)

// Upper bound read from a superseded body so its connection can be reused.
const maxDrainBytes = 64 << 10

type router struct {
	originManager origin.Manager
}

func (rt *router) Route(ctx context.Context, cfg *config.Config, req *Request) (*Result, error) {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)

	// Filter unsupported methods
	if !IsAllowedMethod(req.Method) {
		logger.Debugf("Method %s not allowed", req.Method)

		return &Result{
			Response: syntheticResponse(http.StatusMethodNotAllowed, "text/plain; charset=utf-8", MethodNotAllowedBody),
		}, nil
	}

	// Ignore excluded paths
	if cfg.Migration.IsExcludedPath(req.Path) {
		logger.Debugf("Path %s is excluded", req.Path)

		return &Result{
			Response: syntheticResponse(http.StatusNotFound, "", ""),
		}, nil
	}

	// Resolve configuration before any upstream call
	bundle, err := config.ResolveBundle(cfg)
	// Check error
	if err != nil {
		return nil, err
	}

	// Key is the path as origins receive it
	res := &Result{
		Bundle:        bundle,
		Key:           ObjectKey(escapedPath(req)),
		UpstreamCalls: make([]origin.Target, 0, 2),
	}

	bypass := IsBypass(req.Header, cfg.Migration.BypassHeader)

	var current *origin.Response

	// Requests from the migration worker go straight to legacy
	if !bypass {
		res.UpstreamCalls = append(res.UpstreamCalls, origin.Current)

		current, err = rt.fetch(ctx, origin.Current, bundle.CurrentBaseURL, res.Key, req)
		// Check error
		if err != nil {
			// Stop here if fallback isn't allowed
			if !cfg.Migration.FallbackOnError {
				return nil, err
			}

			logger.WithError(err).Warn("Current origin failed, falling back to legacy origin")
		}

		// Found in current, or any status other than not found
		if current != nil && current.StatusCode != http.StatusNotFound {
			res.Response = current

			return res, nil
		}

		// Current response is superseded
		if current != nil {
			drain(current)
		}
	}

	res.UpstreamCalls = append(res.UpstreamCalls, origin.Legacy)

	legacy, err := rt.fetch(ctx, origin.Legacy, bundle.LegacyBaseURL, res.Key, req)
	// Check error
	if err != nil {
		return nil, err
	}

	res.Response = legacy
	res.ShouldNotify = !bypass && legacy.IsSuccess()

	return res, nil
}

func (rt *router) fetch(ctx context.Context, target origin.Target, baseURL, key string, req *Request) (*origin.Response, error) {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)

	backend := rt.originManager.GetBackend(target)
	// Check if backend exists
	if backend == nil {
		return nil, &upstreamError{
			err:    errors.Errorf("no backend loaded for %s origin", target),
			target: target,
		}
	}

	resp, err := backend.Fetch(ctx, &origin.FetchInput{
		Method:   req.Method,
		Key:      key,
		Path:     escapedPath(req),
		RawQuery: req.RawQuery,
		BaseURL:  baseURL,
	})
	// Check error
	if err != nil {
		return nil, &upstreamError{err: err, target: target, backend: backend.Name()}
	}

	// Log status
	spLogger := logger.WithFields(map[string]interface{}{
		"origin_target":  target.String(),
		"origin_backend": backend.Name(),
	})

	if xCache := resp.Header.Get("X-Cache"); xCache != "" {
		spLogger.Infof("Status from %s is %d, cache %s", backend.Name(), resp.StatusCode, xCache)
	} else {
		spLogger.Infof("Status from %s is %d", backend.Name(), resp.StatusCode)
	}

	return resp, nil
}

// Use escaped path when available.
func escapedPath(req *Request) string {
	if req.EscapedPath == "" {
		return req.Path
	}

	return req.EscapedPath
}

func drain(resp *origin.Response) {
	if resp.Body != nil {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	}

	_ = resp.Close()
}
