package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"emperror.dev/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httptracer"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/deferred"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/router"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/server/middlewares"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/server/utils"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/utils/generalutils"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/version"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/webhook"
	"github.com/thoas/go-funk"
)

// NotificationJobName Deferred job name used for migration notifications.
const NotificationJobName = "migration-notification"

// Headers that apply to a single connection and must not be copied from origins.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Server Public server answering proxied requests.
type Server struct {
	logger         log.Logger
	cfgManager     config.Manager
	metricsCl      metrics.Client
	tracingSvc     tracing.Service
	originManager  origin.Manager
	webhookManager webhook.Manager
	runner         deferred.Runner
	server         *http.Server
	handler        atomic.Value
}

// NewServer New public server.
func NewServer(
	logger log.Logger,
	cfgManager config.Manager,
	metricsCl metrics.Client,
	tracingSvc tracing.Service,
	originManager origin.Manager,
	webhookManager webhook.Manager,
	runner deferred.Runner,
) *Server {
	return &Server{
		logger:         logger,
		cfgManager:     cfgManager,
		metricsCl:      metricsCl,
		tracingSvc:     tracingSvc,
		originManager:  originManager,
		webhookManager: webhookManager,
		runner:         runner,
	}
}

// Listen serves until Shutdown is called.
func (svr *Server) Listen() error {
	svr.logger.Infof("Server listening on %s", svr.server.Addr)
	err := svr.server.ListenAndServe()
	// Closed by shutdown
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return errors.WithStack(err)
}

// Shutdown stops accepting requests and waits for in flight ones.
func (svr *Server) Shutdown(ctx context.Context) error {
	return errors.WithStack(svr.server.Shutdown(ctx))
}

// GenerateServer builds the http server and reloads its handler on configuration change.
func (svr *Server) GenerateServer() error {
	// Get configuration
	cfg := svr.cfgManager.GetConfig()
	// Generate router
	svr.handler.Store(svr.generateRouter())

	// Create server
	addr := cfg.Server.ListenAddr + ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			svr.handler.Load().(http.Handler).ServeHTTP(rw, req) //nolint:forcetypeassert // Always a handler
		}),
	}

	// Inject timeouts
	err := injectServerTimeout(server, cfg.Server.Timeouts)
	// Check error
	if err != nil {
		return err
	}

	// Prepare for configuration onChange
	svr.cfgManager.AddOnChangeHook(func() {
		// Change server handler
		svr.handler.Store(svr.generateRouter())
		svr.logger.Info("Server handler reloaded")
	})

	// Store server
	svr.server = server

	return nil
}

func (svr *Server) generateRouter() http.Handler {
	// Get configuration
	cfg := svr.cfgManager.GetConfig()

	// Create router
	r := chi.NewRouter()

	// Check if we need to enabled the compress middleware
	if cfg.Server.Compress != nil && cfg.Server.Compress.Enabled != nil && *cfg.Server.Compress.Enabled {
		r.Use(middleware.Compress(
			cfg.Server.Compress.Level,
			cfg.Server.Compress.Types...,
		))
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// Manage tracing
	// Create http tracer configuration
	httptraCfg := httptracer.Config{
		ServiceName:    version.ServiceName,
		ServiceVersion: version.GetVersion().Version,
		SampleRate:     1,
		OperationName:  "http.request",
		Tags:           cfg.Tracing.FixedTags,
	}
	// Put tracing middlewares
	r.Use(httptracer.Tracer(svr.tracingSvc.GetTracer(), httptraCfg))
	r.Use(middlewares.ImproveTracing())
	r.Use(log.NewStructuredLogger(
		svr.logger,
		tracing.GetTraceIDFromRequest,
		generalutils.ClientIP,
		generalutils.GetRequestURI,
	))
	r.Use(log.HTTPAddLoggerToContextMiddleware())
	r.Use(svr.metricsCl.Instrument("business", cfg.Metrics))
	// Recover panic
	r.Use(middleware.Recoverer)

	// Check if cors is enabled
	if cfg.Server.CORS != nil && cfg.Server.CORS.Enabled {
		// Generate CORS
		cc := generateCors(cfg.Server, svr.logger.GetCorsLogger())
		// Apply CORS handler
		r.Use(cc.Handler)
	}

	// Every method and path goes to the migration handler
	h := svr.migrationHandler(router.NewRouter(svr.originManager))
	r.Handle("/", h)
	r.Handle("/*", h)
	// Methods unknown to chi are answered by the handler too
	r.MethodNotAllowed(h)

	return r
}

func (svr *Server) migrationHandler(rt router.Router) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		// Get logger
		logger := log.GetLoggerFromContext(ctx)
		// Snapshot configuration for the whole request
		cfg := svr.cfgManager.GetConfig()

		res, err := rt.Route(ctx, cfg, &router.Request{
			Header:      req.Header,
			Method:      req.Method,
			Path:        req.URL.Path,
			EscapedPath: req.URL.EscapedPath(),
			RawQuery:    req.URL.RawQuery,
		})
		// Check error
		if err != nil {
			logger.Error(err)

			// Missing configuration
			if errors.Is(err, config.ErrMissingConfiguration) {
				utils.HandleInternalServerError(rw, err, req.URL.RequestURI(), logger, cfg.Templates)

				return
			}

			utils.HandleBadGateway(rw, err, req.URL.RequestURI(), logger, cfg.Templates)

			return
		}

		// Send origin response
		err = writeResponse(rw, res.Response)
		// Check error
		if err != nil {
			logger.WithError(err).Warnf("cannot stream response body for %s", res.Key)
		}

		// Stop here if no migration is needed
		if !res.ShouldNotify {
			return
		}

		bundle := res.Bundle
		key := res.Key

		svr.runner.Schedule(ctx, NotificationJobName, func(jobCtx context.Context) error {
			return svr.webhookManager.Notify(jobCtx, bundle.WebhookURL, bundle.WebhookAuthToken, key)
		})
	}
}

func writeResponse(rw http.ResponseWriter, resp *origin.Response) error {
	defer resp.Close()

	// Copy headers
	for k, values := range resp.Header {
		// Ignore hop by hop headers
		if funk.ContainsString(hopByHopHeaders, http.CanonicalHeaderKey(k)) {
			continue
		}

		for _, v := range values {
			rw.Header().Add(k, v)
		}
	}

	rw.WriteHeader(resp.StatusCode)

	// Check if body exists
	if resp.Body == nil {
		return nil
	}

	_, err := io.Copy(rw, resp.Body)
	// Check error
	if err != nil {
		return errors.WithStack(err)
	}

	// Push bytes to the client before any deferred work starts
	err = http.NewResponseController(rw).Flush()
	// Flush isn't supported by every writer
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.WithStack(err)
	}

	return nil
}

func generateCors(cfg *config.ServerConfig, logger log.CorsLogger) *cors.Cors {
	// Check if allow all is enabled
	if cfg.CORS.AllowAll {
		cc := cors.AllowAll()
		// Add logger
		cc.Log = logger
		// Return
		return cc
	}

	corsOpt := cors.Options{}
	// Check if allowed origins exist
	if cfg.CORS.AllowOrigins != nil {
		corsOpt.AllowedOrigins = cfg.CORS.AllowOrigins
	}
	// Check if allowed methods exist
	if cfg.CORS.AllowMethods != nil {
		corsOpt.AllowedMethods = cfg.CORS.AllowMethods
	}
	// Check if allowed headers exist
	if cfg.CORS.AllowHeaders != nil {
		corsOpt.AllowedHeaders = cfg.CORS.AllowHeaders
	}
	// Check if exposed headers exist
	if cfg.CORS.ExposeHeaders != nil {
		corsOpt.ExposedHeaders = cfg.CORS.ExposeHeaders
	}
	// Check if allow credentials exist
	if cfg.CORS.AllowCredentials != nil {
		corsOpt.AllowCredentials = *cfg.CORS.AllowCredentials
	}
	// 300 = Maximum value not ignored by any of major browsers
	if cfg.CORS.MaxAge != nil {
		corsOpt.MaxAge = *cfg.CORS.MaxAge
	}
	// Check if debug option exists
	if cfg.CORS.Debug != nil {
		corsOpt.Debug = *cfg.CORS.Debug
	}
	// Check if Options Passthrough exists
	if cfg.CORS.OptionsPassthrough != nil {
		corsOpt.OptionsPassthrough = *cfg.CORS.OptionsPassthrough
	}

	cc := cors.New(corsOpt)
	// Add logger
	cc.Log = logger

	return cc
}
