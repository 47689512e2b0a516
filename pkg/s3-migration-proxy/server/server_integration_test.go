//go:build integration

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	cmocks "github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config/mocks"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/deferred"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/webhook"
	"github.com/stretchr/testify/assert"
)

var metricsCtx = metrics.NewClient()

var testsDefaultTemplateConfig = &config.TemplateConfig{
	InternalServerError: "../../../templates/internal-server-error.tpl",
	BadGatewayError:     "../../../templates/bad-gateway-error.tpl",
}

type recordedCall struct {
	Method string
	URI    string
	Header http.Header
	Body   string
}

type fakeUpstream struct {
	server  *httptest.Server
	calls   []*recordedCall
	mutex   sync.Mutex
	status  int
	body    string
	headers map[string]string
}

func newFakeUpstream(status int, body string, headers map[string]string) *fakeUpstream {
	f := &fakeUpstream{status: status, body: body, headers: headers}
	f.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)

		f.mutex.Lock()
		f.calls = append(f.calls, &recordedCall{
			Method: req.Method,
			URI:    req.URL.RequestURI(),
			Header: req.Header.Clone(),
			Body:   string(b),
		})
		f.mutex.Unlock()

		for k, v := range f.headers {
			rw.Header().Set(k, v)
		}

		rw.WriteHeader(f.status)
		_, _ = rw.Write([]byte(f.body))
	}))

	return f
}

func (f *fakeUpstream) getCalls() []*recordedCall {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return append([]*recordedCall{}, f.calls...)
}

func newTestServerConfig(store map[string]string) *config.Config {
	st := map[string]*config.CredentialConfig{}
	for k, v := range store {
		st[k] = &config.CredentialConfig{Value: v}
	}

	excluded := []string{"**/favicon.ico"}
	excludedGlobs, _ := config.CompileExcludedPaths(excluded)

	return &config.Config{
		Tracing:   &config.TracingConfig{Enabled: false},
		Metrics:   &config.MetricsConfig{DisableRouterPath: true},
		Templates: testsDefaultTemplateConfig,
		Server: &config.ServerConfig{
			Port: 8080,
			Compress: &config.ServerCompressConfig{
				Enabled: &config.DefaultServerCompressEnabled,
				Level:   config.DefaultServerCompressLevel,
				Types:   config.DefaultServerCompressTypes,
			},
		},
		Origins: &config.OriginsConfig{
			Legacy: &config.OriginConfig{
				Name:       config.DefaultLegacyOriginName,
				Kind:       config.HTTPOriginKind,
				BaseURLKey: config.DefaultLegacyOriginBaseURLKey,
			},
			Current: &config.OriginConfig{
				Name:       config.DefaultCurrentOriginName,
				Kind:       config.HTTPOriginKind,
				BaseURLKey: config.DefaultCurrentOriginBaseURLKey,
			},
		},
		Migration: &config.MigrationConfig{
			BypassHeader:      config.DefaultBypassHeader,
			ExcludedPaths:     excluded,
			ExcludedPathGlobs: excludedGlobs,
			Webhook: &config.WebhookConfig{
				Name:         config.DefaultWebhookName,
				AuthHeader:   config.DefaultWebhookAuthHeader,
				URLKey:       config.DefaultWebhookURLKey,
				AuthTokenKey: config.DefaultWebhookAuthTokenKey,
			},
		},
		Store: st,
	}
}

func TestPublicRouter(t *testing.T) {
	tests := []struct {
		name                string
		inputMethod         string
		inputPath           string
		inputHeaders        map[string]string
		currentStatus       int
		currentBody         string
		legacyStatus        int
		legacyBody          string
		legacyHeaders       map[string]string
		currentDown         bool
		removeStoreKey      string
		expectedCode        int
		expectedBody        string
		expectedBodyContain string
		expectedHeaders     map[string]string
		expectedCurrentURIs []string
		expectedLegacyURIs  []string
		expectedWebhookBody string
	}{
		{
			name:                "object found on current origin",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			currentStatus:       http.StatusOK,
			currentBody:         "current",
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "current",
			expectedCurrentURIs: []string{"/photos/img1.jpg"},
		},
		{
			name:                "object missing on current origin is served from legacy and migrated",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			currentStatus:       http.StatusNotFound,
			currentBody:         "not found",
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			legacyHeaders:       map[string]string{"X-Cache": "HIT", "Content-Type": "image/jpeg"},
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedHeaders:     map[string]string{"X-Cache": "HIT", "Content-Type": "image/jpeg"},
			expectedCurrentURIs: []string{"/photos/img1.jpg"},
			expectedLegacyURIs:  []string{"/photos/img1.jpg"},
			expectedWebhookBody: `{"key":"photos/img1.jpg"}`,
		},
		{
			name:                "query string is forwarded",
			inputMethod:         http.MethodGet,
			inputPath:           "/a.txt?v=2",
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedCurrentURIs: []string{"/a.txt?v=2"},
			expectedLegacyURIs:  []string{"/a.txt?v=2"},
			expectedWebhookBody: `{"key":"a.txt"}`,
		},
		{
			name:                "encoded slash is kept in origin path and key",
			inputMethod:         http.MethodGet,
			inputPath:           "/a%2Fb.txt",
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedCurrentURIs: []string{"/a%2Fb.txt"},
			expectedLegacyURIs:  []string{"/a%2Fb.txt"},
			expectedWebhookBody: `{"key":"a%2Fb.txt"}`,
		},
		{
			name:                "encoded space is kept in origin path and key",
			inputMethod:         http.MethodGet,
			inputPath:           "/my%20file.txt",
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedCurrentURIs: []string{"/my%20file.txt"},
			expectedLegacyURIs:  []string{"/my%20file.txt"},
			expectedWebhookBody: `{"key":"my%20file.txt"}`,
		},
		{
			name:                "bypass header only reads legacy origin",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			inputHeaders:        map[string]string{"X-No-Copy": "1"},
			currentStatus:       http.StatusOK,
			currentBody:         "current",
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedLegacyURIs:  []string{"/photos/img1.jpg"},
		},
		{
			name:                "bypass header with another value is ignored",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			inputHeaders:        map[string]string{"X-No-Copy": "true"},
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "legacy",
			expectedCurrentURIs: []string{"/photos/img1.jpg"},
			expectedLegacyURIs:  []string{"/photos/img1.jpg"},
			expectedWebhookBody: `{"key":"photos/img1.jpg"}`,
		},
		{
			name:                "head request falls back without body",
			inputMethod:         http.MethodHead,
			inputPath:           "/photos/img1.jpg",
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusOK,
			legacyBody:          "legacy",
			expectedCode:        http.StatusOK,
			expectedBody:        "",
			expectedCurrentURIs: []string{"/photos/img1.jpg"},
			expectedLegacyURIs:  []string{"/photos/img1.jpg"},
			expectedWebhookBody: `{"key":"photos/img1.jpg"}`,
		},
		{
			name:                "object missing everywhere",
			inputMethod:         http.MethodGet,
			inputPath:           "/missing.txt",
			currentStatus:       http.StatusNotFound,
			legacyStatus:        http.StatusNotFound,
			legacyBody:          "legacy not found",
			expectedCode:        http.StatusNotFound,
			expectedBody:        "legacy not found",
			expectedCurrentURIs: []string{"/missing.txt"},
			expectedLegacyURIs:  []string{"/missing.txt"},
		},
		{
			name:                "current origin error status is passed through",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			currentStatus:       http.StatusForbidden,
			currentBody:         "denied",
			legacyStatus:        http.StatusOK,
			expectedCode:        http.StatusForbidden,
			expectedBody:        "denied",
			expectedCurrentURIs: []string{"/photos/img1.jpg"},
		},
		{
			name:          "post method is rejected",
			inputMethod:   http.MethodPost,
			inputPath:     "/photos/img1.jpg",
			currentStatus: http.StatusOK,
			legacyStatus:  http.StatusOK,
			expectedCode:  http.StatusMethodNotAllowed,
			expectedBody:  "This method is not allowed",
		},
		{
			name:          "unknown method is rejected",
			inputMethod:   "PROPFIND",
			inputPath:     "/photos/img1.jpg",
			currentStatus: http.StatusOK,
			legacyStatus:  http.StatusOK,
			expectedCode:  http.StatusMethodNotAllowed,
			expectedBody:  "This method is not allowed",
		},
		{
			name:           "favicon is excluded before configuration resolution",
			inputMethod:    http.MethodGet,
			inputPath:      "/assets/favicon.ico",
			currentStatus:  http.StatusOK,
			legacyStatus:   http.StatusOK,
			removeStoreKey: "rising_cloud_key",
			expectedCode:   http.StatusNotFound,
			expectedBody:   "",
		},
		{
			name:                "missing configuration key",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			currentStatus:       http.StatusOK,
			legacyStatus:        http.StatusOK,
			removeStoreKey:      "rising_cloud_key",
			expectedCode:        http.StatusInternalServerError,
			expectedBodyContain: "Internal Server Error",
		},
		{
			name:                "current origin unreachable",
			inputMethod:         http.MethodGet,
			inputPath:           "/photos/img1.jpg",
			currentDown:         true,
			legacyStatus:        http.StatusOK,
			expectedCode:        http.StatusBadGateway,
			expectedBodyContain: "Bad Gateway",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := newFakeUpstream(tt.currentStatus, tt.currentBody, nil)
			defer current.server.Close()

			legacy := newFakeUpstream(tt.legacyStatus, tt.legacyBody, tt.legacyHeaders)
			defer legacy.server.Close()

			hook := newFakeUpstream(http.StatusOK, "queued", nil)
			defer hook.server.Close()

			currentURL := current.server.URL
			// Unreachable origin
			if tt.currentDown {
				current.server.Close()
			}

			store := map[string]string{
				"webhook_url":      hook.server.URL + "/migrate",
				"rising_cloud_key": "secret-token",
				"old_origin":       legacy.server.URL,
				"new_origin":       currentURL,
			}
			delete(store, tt.removeStoreKey)

			// Create go mock controller
			ctrl := gomock.NewController(t)
			cfgManagerMock := cmocks.NewMockManager(ctrl)

			// Load configuration in manager
			cfgManagerMock.EXPECT().GetConfig().AnyTimes().Return(newTestServerConfig(store))

			logger := log.NewLogger()
			// Create tracing service
			tsvc, err := tracing.New(cfgManagerMock, logger)
			assert.NoError(t, err)

			// Create origin manager
			originManager := origin.NewManager(cfgManagerMock, metricsCtx, logger)
			err = originManager.Load()
			assert.NoError(t, err)

			// Create webhook manager
			webhookManager := webhook.NewManager(cfgManagerMock, metricsCtx)
			err = webhookManager.Load()
			assert.NoError(t, err)

			runner := deferred.NewRunner(metricsCtx)

			svr := NewServer(logger, cfgManagerMock, metricsCtx, tsvc, originManager, webhookManager, runner)
			got := svr.generateRouter()

			w := httptest.NewRecorder()
			req, err := http.NewRequest(
				tt.inputMethod,
				"http://localhost"+tt.inputPath,
				nil,
			)
			if err != nil {
				t.Error(err)
				return
			}

			// Add headers
			for key, value := range tt.inputHeaders {
				req.Header.Set(key, value)
			}

			got.ServeHTTP(w, req)

			// Wait for deferred jobs
			ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
			defer cancel()
			assert.NoError(t, runner.Wait(ctx))

			assert.Equal(t, tt.expectedCode, w.Code)

			if tt.expectedBodyContain != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBodyContain)
			} else {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			}

			for key, val := range tt.expectedHeaders {
				assert.Equal(t, val, w.Header().Get(key), key)
			}

			// Check origin calls
			if !tt.currentDown {
				currentCalls := current.getCalls()
				assert.Len(t, currentCalls, len(tt.expectedCurrentURIs))

				for i, c := range currentCalls {
					assert.Equal(t, tt.expectedCurrentURIs[i], c.URI)
					assert.Equal(t, tt.inputMethod, c.Method)
				}
			}

			legacyCalls := legacy.getCalls()
			assert.Len(t, legacyCalls, len(tt.expectedLegacyURIs))

			for i, c := range legacyCalls {
				assert.Equal(t, tt.expectedLegacyURIs[i], c.URI)
				assert.Equal(t, tt.inputMethod, c.Method)
			}

			// Check webhook
			hookCalls := hook.getCalls()
			if tt.expectedWebhookBody == "" {
				assert.Len(t, hookCalls, 0)

				return
			}

			if assert.Len(t, hookCalls, 1) {
				assert.Equal(t, http.MethodPost, hookCalls[0].Method)
				assert.Equal(t, "/migrate", hookCalls[0].URI)
				assert.Equal(t, tt.expectedWebhookBody, hookCalls[0].Body)
				assert.Equal(t, "application/json", hookCalls[0].Header.Get("Content-Type"))
				assert.Equal(t, "secret-token", hookCalls[0].Header.Get("X-RisingCloud-Auth"))
			}
		})
	}
}

func TestPublicRouter_SlowWebhookDoesNotDelayResponse(t *testing.T) {
	current := newFakeUpstream(http.StatusNotFound, "", nil)
	defer current.server.Close()

	legacy := newFakeUpstream(http.StatusOK, "legacy body", nil)
	defer legacy.server.Close()

	received := make(chan string, 1)
	release := make(chan struct{})

	hook := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		received <- string(b)
		// Hold the notification until the client got its answer
		<-release
		rw.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	// Create go mock controller
	ctrl := gomock.NewController(t)
	cfgManagerMock := cmocks.NewMockManager(ctrl)

	// Load configuration in manager
	cfgManagerMock.EXPECT().GetConfig().AnyTimes().Return(newTestServerConfig(map[string]string{
		"webhook_url":      hook.URL + "/migrate",
		"rising_cloud_key": "secret-token",
		"old_origin":       legacy.server.URL,
		"new_origin":       current.server.URL,
	}))

	logger := log.NewLogger()
	// Create tracing service
	tsvc, err := tracing.New(cfgManagerMock, logger)
	assert.NoError(t, err)

	originManager := origin.NewManager(cfgManagerMock, metricsCtx, logger)
	assert.NoError(t, originManager.Load())

	webhookManager := webhook.NewManager(cfgManagerMock, metricsCtx)
	assert.NoError(t, webhookManager.Load())

	runner := deferred.NewRunner(metricsCtx)

	svr := NewServer(logger, cfgManagerMock, metricsCtx, tsvc, originManager, webhookManager, runner)
	got := svr.generateRouter()

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "http://localhost/photos/img1.jpg", nil)
	if !assert.NoError(t, err) {
		close(release)

		return
	}

	served := make(chan struct{})

	go func() {
		defer close(served)

		got.ServeHTTP(w, req)
	}()

	// Handler returns while the webhook is still blocked
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("response waited for the migration webhook")
	}

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "legacy body", w.Body.String())

	// Notification was sent in background
	select {
	case body := <-received:
		assert.Equal(t, `{"key":"photos/img1.jpg"}`, body)
	case <-time.After(5 * time.Second):
		t.Error("migration webhook never called")
	}

	// Job is still pending
	shortCtx, shortCancel := context.WithTimeout(context.TODO(), 50*time.Millisecond)
	defer shortCancel()
	assert.Error(t, runner.Wait(shortCtx))

	close(release)

	ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
	defer cancel()
	assert.NoError(t, runner.Wait(ctx))
}

func TestServer_Listen(t *testing.T) {
	// Create go mock controller
	ctrl := gomock.NewController(t)
	cfgManagerMock := cmocks.NewMockManager(ctrl)

	cfg := newTestServerConfig(map[string]string{})
	cfg.Server.ListenAddr = "127.0.0.1"
	cfg.Server.Port = 18080
	cfg.Server.Timeouts = &config.ServerTimeoutsConfig{ReadHeaderTimeout: "60s"}

	// Load configuration in manager
	cfgManagerMock.EXPECT().GetConfig().AnyTimes().Return(cfg)
	cfgManagerMock.EXPECT().AddOnChangeHook(gomock.Any()).Times(1)

	logger := log.NewLogger()
	// Create tracing service
	tsvc, err := tracing.New(cfgManagerMock, logger)
	assert.NoError(t, err)

	svr := NewServer(
		logger,
		cfgManagerMock,
		metricsCtx,
		tsvc,
		origin.NewManager(cfgManagerMock, metricsCtx, logger),
		webhook.NewManager(cfgManagerMock, metricsCtx),
		deferred.NewRunner(metricsCtx),
	)
	err = svr.GenerateServer()
	assert.NoError(t, err)
	assert.Equal(t, 60*time.Second, svr.server.ReadHeaderTimeout)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		assert.NoError(t, svr.Listen())
	}()

	// Wait server up
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
	defer cancel()
	assert.NoError(t, svr.Shutdown(ctx))

	wg.Wait()
}
