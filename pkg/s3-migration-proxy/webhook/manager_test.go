//go:build unit

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/golang/mock/gomock"
	"github.com/opentracing/opentracing-go"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	cmocks "github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config/mocks"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	mmocks "github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics/mocks"
	"github.com/stretchr/testify/assert"
)

type receivedRequest struct {
	Method string
	Header http.Header
	Body   string
}

func newWebhookConfig() *config.Config {
	return &config.Config{
		Migration: &config.MigrationConfig{
			Webhook: &config.WebhookConfig{
				Name:            "webhook_backend",
				AuthHeader:      "X-RisingCloud-Auth",
				URLKey:          "webhook_url",
				AuthTokenKey:    "rising_cloud_key",
				Headers:         map[string]string{"x-source": "proxy"},
				TimeoutDuration: 5 * time.Second,
			},
		},
	}
}

func Test_manager_Notify(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		responseBody string
		wantErr      bool
	}{
		{
			name:         "accepted",
			status:       http.StatusAccepted,
			responseBody: "queued",
		},
		{
			name:         "ok",
			status:       http.StatusOK,
			responseBody: "",
		},
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			responseBody: "bad token",
			wantErr:      true,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu       sync.Mutex
				received []*receivedRequest
			)

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)

				mu.Lock()
				received = append(received, &receivedRequest{Method: r.Method, Header: r.Header.Clone(), Body: string(b)})
				mu.Unlock()

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer ts.Close()

			ctrl := gomock.NewController(t)
			cfgManagerMock := cmocks.NewMockManager(ctrl)
			metricsMock := mmocks.NewMockClient(ctrl)

			cfgManagerMock.EXPECT().GetConfig().Times(1).Return(newWebhookConfig())

			if tt.wantErr {
				metricsMock.EXPECT().IncFailedWebhooks("webhook_backend").Times(1)
			} else {
				metricsMock.EXPECT().IncSucceedWebhooks("webhook_backend").Times(1)
			}

			m := NewManager(cfgManagerMock, metricsMock)
			assert.NoError(t, m.Load())

			ctx := log.SetLoggerInContext(context.TODO(), log.NewLogger())
			ctx = opentracing.ContextWithSpan(ctx, opentracing.StartSpan("fake"))

			err := m.Notify(ctx, ts.URL+"/migrate", "secret-token", "photos/img1.jpg")
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrNotificationFailed))
			} else {
				assert.NoError(t, err)
			}

			// Exactly one request whatever the outcome
			mu.Lock()
			defer mu.Unlock()

			if !assert.Len(t, received, 1) {
				return
			}

			assert.Equal(t, http.MethodPost, received[0].Method)
			assert.Equal(t, "application/json", received[0].Header.Get("Content-Type"))
			assert.Equal(t, "secret-token", received[0].Header.Get("X-RisingCloud-Auth"))
			assert.Equal(t, "proxy", received[0].Header.Get("X-Source"))
			assert.Equal(t, `{"key":"photos/img1.jpg"}`, received[0].Body)
		})
	}
}

func Test_manager_Notify_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	webhookURL := ts.URL
	ts.Close()

	ctrl := gomock.NewController(t)
	cfgManagerMock := cmocks.NewMockManager(ctrl)
	metricsMock := mmocks.NewMockClient(ctrl)

	cfgManagerMock.EXPECT().GetConfig().Times(1).Return(newWebhookConfig())
	metricsMock.EXPECT().IncFailedWebhooks("webhook_backend").Times(1)

	m := NewManager(cfgManagerMock, metricsMock)
	assert.NoError(t, m.Load())

	ctx := log.SetLoggerInContext(context.TODO(), log.NewLogger())

	err := m.Notify(ctx, webhookURL, "secret-token", "x")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotificationFailed))
}

func Test_manager_Notify_NotLoaded(t *testing.T) {
	m := NewManager(nil, nil)

	ctx := log.SetLoggerInContext(context.TODO(), log.NewLogger())

	err := m.Notify(ctx, "http://localhost", "secret-token", "x")
	assert.True(t, errors.Is(err, ErrNotificationFailed))
}
