package webhook

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"emperror.dev/errors"
	"github.com/go-resty/resty/v2"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
)

// HookNumberOfRedirect will contains the number of redirect that a hook can follow.
const HookNumberOfRedirect = 20

type manager struct {
	cfgManager config.Manager
	metricsSvc metrics.Client
	storage    *hookStorage
	mutex      sync.RWMutex
}

type hookStorage struct {
	Client *resty.Client
	Config *config.WebhookConfig
}

func (m *manager) Load() error {
	// Get configuration
	cfg := m.cfgManager.GetConfig()

	// Create client
	cli := resty.New()
	// Set redirect policy
	cli = cli.SetRedirectPolicy(resty.FlexibleRedirectPolicy(HookNumberOfRedirect))
	// Manage timeout
	if cfg.Migration.Webhook.TimeoutDuration != 0 {
		cli = cli.SetTimeout(cfg.Migration.Webhook.TimeoutDuration)
	}

	m.mutex.Lock()
	m.storage = &hookStorage{
		Client: cli,
		Config: cfg.Migration.Webhook,
	}
	m.mutex.Unlock()

	// Default return
	return nil
}

func (m *manager) getStorage() *hookStorage {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.storage
}

func (m *manager) Notify(ctx context.Context, webhookURL, authToken, key string) error {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)

	st := m.getStorage()
	// Check if manager is loaded
	if st == nil {
		return errors.WithStack(errors.Wrap(ErrNotificationFailed, "webhook manager not loaded"))
	}

	// Create specific logger
	spLogger := logger.WithFields(map[string]interface{}{
		"webhook_backend": st.Config.Name,
		"webhook_key":     key,
	})

	// Create child trace
	childTrace := tracing.StartChildTrace(ctx, "webhook")
	childTrace.SetTag("webhook-url", webhookURL)
	childTrace.SetTag("webhook-key", key)

	defer childTrace.Finish()

	// Save client
	cl := st.Client.R().SetContext(ctx)
	// Add all fixed headers
	for k, val := range st.Config.Headers {
		// Add header
		cl = cl.SetHeader(k, val)
	}
	// Add content-type
	cl = cl.SetHeader("Content-Type", "application/json")
	// Add authentication
	cl = cl.SetHeader(st.Config.AuthHeader, authToken)
	// Add body
	cl = cl.SetBody(&NotificationBody{Key: key})
	// Add trace to http header for forwarding
	err := childTrace.InjectInHTTPHeader(cl.Header)
	// Check error
	if err != nil {
		return err
	}

	// Log
	spLogger.Infof("Posting %s to %s", key, webhookURL)
	// Execute request
	res, err := cl.Post(webhookURL)
	// Check error
	if err != nil {
		// Increase failed webhooks
		m.metricsSvc.IncFailedWebhooks(st.Config.Name)

		return errors.WithStack(errors.Wrap(ErrNotificationFailed, err.Error()))
	}
	// Add status code to logger
	spLogger = spLogger.WithField("webhook_status_code", strconv.Itoa(res.StatusCode()))
	childTrace.SetTag("webhook-status-code", res.StatusCode())
	// Check status code
	if res.StatusCode() >= http.StatusMultipleChoices {
		// Increase failed webhooks
		m.metricsSvc.IncFailedWebhooks(st.Config.Name)

		return errors.WithStack(errors.Wrapf(ErrNotificationFailed, "%d - %s", res.StatusCode(), string(res.Body())))
	}

	spLogger.Infof("Status is %d", res.StatusCode())
	spLogger.Infof("Content %s", string(res.Body()))

	// Increase succeed webhooks
	m.metricsSvc.IncSucceedWebhooks(st.Config.Name)

	return nil
}
