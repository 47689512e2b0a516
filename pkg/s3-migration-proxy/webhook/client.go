package webhook

import (
	"context"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
)

// ErrNotificationFailed is matched by errors returned when the migration worker could not be notified.
var ErrNotificationFailed = errors.New("notification failed")

// NotificationBody Body posted to the migration webhook.
type NotificationBody struct {
	Key string `json:"key"`
}

// Manager client manager.
//
//go:generate mockgen -destination=./mocks/mock_Manager.go -package=mocks github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/webhook Manager
type Manager interface {
	// Load will (re)create the webhook client from configuration.
	Load() error
	// Notify posts an object key to the migration webhook.
	Notify(ctx context.Context, webhookURL, authToken, key string) error
}

// NewManager New webhook manager.
func NewManager(cfgManager config.Manager, metricsSvc metrics.Client) Manager {
	return &manager{
		cfgManager: cfgManager,
		metricsSvc: metricsSvc,
	}
}
