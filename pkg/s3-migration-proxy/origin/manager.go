package origin

import (
	"sync"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
)

type manager struct {
	cfgManager config.Manager
	metricsCl  metrics.Client
	logger     log.Logger
	backends   map[Target]Backend
	mutex      sync.RWMutex
}

func (m *manager) Load() error {
	// Get configuration
	cfg := m.cfgManager.GetConfig()

	// Create all backends before swapping them
	res := map[Target]Backend{}

	for target, ocfg := range map[Target]*config.OriginConfig{
		Current: cfg.Origins.Current,
		Legacy:  cfg.Origins.Legacy,
	} {
		b, err := m.newBackend(target, ocfg)
		// Check error
		if err != nil {
			return err
		}

		res[target] = b
	}

	m.mutex.Lock()
	m.backends = res
	m.mutex.Unlock()

	return nil
}

func (m *manager) newBackend(target Target, ocfg *config.OriginConfig) (Backend, error) {
	switch ocfg.Kind {
	case config.S3OriginKind:
		return newS3Backend(target, ocfg, m.metricsCl)
	case config.HTTPOriginKind:
		return newHTTPBackend(target, ocfg, m.metricsCl, m.logger), nil
	default:
		return nil, errors.Errorf("origin kind %s not supported for %s", ocfg.Kind, ocfg.Name)
	}
}

func (m *manager) GetBackend(target Target) Backend {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.backends[target]
}
