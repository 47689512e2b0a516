package server

import (
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
)

func injectServerTimeout(svr *http.Server, cfg *config.ServerTimeoutsConfig) error {
	// Check if configuration is empty
	if cfg == nil {
		// Ignore
		return nil
	}

	timeouts := []struct {
		value  string
		target *time.Duration
		name   string
	}{
		{value: cfg.ReadTimeout, target: &svr.ReadTimeout, name: "readTimeout"},
		{value: cfg.ReadHeaderTimeout, target: &svr.ReadHeaderTimeout, name: "readHeaderTimeout"},
		{value: cfg.WriteTimeout, target: &svr.WriteTimeout, name: "writeTimeout"},
		{value: cfg.IdleTimeout, target: &svr.IdleTimeout, name: "idleTimeout"},
	}

	for _, t := range timeouts {
		// Ignore unset timeouts
		if t.value == "" {
			continue
		}

		// Parse timeout
		dur, err := time.ParseDuration(t.value)
		// Check error
		if err != nil {
			return errors.Wrapf(err, "cannot parse server %s", t.name)
		}

		// Inject
		*t.target = dur
	}

	// Default
	return nil
}
