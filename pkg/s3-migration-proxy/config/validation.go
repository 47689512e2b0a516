package config

import (
	"net/url"
	"time"

	"emperror.dev/errors"
)

func validateBusinessConfig(out *Config) error {
	// Validate origins
	for _, origin := range []*OriginConfig{out.Origins.Legacy, out.Origins.Current} {
		err := validateOrigin(origin)
		if err != nil {
			return err
		}
	}

	// Both origins must be distinct for metrics and logs
	if out.Origins.Legacy.Name == out.Origins.Current.Name {
		return errors.Errorf("legacy and current origins must have different names, got %s for both", out.Origins.Legacy.Name)
	}

	// Validate server timeouts
	for _, srvCfg := range []*ServerConfig{out.Server, out.InternalServer} {
		if srvCfg == nil || srvCfg.Timeouts == nil {
			continue
		}

		err := validateServerTimeouts(srvCfg.Timeouts)
		if err != nil {
			return err
		}
	}

	// Validate store values that are already known to be urls
	store := out.GetStore()

	for _, key := range []string{out.Migration.Webhook.URLKey, out.Origins.Legacy.BaseURLKey, out.Origins.Current.BaseURLKey} {
		v, ok := store.Get(key)
		// Absent values are allowed here, they are checked on each request
		if !ok || key == "" {
			continue
		}

		_, err := url.ParseRequestURI(v)
		if err != nil {
			return errors.Wrapf(err, "store value %s must be a valid url", key)
		}
	}

	return nil
}

func validateOrigin(origin *OriginConfig) error {
	switch origin.Kind {
	case S3OriginKind:
		// Check that bucket is declared
		if origin.S3 == nil {
			return errors.WithStack(errors.WithDetails(ErrS3OriginWithoutBucket, "origin", origin.Name))
		}
	case HTTPOriginKind:
		// Check that base url key is declared
		if origin.BaseURLKey == "" {
			return errors.Errorf("http origin %s must declare a base url key", origin.Name)
		}
	}

	return nil
}

func validateServerTimeouts(timeouts *ServerTimeoutsConfig) error {
	for _, v := range []string{timeouts.ReadTimeout, timeouts.ReadHeaderTimeout, timeouts.WriteTimeout, timeouts.IdleTimeout} {
		// Ignore empty values
		if v == "" {
			continue
		}

		_, err := time.ParseDuration(v)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
