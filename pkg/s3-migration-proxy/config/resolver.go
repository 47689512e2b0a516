package config

import (
	"strings"

	"emperror.dev/errors"
)

// ErrMissingConfiguration is returned when a key needed to serve a request is absent from the store.
var ErrMissingConfiguration = errors.New("missing configuration")

// Store is a read-only key/value source for runtime configuration.
type Store interface {
	// Get returns the value for a key and whether it was present.
	Get(key string) (string, bool)
}

// Bundle contains every value a request needs from the store.
type Bundle struct {
	WebhookURL       string
	WebhookAuthToken string
	LegacyBaseURL    string
	CurrentBaseURL   string
}

type mapStore map[string]string

func (m mapStore) Get(key string) (string, bool) {
	v, ok := m[strings.ToLower(key)]

	return v, ok
}

// NewStore creates a store from a plain map. Keys are case insensitive.
func NewStore(values map[string]string) Store {
	res := mapStore{}
	for k, v := range values {
		res[strings.ToLower(k)] = v
	}

	return res
}

// GetStore returns a store built from the loaded store credentials.
func (cfg *Config) GetStore() Store {
	res := mapStore{}

	for k, v := range cfg.Store {
		// Ignore empty declarations
		if v == nil {
			continue
		}

		res[strings.ToLower(k)] = v.Value
	}

	return res
}

// Resolve looks up a single key. Absent and empty values are both reported as missing.
func Resolve(store Store, key string) (string, error) {
	v, ok := store.Get(key)
	// Empty values are as useless as absent ones
	if !ok || v == "" {
		return "", errors.WithDetails(errors.Wrapf(ErrMissingConfiguration, "key %q not found in store", key), "key", key)
	}

	return v, nil
}

// ResolveBundle reads all keys needed for a request. It fails on the first missing key.
func ResolveBundle(cfg *Config) (*Bundle, error) {
	store := cfg.GetStore()
	res := &Bundle{}

	var err error

	res.WebhookURL, err = Resolve(store, cfg.Migration.Webhook.URLKey)
	// Check error
	if err != nil {
		return nil, err
	}

	res.WebhookAuthToken, err = Resolve(store, cfg.Migration.Webhook.AuthTokenKey)
	// Check error
	if err != nil {
		return nil, err
	}

	// Base urls are only needed by HTTP origins
	if cfg.Origins.Legacy.Kind == HTTPOriginKind {
		res.LegacyBaseURL, err = Resolve(store, cfg.Origins.Legacy.BaseURLKey)
		// Check error
		if err != nil {
			return nil, err
		}
	}

	if cfg.Origins.Current.Kind == HTTPOriginKind {
		res.CurrentBaseURL, err = Resolve(store, cfg.Origins.Current.BaseURLKey)
		// Check error
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}
