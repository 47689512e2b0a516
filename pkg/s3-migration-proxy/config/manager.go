package config

import "github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"

//go:generate mockgen -destination=./mocks/mock_Manager.go -package=mocks github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config Manager
type Manager interface {
	// Load configuration from folder
	Load(configFolder string) error
	// Get configuration object
	GetConfig() *Config
	// Add on change hook
	AddOnChangeHook(hook func())
}

// NewManager New configuration manager.
func NewManager(logger log.Logger) Manager {
	return &managercontext{logger: logger}
}
