package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/utils/generalutils"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
)

var validate = validator.New()

type managercontext struct {
	cfg                       *Config
	configs                   []*viper.Viper
	onChangeHooks             []func()
	logger                    log.Logger
	internalFileWatchChannels []chan bool
	mutex                     sync.RWMutex
}

func (ctx *managercontext) AddOnChangeHook(hook func()) {
	ctx.onChangeHooks = append(ctx.onChangeHooks, hook)
}

func (ctx *managercontext) Load(configFolder string) error {
	// List files
	files, err := os.ReadDir(configFolder)
	if err != nil {
		return errors.WithStack(err)
	}

	// Generate viper instances for static configs
	ctx.configs = generateViperInstances(configFolder, files)

	// Load configuration
	err = ctx.loadConfiguration()
	if err != nil {
		return err
	}

	// Loop over config files
	funk.ForEach(ctx.configs, func(vip *viper.Viper) {
		// Add hooks for on change events
		vip.OnConfigChange(func(in fsnotify.Event) {
			ctx.logger.Infof("Reload configuration detected for file %s", vip.ConfigFileUsed())

			// Reload config
			err2 := ctx.loadConfiguration()
			if err2 != nil {
				ctx.logger.Error(err2)
				// Stop here and do not call hooks => configuration is unstable
				return
			}
			// Call all hooks
			funk.ForEach(ctx.onChangeHooks, func(hook func()) { hook() })
		})
		// Watch for configuration changes
		vip.WatchConfig()
	})

	return nil
}

// Imported and modified from viper v1.7.0.
func (ctx *managercontext) watchInternalFile(filePath string, forceStop chan bool, onChange func()) {
	initWG := sync.WaitGroup{}
	initWG.Add(1)

	go func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			ctx.logger.Fatal(errors.WithStack(err))
		}
		defer watcher.Close()

		configFile := filepath.Clean(filePath)
		configDir, _ := filepath.Split(configFile)
		realConfigFile, _ := filepath.EvalSymlinks(filePath)

		eventsWG := sync.WaitGroup{}
		eventsWG.Add(1)

		go func() {
			for {
				select {
				case <-forceStop:
					eventsWG.Done()

					return
				case event, ok := <-watcher.Events:
					if !ok {
						eventsWG.Done()

						return
					}

					currentConfigFile, _ := filepath.EvalSymlinks(filePath)
					// Only file writes, creations and symlink target changes (k8s secret rotation) matter
					const writeOrCreateMask = fsnotify.Write | fsnotify.Create
					if (filepath.Clean(event.Name) == configFile &&
						event.Op&writeOrCreateMask != 0) ||
						(currentConfigFile != "" && currentConfigFile != realConfigFile) {
						realConfigFile = currentConfigFile

						// Call on change
						onChange()
					} else if filepath.Clean(event.Name) == configFile && event.Op&fsnotify.Remove != 0 {
						eventsWG.Done()

						return
					}

				case err, ok := <-watcher.Errors:
					if ok {
						ctx.logger.Errorf("watcher error: %v\n", err)
					}

					eventsWG.Done()

					return
				}
			}
		}()

		_ = watcher.Add(configDir)

		initWG.Done()
		eventsWG.Wait()
	}()
	initWG.Wait()
}

func (ctx *managercontext) loadDefaultConfigurationValues(vip *viper.Viper) {
	// Load default configuration
	vip.SetDefault("log.level", DefaultLogLevel)
	vip.SetDefault("log.format", DefaultLogFormat)
	vip.SetDefault("server.port", DefaultPort)
	vip.SetDefault("server.compress.enabled", &DefaultServerCompressEnabled)
	vip.SetDefault("server.compress.level", DefaultServerCompressLevel)
	vip.SetDefault("server.compress.types", DefaultServerCompressTypes)
	vip.SetDefault("server.timeouts.readHeaderTimeout", DefaultServerTimeoutsReadHeaderTimeout)
	vip.SetDefault("internalServer.port", DefaultInternalPort)
	vip.SetDefault("internalServer.compress.enabled", &DefaultServerCompressEnabled)
	vip.SetDefault("internalServer.compress.level", DefaultServerCompressLevel)
	vip.SetDefault("internalServer.compress.types", DefaultServerCompressTypes)
	vip.SetDefault("internalServer.timeouts.readHeaderTimeout", DefaultServerTimeoutsReadHeaderTimeout)
	vip.SetDefault("metrics.disableRouterPath", DefaultMetricsDisableRouterPath)
	vip.SetDefault("templates.internalServerError", DefaultTemplateInternalServerErrorPath)
	vip.SetDefault("templates.badGatewayError", DefaultTemplateBadGatewayErrorPath)
	vip.SetDefault("origins.legacy.name", DefaultLegacyOriginName)
	vip.SetDefault("origins.legacy.kind", HTTPOriginKind)
	vip.SetDefault("origins.legacy.baseUrlKey", DefaultLegacyOriginBaseURLKey)
	vip.SetDefault("origins.current.name", DefaultCurrentOriginName)
	vip.SetDefault("origins.current.kind", HTTPOriginKind)
	vip.SetDefault("origins.current.baseUrlKey", DefaultCurrentOriginBaseURLKey)
	vip.SetDefault("migration.bypassHeader", DefaultBypassHeader)
	vip.SetDefault("migration.excludedPaths", DefaultExcludedPaths)
	vip.SetDefault("migration.fallbackOnError", false)
	vip.SetDefault("migration.webhook.name", DefaultWebhookName)
	vip.SetDefault("migration.webhook.authHeader", DefaultWebhookAuthHeader)
	vip.SetDefault("migration.webhook.urlKey", DefaultWebhookURLKey)
	vip.SetDefault("migration.webhook.authTokenKey", DefaultWebhookAuthTokenKey)
}

func generateViperInstances(configFolder string, files []os.DirEntry) []*viper.Viper {
	list := make([]*viper.Viper, 0)
	// Loop over static files to create viper instance for them
	funk.ForEach(files, func(file os.DirEntry) {
		filename := file.Name()
		// Create config file name
		cfgFileName := strings.TrimSuffix(filename, path.Ext(filename))
		// Test if config file name is compliant (ignore hidden files like .keep or directory)
		if !strings.HasPrefix(filename, ".") && cfgFileName != "" && !file.IsDir() {
			// Create new viper instance
			vip := viper.New()
			// Set config name
			vip.SetConfigName(cfgFileName)
			// Add configuration path
			vip.AddConfigPath(configFolder)
			// Append it
			list = append(list, vip)
		}
	})

	return list
}

func (ctx *managercontext) loadConfiguration() error {
	// Load must start by flushing all existing watcher on internal files
	for _, ch := range ctx.internalFileWatchChannels {
		// Closing never blocks, even on a watcher that already stopped
		close(ch)
	}

	// Create a viper instance for default value and merging
	globalViper := viper.New()

	// Put default values
	ctx.loadDefaultConfigurationValues(globalViper)

	// Loop over configs
	for _, vip := range ctx.configs {
		err := vip.ReadInConfig()
		if err != nil {
			return errors.WithStack(err)
		}

		err = globalViper.MergeConfigMap(vip.AllSettings())
		if err != nil {
			return errors.WithStack(err)
		}
	}

	// Prepare configuration object
	var out Config
	// Quick unmarshal.
	err := globalViper.Unmarshal(&out)
	if err != nil {
		return errors.WithStack(err)
	}

	// Load default values
	err = loadBusinessDefaultValues(&out)
	if err != nil {
		return err
	}

	// Configuration validation
	err = validate.Struct(out)
	if err != nil {
		return errors.WithStack(err)
	}

	// Load all credentials
	credentials, err := loadAllCredentials(&out)
	if err != nil {
		return err
	}
	// Initialize or flush watch internal file channels
	ctx.internalFileWatchChannels = make([]chan bool, 0)
	// Loop over all credentials in order to watch file change
	watched := make([]string, 0)
	funk.ForEach(credentials, func(cred *CredentialConfig) {
		// Check if credential is about a path not already watched
		if cred.Path != "" && !funk.ContainsString(watched, cred.Path) {
			credPath := cred.Path
			watched = append(watched, credPath)
			// Create channel
			ch := make(chan bool)
			// Run the watch file
			ctx.watchInternalFile(credPath, ch, func() {
				// File change detected
				ctx.logger.Infof("Reload credential file detected for path %s", credPath)

				err2 := ctx.reloadCredentialFile(credPath)
				if err2 != nil {
					ctx.logger.Error(err2)
					// Stop here and do not call hooks => configuration is unstable
					return
				}
				// Call all hooks
				funk.ForEach(ctx.onChangeHooks, func(hook func()) { hook() })
			})
			// Add channel to list of channels
			ctx.internalFileWatchChannels = append(ctx.internalFileWatchChannels, ch)
		}
	})

	err = validateBusinessConfig(&out)
	if err != nil {
		return err
	}

	ctx.mutex.Lock()
	ctx.cfg = &out
	ctx.mutex.Unlock()

	return nil
}

// GetConfig allow to get configuration object.
func (ctx *managercontext) GetConfig() *Config {
	ctx.mutex.RLock()
	defer ctx.mutex.RUnlock()

	return ctx.cfg
}

// reloadCredentialFile publishes a new configuration where credentials read from credPath are refreshed.
// Published configurations are never modified.
func (ctx *managercontext) reloadCredentialFile(credPath string) error {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()

	reload := func(cred *CredentialConfig) (*CredentialConfig, error) {
		// Keep nil declarations
		if cred == nil {
			return nil, nil //nolint:nilnil // Nothing to copy
		}

		res := *cred
		// Only refresh credentials backed by this file
		if res.Path == credPath {
			err := loadCredential(&res)
			if err != nil {
				return nil, err
			}
		}

		return &res, nil
	}

	newCfg := *ctx.cfg

	// Copy store
	newCfg.Store = make(map[string]*CredentialConfig, len(ctx.cfg.Store))
	for k, v := range ctx.cfg.Store {
		cred, err := reload(v)
		if err != nil {
			return err
		}

		newCfg.Store[k] = cred
	}

	// Copy origins
	if ctx.cfg.Origins != nil {
		origins := *ctx.cfg.Origins

		var err error

		origins.Legacy, err = copyOriginCredentials(origins.Legacy, reload)
		if err != nil {
			return err
		}

		origins.Current, err = copyOriginCredentials(origins.Current, reload)
		if err != nil {
			return err
		}

		newCfg.Origins = &origins
	}

	ctx.cfg = &newCfg

	return nil
}

func copyOriginCredentials(
	origin *OriginConfig,
	reload func(*CredentialConfig) (*CredentialConfig, error),
) (*OriginConfig, error) {
	// Nothing to copy without bucket credentials
	if origin == nil || origin.S3 == nil || origin.S3.Credentials == nil {
		return origin, nil
	}

	res := *origin
	bucket := *origin.S3
	creds := *origin.S3.Credentials

	var err error

	creds.AccessKey, err = reload(creds.AccessKey)
	if err != nil {
		return nil, err
	}

	creds.SecretKey, err = reload(creds.SecretKey)
	if err != nil {
		return nil, err
	}

	bucket.Credentials = &creds
	res.S3 = &bucket

	return &res, nil
}

func loadAllCredentials(out *Config) ([]*CredentialConfig, error) {
	// Initialize answer
	result := make([]*CredentialConfig, 0)

	// Load store values
	for _, item := range out.Store {
		// Ignore empty declarations
		if item == nil {
			continue
		}

		err := loadCredential(item)
		if err != nil {
			return nil, err
		}
		// Save credential
		result = append(result, item)
	}

	// Load origin bucket credentials
	for _, origin := range []*OriginConfig{out.Origins.Legacy, out.Origins.Current} {
		if origin.S3 == nil || origin.S3.Credentials == nil ||
			origin.S3.Credentials.AccessKey == nil || origin.S3.Credentials.SecretKey == nil {
			continue
		}

		// Manage access key
		err := loadCredential(origin.S3.Credentials.AccessKey)
		if err != nil {
			return nil, err
		}
		// Manage secret key
		err = loadCredential(origin.S3.Credentials.SecretKey)
		if err != nil {
			return nil, err
		}
		// Save credential
		result = append(result, origin.S3.Credentials.AccessKey, origin.S3.Credentials.SecretKey)
	}

	return result, nil
}

func loadCredential(credCfg *CredentialConfig) error {
	if credCfg.Path != "" {
		// Secret file
		databytes, err := os.ReadFile(credCfg.Path)
		if err != nil {
			return errors.WithStack(err)
		}
		// Store val
		val := string(databytes)
		// Clean new lines
		val = generalutils.NewLineMatcherRegex.ReplaceAllString(val, "")

		credCfg.Value = val
	} else if credCfg.Env != "" {
		// Environment variable
		envValue := os.Getenv(credCfg.Env)
		if envValue == "" {
			err := fmt.Errorf(TemplateErrLoadingEnvCredentialEmpty, credCfg.Env)

			return errors.WithStack(err)
		}
		// Store value
		credCfg.Value = envValue
	}
	// Default value
	return nil
}

func loadOriginValues(origin *OriginConfig) error {
	// Manage default region
	if origin.S3 != nil && origin.S3.Region == "" {
		origin.S3.Region = DefaultBucketRegion
	}

	// Parse timeout
	if origin.Timeout != "" {
		dur, err := time.ParseDuration(origin.Timeout)
		// Check error
		if err != nil {
			return errors.WithStack(err)
		}
		// Save
		origin.TimeoutDuration = dur
	}

	return nil
}

func loadBusinessDefaultValues(out *Config) error {
	// Manage origins
	if out.Origins != nil {
		for _, origin := range []*OriginConfig{out.Origins.Legacy, out.Origins.Current} {
			// Ignore missing origins, validation will catch them
			if origin == nil {
				continue
			}

			err := loadOriginValues(origin)
			if err != nil {
				return err
			}
		}
	}

	// Manage migration
	if out.Migration != nil {
		// Compile excluded paths
		globs, err := CompileExcludedPaths(out.Migration.ExcludedPaths)
		// Check error
		if err != nil {
			return err
		}

		out.Migration.ExcludedPathGlobs = globs

		// Parse webhook timeout
		if out.Migration.Webhook != nil && out.Migration.Webhook.Timeout != "" {
			dur, err := time.ParseDuration(out.Migration.Webhook.Timeout)
			// Check error
			if err != nil {
				return errors.WithStack(err)
			}
			// Save
			out.Migration.Webhook.TimeoutDuration = dur
		}
	}

	// Manage default value for tracing
	if out.Tracing == nil {
		out.Tracing = &TracingConfig{Enabled: false}
	}

	// Manage default value for metrics
	if out.Metrics == nil {
		out.Metrics = &MetricsConfig{DisableRouterPath: DefaultMetricsDisableRouterPath}
	}

	return nil
}
