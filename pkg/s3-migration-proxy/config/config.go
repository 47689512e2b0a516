package config

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/gobwas/glob"
)

// DefaultPort Default port.
const DefaultPort = 8080

// DefaultServerCompressEnabled Default server compress enabled.
var DefaultServerCompressEnabled = false

// DefaultServerCompressLevel Default server compress level.
const DefaultServerCompressLevel = 5

// DefaultServerCompressTypes Default server compress types.
var DefaultServerCompressTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
}

// DefaultInternalPort Default internal port.
const DefaultInternalPort = 9090

// DefaultLogLevel Default log level.
const DefaultLogLevel = "info"

// DefaultLogFormat Default Log format.
const DefaultLogFormat = "json"

// DefaultServerTimeoutsReadHeaderTimeout Server timeouts ReadHeaderTimeout.
const DefaultServerTimeoutsReadHeaderTimeout = "60s"

// DefaultMetricsDisableRouterPath Object paths are unbounded, so they are not used as metric labels by default.
var DefaultMetricsDisableRouterPath = true

// DefaultTemplateInternalServerErrorPath Default template Internal server error path.
const DefaultTemplateInternalServerErrorPath = "templates/internal-server-error.tpl"

// DefaultTemplateBadGatewayErrorPath Default template bad gateway path.
const DefaultTemplateBadGatewayErrorPath = "templates/bad-gateway-error.tpl"

// HTTPOriginKind Origin reached over plain HTTP with a base address.
const HTTPOriginKind = "HTTP"

// S3OriginKind Origin reached with the S3 API.
const S3OriginKind = "S3"

// DefaultLegacyOriginName Default backend name for the legacy origin.
const DefaultLegacyOriginName = "old_backend"

// DefaultCurrentOriginName Default backend name for the current origin.
const DefaultCurrentOriginName = "new_backend"

// DefaultLegacyOriginBaseURLKey Default store key for the legacy origin base url.
const DefaultLegacyOriginBaseURLKey = "old_origin"

// DefaultCurrentOriginBaseURLKey Default store key for the current origin base url.
const DefaultCurrentOriginBaseURLKey = "new_origin"

// DefaultBucketRegion Default bucket region.
const DefaultBucketRegion = "us-east-1"

// DefaultBypassHeader Header set by the migration worker when it reads from the legacy origin.
const DefaultBypassHeader = "X-No-Copy"

// DefaultExcludedPaths Default excluded paths.
var DefaultExcludedPaths = []string{"**/favicon.ico"}

// DefaultWebhookName Default webhook backend name.
const DefaultWebhookName = "webhook_backend"

// DefaultWebhookAuthHeader Default webhook authentication header.
const DefaultWebhookAuthHeader = "X-RisingCloud-Auth"

// DefaultWebhookURLKey Default store key for the webhook url.
const DefaultWebhookURLKey = "webhook_url"

// DefaultWebhookAuthTokenKey Default store key for the webhook authentication token.
const DefaultWebhookAuthTokenKey = "rising_cloud_key"

// TemplateErrLoadingEnvCredentialEmpty Template Error when Loading Environment variable Credentials.
var TemplateErrLoadingEnvCredentialEmpty = "error loading credentials, environment variable %s is empty" //nolint: gosec // No credentials here, false positive

// Config Application Configuration.
type Config struct {
	Log            *LogConfig                   `mapstructure:"log"`
	Tracing        *TracingConfig               `mapstructure:"tracing"`
	Metrics        *MetricsConfig               `mapstructure:"metrics"`
	Server         *ServerConfig                `mapstructure:"server"`
	InternalServer *ServerConfig                `mapstructure:"internalServer"`
	Templates      *TemplateConfig              `mapstructure:"templates"`
	Origins        *OriginsConfig               `mapstructure:"origins"        validate:"required"`
	Migration      *MigrationConfig             `mapstructure:"migration"      validate:"required"`
	Store          map[string]*CredentialConfig `mapstructure:"store"          validate:"omitempty,dive"`
}

// TracingConfig represents the Tracing configuration structure.
type TracingConfig struct {
	FixedTags     map[string]interface{} `mapstructure:"fixedTags"`
	FlushInterval string                 `mapstructure:"flushInterval"`
	UDPHost       string                 `mapstructure:"udpHost"`
	QueueSize     int                    `mapstructure:"queueSize"`
	Enabled       bool                   `mapstructure:"enabled"`
	LogSpan       bool                   `mapstructure:"logSpan"`
}

// MetricsConfig Metrics configuration.
type MetricsConfig struct {
	DisableRouterPath bool `mapstructure:"disableRouterPath"`
}

// TemplateConfig Templates configuration.
type TemplateConfig struct {
	InternalServerError string `mapstructure:"internalServerError" validate:"required"`
	BadGatewayError     string `mapstructure:"badGatewayError"     validate:"required"`
}

// ServerConfig Server configuration.
type ServerConfig struct {
	Timeouts   *ServerTimeoutsConfig `mapstructure:"timeouts"   validate:"required"`
	CORS       *ServerCorsConfig     `mapstructure:"cors"       validate:"omitempty"`
	Compress   *ServerCompressConfig `mapstructure:"compress"   validate:"omitempty"`
	ListenAddr string                `mapstructure:"listenAddr"`
	Port       int                   `mapstructure:"port"       validate:"required"`
}

// ServerTimeoutsConfig Server timeouts configuration.
type ServerTimeoutsConfig struct {
	ReadTimeout       string `mapstructure:"readTimeout"`
	ReadHeaderTimeout string `mapstructure:"readHeaderTimeout"`
	WriteTimeout      string `mapstructure:"writeTimeout"`
	IdleTimeout       string `mapstructure:"idleTimeout"`
}

// ServerCompressConfig Server compress configuration.
type ServerCompressConfig struct {
	Enabled *bool    `mapstructure:"enabled"`
	Types   []string `mapstructure:"types"   validate:"required,min=1"`
	Level   int      `mapstructure:"level"   validate:"required,min=1"`
}

// ServerCorsConfig Server CORS configuration.
type ServerCorsConfig struct {
	MaxAge             *int     `mapstructure:"maxAge"`
	AllowCredentials   *bool    `mapstructure:"allowCredentials"`
	Debug              *bool    `mapstructure:"debug"`
	OptionsPassthrough *bool    `mapstructure:"optionsPassthrough"`
	AllowOrigins       []string `mapstructure:"allowOrigins"`
	AllowMethods       []string `mapstructure:"allowMethods"`
	AllowHeaders       []string `mapstructure:"allowHeaders"`
	ExposeHeaders      []string `mapstructure:"exposeHeaders"`
	Enabled            bool     `mapstructure:"enabled"`
	AllowAll           bool     `mapstructure:"allowAll"`
}

// OriginsConfig Origins configuration.
type OriginsConfig struct {
	Legacy  *OriginConfig `mapstructure:"legacy"  validate:"required"`
	Current *OriginConfig `mapstructure:"current" validate:"required"`
}

// OriginConfig Origin configuration.
type OriginConfig struct {
	S3              *BucketConfig `mapstructure:"s3"         validate:"omitempty"`
	Name            string        `mapstructure:"name"       validate:"required"`
	Kind            string        `mapstructure:"kind"       validate:"required,oneof=HTTP S3"`
	BaseURLKey      string        `mapstructure:"baseUrlKey"`
	Timeout         string        `mapstructure:"timeout"`
	TimeoutDuration time.Duration
}

// BucketConfig Bucket configuration.
type BucketConfig struct {
	Credentials *BucketCredentialConfig `mapstructure:"credentials" validate:"omitempty"`
	Name        string                  `mapstructure:"name"        validate:"required"`
	Prefix      string                  `mapstructure:"prefix"`
	Region      string                  `mapstructure:"region"`
	S3Endpoint  string                  `mapstructure:"s3Endpoint"`
	DisableSSL  bool                    `mapstructure:"disableSSL"`
}

// BucketCredentialConfig Bucket Credentials configurations.
type BucketCredentialConfig struct {
	AccessKey *CredentialConfig `mapstructure:"accessKey" validate:"omitempty"`
	SecretKey *CredentialConfig `mapstructure:"secretKey" validate:"omitempty"`
}

// MigrationConfig Migration configuration.
type MigrationConfig struct {
	Webhook           *WebhookConfig `mapstructure:"webhook"         validate:"required"`
	BypassHeader      string         `mapstructure:"bypassHeader"    validate:"required"`
	ExcludedPaths     []string       `mapstructure:"excludedPaths"   validate:"dive,required"`
	ExcludedPathGlobs []glob.Glob
	FallbackOnError   bool `mapstructure:"fallbackOnError"`
}

// WebhookConfig Migration webhook configuration.
type WebhookConfig struct {
	Headers         map[string]string `mapstructure:"headers"`
	Name            string            `mapstructure:"name"         validate:"required"`
	AuthHeader      string            `mapstructure:"authHeader"   validate:"required"`
	URLKey          string            `mapstructure:"urlKey"       validate:"required"`
	AuthTokenKey    string            `mapstructure:"authTokenKey" validate:"required"`
	Timeout         string            `mapstructure:"timeout"`
	TimeoutDuration time.Duration
}

// CredentialConfig Credential Configurations.
type CredentialConfig struct {
	Path  string `mapstructure:"path"  validate:"required_without_all=Env Value"`
	Env   string `mapstructure:"env"   validate:"required_without_all=Path Value"`
	Value string `mapstructure:"value" validate:"required_without_all=Path Env"`
}

// LogConfig Log configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"    validate:"required"`
	Format   string `mapstructure:"format"   validate:"required"`
	FilePath string `mapstructure:"filePath"`
}

// GetRootPrefix Get bucket root prefix.
func (bcfg *BucketConfig) GetRootPrefix() string {
	key := bcfg.Prefix
	// Check if key ends with a /, if key exists and don't ends with / add it
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	// Return result
	return key
}

// CompileExcludedPaths compiles excluded path patterns with "/" as separator.
func CompileExcludedPaths(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		// Check error
		if err != nil {
			return nil, errors.Wrapf(err, "invalid excluded path %s", p)
		}

		globs = append(globs, g)
	}

	return globs, nil
}

// IsExcludedPath returns true when the request path matches one of the excluded path patterns.
func (mcfg *MigrationConfig) IsExcludedPath(requestPath string) bool {
	for _, g := range mcfg.ExcludedPathGlobs {
		if g.Match(requestPath) {
			return true
		}
	}

	return false
}

// ErrS3OriginWithoutBucket Error thrown when an S3 origin doesn't declare a bucket.
var ErrS3OriginWithoutBucket = errors.New("s3 origin must declare a s3 bucket configuration")
