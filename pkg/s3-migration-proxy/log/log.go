package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used across the proxy.
type Logger interface {
	Configure(level string, format string, filePath string) error

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Printf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Print(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})

	Infoln(args ...interface{})
	Warnln(args ...interface{})
	Errorln(args ...interface{})

	GetTracingLogger() TracingLogger
	GetCorsLogger() CorsLogger
}

// TracingLogger is the logger given to the jaeger client.
type TracingLogger interface {
	Error(msg string)
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
}

// CorsLogger is the logger given to the cors middleware.
type CorsLogger interface {
	Printf(string, ...interface{})
}

// NewLogger creates a new logrus based logger.
func NewLogger() Logger {
	return &loggerIns{
		FieldLogger: logrus.New(),
	}
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

var loggerContextKey = &contextKey{name: "LOGGER_CONTEXT_KEY"}

// GetLoggerFromContext returns the request logger stored in context or nil.
func GetLoggerFromContext(ctx context.Context) Logger {
	res, _ := ctx.Value(loggerContextKey).(Logger)

	return res
}

// SetLoggerInContext stores a logger in context.
func SetLoggerInContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}
