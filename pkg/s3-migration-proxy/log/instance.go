package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type loggerIns struct {
	logrus.FieldLogger
	// root keeps the base logrus logger so Configure works on derived loggers.
	root *logrus.Logger
}

// This is dirty pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (ll *loggerIns) GetTracingLogger() TracingLogger {
	return &tracingLogger{
		logger: ll,
	}
}

func (ll *loggerIns) GetCorsLogger() CorsLogger {
	return &corsLogger{
		logger: ll,
	}
}

func (ll *loggerIns) baseLogger() *logrus.Logger {
	if ll.root != nil {
		return ll.root
	}

	lll, _ := ll.FieldLogger.(*logrus.Logger)

	return lll
}

func (ll *loggerIns) Configure(level string, format string, filePath string) error {
	// Parse log level
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}

	// Get logrus logger
	lll := ll.baseLogger()
	if lll == nil {
		return errors.New("logger cannot be configured from a derived entry")
	}

	// Set log level
	lll.SetLevel(lvl)

	// Set format
	if format == "json" {
		lll.SetFormatter(&logrus.JSONFormatter{})
	} else {
		lll.SetFormatter(&logrus.TextFormatter{})
	}

	if filePath != "" {
		// Create directory if necessary
		err2 := os.MkdirAll(filepath.Dir(filePath), os.ModePerm)
		if err2 != nil {
			return errors.WithStack(err2)
		}

		// Open file
		f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666) //nolint: gosec // Log file
		if err != nil {
			return errors.WithStack(err)
		}

		// Set output file
		lll.SetOutput(f)
	}

	return nil
}

func (ll *loggerIns) derive(fieldL logrus.FieldLogger) Logger {
	return &loggerIns{
		FieldLogger: fieldL,
		root:        ll.baseLogger(),
	}
}

func (ll *loggerIns) WithField(key string, value interface{}) Logger {
	return ll.derive(ll.FieldLogger.WithField(key, value))
}

func (ll *loggerIns) WithFields(fields map[string]interface{}) Logger {
	// Transform fields
	var ff logrus.Fields = fields

	return ll.derive(ll.FieldLogger.WithFields(ff))
}

func (ll *loggerIns) WithError(err error) Logger {
	// Create new field logger
	fieldL := ll.FieldLogger.WithError(err)

	addStackTrace := func(pError stackTracer) {
		// Get stack trace from error
		st := pError.StackTrace()
		// Stringify stack trace
		valued := fmt.Sprintf("%+v", st)
		// Remove all tabs
		valued = strings.ReplaceAll(valued, "\t", "")
		// Split on new line
		stack := strings.Split(valued, "\n")
		// Remove first empty string
		stack = stack[1:]
		// Add stack trace to field logger
		fieldL = fieldL.WithField("stack", strings.Join(stack, ","))
	}

	// Check if error is matching stack trace interface
	// nolint: errorlint // Ignore this because the aim is to catch stack trace error at first level
	if err2, ok := err.(stackTracer); ok {
		addStackTrace(err2)
	} else if err2, ok := errors.Cause(err).(stackTracer); ok { // nolint: errorlint // Same
		addStackTrace(err2)
	}

	return ll.derive(fieldL)
}

func (ll *loggerIns) Error(args ...interface{}) {
	// Check if first element is an error
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			// Log it with its stack trace
			ll.WithError(err).(*loggerIns).FieldLogger.Error(args...)

			return
		}
	}

	// Call logger error method
	ll.FieldLogger.Error(args...)
}
