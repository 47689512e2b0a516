//go:build unit

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func Test_loggerIns_Configure(t *testing.T) {
	type args struct {
		level    string
		format   string
		filePath string
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{
			name: "Cannot parse log level",
			args: args{
				level: "fake",
			},
			wantErr: true,
		},
		{
			name: "Parse log level ok",
			args: args{
				level: "info",
			},
			wantErr: false,
		},
		{
			name: "Format json ok",
			args: args{
				level:  "info",
				format: "json",
			},
			wantErr: false,
		},
		{
			name: "Create log file",
			args: args{
				level:    "info",
				format:   "json",
				filePath: filepath.Join(t.TempDir(), "dir", "s3-migration-proxy.log"),
			},
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ll := &loggerIns{
				FieldLogger: logrus.New(),
			}
			if err := ll.Configure(tt.args.level, tt.args.format, tt.args.filePath); (err != nil) != tt.wantErr {
				t.Errorf("loggerIns.Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_loggerIns_Configure_DerivedLogger(t *testing.T) {
	root := logrus.New()
	ll := &loggerIns{FieldLogger: root}

	derived := ll.WithField("key", "value")

	err := derived.Configure("debug", "json", "")
	assert.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, root.GetLevel())
}

func Test_loggerIns_Error_WithStack(t *testing.T) {
	buf := &bytes.Buffer{}
	root := logrus.New()
	root.SetOutput(buf)
	root.SetFormatter(&logrus.JSONFormatter{})

	ll := &loggerIns{FieldLogger: root}
	ll.Error(errors.New("boom"))

	res := map[string]interface{}{}
	err := json.Unmarshal(buf.Bytes(), &res)
	assert.NoError(t, err)
	assert.Equal(t, "boom", res["error"])
	assert.Equal(t, "error", res["level"])
	assert.NotEmpty(t, res["stack"])
}

func TestLoggerContext(t *testing.T) {
	ctx := context.TODO()
	assert.Nil(t, GetLoggerFromContext(ctx))

	logger := NewLogger()
	ctx = SetLoggerInContext(ctx, logger)
	assert.Equal(t, logger, GetLoggerFromContext(ctx))
}
