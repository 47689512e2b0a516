//go:build unit

package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/stretchr/testify/assert"
)

func TestTemplateExecution(t *testing.T) {
	tests := []struct {
		name           string
		tplString      string
		data           interface{}
		status         int
		wantErr        bool
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "string template with sprig function",
			tplString:      `{{ .Path | upper }}`,
			data:           &ErrorTemplateData{Path: "/a.txt"},
			status:         http.StatusBadGateway,
			expectedBody:   "/A.TXT",
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:      "broken template",
			tplString: `{{ .Path `,
			data:      &ErrorTemplateData{Path: "/a.txt"},
			status:    http.StatusBadGateway,
			wantErr:   true,
		},
		{
			name:      "execution error",
			tplString: `{{ .Unknown }}`,
			data:      &ErrorTemplateData{Path: "/a.txt"},
			status:    http.StatusBadGateway,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := TemplateExecution("", tt.tplString, w, tt.data, tt.status)
			if (err != nil) != tt.wantErr {
				t.Errorf("TemplateExecution() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				// Nothing must be written
				assert.Equal(t, 0, w.Body.Len())
				assert.Equal(t, "", w.Header().Get("Content-Type"))

				return
			}

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		})
	}
}

func TestHandleErrors(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "error.tpl")
	assert.NoError(t, os.WriteFile(tplPath, []byte(`{{ .Path }}: {{ .Error }}`), 0o600))

	tests := []struct {
		name           string
		handle         func(rw http.ResponseWriter, err error, requestPath string, logger log.Logger, tplCfg *config.TemplateConfig)
		tplCfg         *config.TemplateConfig
		expectedStatus int
		expectedBody   string
		containsBody   string
	}{
		{
			name:           "internal server error template",
			handle:         HandleInternalServerError,
			tplCfg:         &config.TemplateConfig{InternalServerError: tplPath},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "/a.txt: boom",
		},
		{
			name:           "bad gateway template",
			handle:         HandleBadGateway,
			tplCfg:         &config.TemplateConfig{BadGatewayError: tplPath},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   "/a.txt: boom",
		},
		{
			name:           "missing template falls back to inline page",
			handle:         HandleBadGateway,
			tplCfg:         &config.TemplateConfig{BadGatewayError: filepath.Join(dir, "missing.tpl")},
			expectedStatus: http.StatusBadGateway,
			containsBody:   "<h1>Bad Gateway</h1>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			tt.handle(w, errors.New("boom"), "/a.txt", log.NewLogger(), tt.tplCfg)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

			if tt.containsBody != "" {
				assert.Contains(t, w.Body.String(), tt.containsBody)
			} else {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}
