package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/Masterminds/sprig/v3"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
)

// ErrorTemplateData Data given to error templates.
type ErrorTemplateData struct {
	Error error
	Path  string
}

const fallbackErrorPage = `
<!DOCTYPE html>
<html>
  <body>
	<h1>%s</h1>
	<p>%s</p>
  </body>
</html>
`

// HandleInternalServerError Handle internal server error following response template.
func HandleInternalServerError(rw http.ResponseWriter, err error, requestPath string, logger log.Logger, tplCfg *config.TemplateConfig) {
	handleErrorWithTemplate(tplCfg.InternalServerError, rw, err, requestPath, logger, http.StatusInternalServerError)
}

// HandleBadGateway Handle origin failures following response template.
func HandleBadGateway(rw http.ResponseWriter, err error, requestPath string, logger log.Logger, tplCfg *config.TemplateConfig) {
	handleErrorWithTemplate(tplCfg.BadGatewayError, rw, err, requestPath, logger, http.StatusBadGateway)
}

func handleErrorWithTemplate(
	tplPath string,
	rw http.ResponseWriter,
	err error,
	requestPath string,
	logger log.Logger,
	status int,
) {
	err2 := TemplateExecution(tplPath, "", rw, &ErrorTemplateData{Path: requestPath, Error: err}, status)
	if err2 != nil {
		// New error
		logger.Error(err2)
		// Template error
		res := fmt.Sprintf(fallbackErrorPage, http.StatusText(status), template.HTMLEscapeString(err2.Error()))

		// Set the header and write the buffer to the http.ResponseWriter
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		rw.WriteHeader(status)
		_, _ = rw.Write([]byte(res))
	}
}

// TemplateExecution will execute template with values and interpret response as html content.
// Nothing is written when template loading or execution fails.
func TemplateExecution(tplPath, tplString string, rw http.ResponseWriter, data interface{}, status int) error {
	// Initialize variables
	var err error

	var tmpl *template.Template

	// Check if it a template file
	if tplString != "" {
		// Load template from string
		tmpl, err = template.New("template-string-loaded").Funcs(sprig.HtmlFuncMap()).Parse(tplString)
	} else {
		// Load template from file
		tplFileName := filepath.Base(tplPath)
		tmpl, err = template.New(tplFileName).Funcs(sprig.HtmlFuncMap()).ParseFiles(tplPath)
	}

	// Check if error exists
	if err != nil {
		return errors.WithStack(err)
	}

	// Generate template in buffer
	buf := &bytes.Buffer{}
	err = tmpl.Execute(buf, data)
	// Check if error exists
	if err != nil {
		return errors.WithStack(err)
	}

	// Set the header and write the buffer to the http.ResponseWriter
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(status)

	_, err = buf.WriteTo(rw)
	// Check if error exists
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
