//go:build unit

package generalutils

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "should use X-Real-Ip first",
			headers: map[string]string{"X-Real-Ip": "10.0.0.1", "X-Forwarded-For": "10.0.0.2"},
			want:    "10.0.0.1",
		},
		{
			name:    "should use X-Forwarded-For",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.2"},
			want:    "10.0.0.2",
		},
		{
			name: "should fallback on remote address",
			want: "192.0.2.1:1234",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestGetRequestURI(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		headers map[string]string
		tls     bool
		want    string
	}{
		{
			name: "should build a simple uri",
			url:  "http://example.com/photos/img1.jpg?v=1",
			want: "http://example.com/photos/img1.jpg?v=1",
		},
		{
			name: "should use tls",
			url:  "http://example.com/a",
			tls:  true,
			want: "https://example.com/a",
		},
		{
			name:    "should use forwarded headers",
			url:     "http://example.com/a",
			headers: map[string]string{"X-Forwarded-Host": "cdn.example.com", "X-Forwarded-Proto": "https"},
			want:    "https://cdn.example.com/a",
		},
		{
			name:    "should use RFC 7239 header",
			url:     "http://example.com/a",
			headers: map[string]string{"Forwarded": `proto=https; host="edge.example.com"`},
			want:    "https://edge.example.com/a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}

			assert.Equal(t, tt.want, GetRequestURI(req))
		})
	}
}
