// Package origin forwards edge traffic to the protected application.
package origin

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veil-waf/veil-edge/internal/kasada"
	"github.com/veil-waf/veil-edge/internal/netguard"
)

// Request headers never copied to the origin: hop-by-hop, and forwarded
// headers the client could spoof. The trusted ones are set by Forwarder.
var strippedHeaders = map[string]bool{
	"host": true, "connection": true, "transfer-encoding": true, "keep-alive": true,
	"proxy-connection": true, "te": true, "upgrade": true, "trailer": true,
	"content-length": true, "x-forwarded-host": true, "x-forwarded-proto": true,
	"x-forwarded-for": true, "via": true,
}

var excludedResponseHeaders = map[string]bool{
	"transfer-encoding": true,
	"connection":        true,
	"keep-alive":        true,
	"content-length":    true,
}

// Forwarder is the origin handler the edge middleware wraps.
type Forwarder struct {
	target *url.URL
	client *http.Client
	logger *slog.Logger
}

// NewForwarder creates a Forwarder for target. Connections go through guard.
func NewForwarder(target *url.URL, guard *netguard.Guard, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		target: target,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:         guard.DialContext,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects belong to the client, not the edge.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	forwardURL := *f.target
	forwardURL.Path = singleJoiningSlash(f.target.Path, r.URL.Path)
	forwardURL.RawPath = ""
	forwardURL.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.ContentLength != 0 {
		body = r.Body
	}
	proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, forwardURL.String(), body)
	if err != nil {
		jsonError(w, "Failed to create origin request", http.StatusBadGateway)
		return
	}
	proxyReq.ContentLength = r.ContentLength

	for key, values := range r.Header {
		if strippedHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			proxyReq.Header.Add(key, v)
		}
	}
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	proxyReq.Header.Set("X-Forwarded-For", kasada.ClientIP(r))
	proxyReq.Header.Set("X-Forwarded-Proto", proto)
	proxyReq.Header.Set("X-Forwarded-Host", r.Host)

	resp, err := f.client.Do(proxyReq)
	if err != nil {
		if r.Context().Err() != nil {
			f.logger.Debug("client went away before origin answered", "path", r.URL.Path)
			return
		}
		f.logger.Error("origin request failed", "err", err, "path", r.URL.Path)
		jsonError(w, fmt.Sprintf("Could not reach origin: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if excludedResponseHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.Debug("copy origin body", "err", err)
	}
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
