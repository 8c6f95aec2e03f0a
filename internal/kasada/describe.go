package kasada

import (
	"net"
	"net/http"
	"sort"
	"strings"
)

// hostPlaceholder replaces the Host header; the real hostname travels in
// X-Forwarded-Host on the outbound call instead.
const hostPlaceholder = "host"

// Describe translates an inbound request into a classification payload.
func Describe(r *http.Request) *APIRequest {
	names := make([]string, 0, len(r.Header))
	byName := make(map[string][]string, len(r.Header))
	for key, values := range r.Header {
		lk := strings.ToLower(key)
		if lk == "x-forwarded-host" || lk == "host" {
			continue
		}
		if _, seen := byName[lk]; !seen {
			names = append(names, lk)
		}
		byName[lk] = append(byName[lk], values...)
	}
	names = append(names, "host")
	byName["host"] = []string{hostPlaceholder}
	sort.Strings(names)

	headers := make([]HeaderPair, 0, len(names))
	for _, name := range names {
		for _, v := range byName[name] {
			headers = append(headers, HeaderPair{Key: name, Value: v})
		}
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	query := ""
	if r.URL.RawQuery != "" {
		query = "?" + r.URL.RawQuery
	}

	return &APIRequest{
		ClientIP:    ClientIP(r),
		Headers:     headers,
		Method:      r.Method,
		Protocol:    protocol(r),
		Path:        path,
		QueryString: query,
	}
}

// ClientIP prefers X-Real-IP set by the fronting load balancer and falls back
// to the connection's remote address.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Hostname returns the inbound hostname without port.
func Hostname(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if hp, _, err := net.SplitHostPort(host); err == nil {
		return hp
	}
	return strings.Trim(host, "[]")
}

func protocol(r *http.Request) string {
	if r.URL.Scheme != "" {
		return strings.ToUpper(r.URL.Scheme)
	}
	if r.TLS != nil {
		return "HTTPS"
	}
	return "HTTP"
}
