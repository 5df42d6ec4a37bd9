package logger

import (
	"net/http"
	"net/url"
	"strings"
)

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
}

func redactHeaderValue(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitive[strings.ToLower(k)]; ok {
		return "<redacted>"
	}
	return v
}

// SafeHeaders returns a compact string representation of headers suitable
// for logging with sensitive values redacted.
func SafeHeaders(r *http.Request) string {
	parts := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		parts = append(parts, k+"="+redactHeaderValue(k, v[0]))
	}
	return strings.Join(parts, "; ")
}

// SafeQuery returns the request query string with the bearer token value
// blanked. Connection URLs carry the credential as ?token=..., which must
// never reach the logs.
func SafeQuery(r *http.Request) string {
	q := r.URL.Query()
	if q.Get("token") != "" {
		q.Set("token", "<redacted>")
	}
	s, _ := url.QueryUnescape(q.Encode())
	return s
}

// LogRequest logs a concise, safe summary of an incoming request.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	Log.Info("incoming_request",
		"method", r.Method,
		"path", r.URL.Path,
		"query", SafeQuery(r),
		"remote", r.RemoteAddr,
		"headers", SafeHeaders(r),
	)
}
