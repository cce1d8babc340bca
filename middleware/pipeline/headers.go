package pipeline

import "net/http"

var securityHeaders = [...][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "origin-when-cross-origin"},
	{"X-XSS-Protection", "1; mode=block"},
}

// SetSecurityHeaders aplica os headers fixos de segurança.
func SetSecurityHeaders(h http.Header) {
	for _, kv := range securityHeaders {
		h.Set(kv[0], kv[1])
	}
}
