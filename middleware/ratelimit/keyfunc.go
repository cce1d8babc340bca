package ratelimit

import (
	"net/http"
	"strings"
)

// Identidade usada quando nenhum header de proxy está presente.
const UnknownClient = "unknown"

type KeyFunc func(r *http.Request) string

// ClientIdentity deriva a chave de bucket a partir dos headers de proxy:
// primeiro IP do X-Forwarded-For, depois X-Real-IP, depois CF-Connecting-IP.
//
// O valor é falsificável pelo cliente. Serve só como chave de rate limit,
// nunca para autorização.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	return UnknownClient
}

// DefaultKeyFunc usa keyHeader (ex: X-Api-Key) quando presente e cai para ClientIdentity.
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		return ClientIdentity(r)
	}
}
