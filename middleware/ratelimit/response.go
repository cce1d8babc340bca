package ratelimit

import (
	"encoding/json"
	"net/http"

	"request-gate/middleware/ratelimit/domain"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"

	TooManyRequestsMessage = "Too many requests"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteQuotaHeaders expõe limit/remaining/reset. Reset vai em epoch millis.
func WriteQuotaHeaders(w http.ResponseWriter, res domain.Result) {
	h := w.Header()
	h.Set(HeaderLimit, formatInt(res.Limit))
	h.Set(HeaderRemaining, formatInt(res.Remaining))
	h.Set(HeaderReset, formatInt64(res.ResetAt.UnixMilli()))
}

// WriteTooManyRequests responde 429 com os headers de cota e corpo
// {"error":"Too many requests"}.
func WriteTooManyRequests(w http.ResponseWriter, res domain.Result) {
	WriteQuotaHeaders(w, res)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(errorBody{Error: TooManyRequestsMessage})
}
