package ratelimit

import (
	"net/http"

	"request-gate/middleware/ratelimit/application"
	"request-gate/middleware/ratelimit/domain"
)

// Options configura o middleware avulso de rate limit, usado em pontos de
// entrada fora do pipeline principal (ex: webhooks).
type Options struct {
	Limiter   domain.Limiter
	Stats     domain.StatsStore
	Name      string
	KeyFn     KeyFunc
	KeyHeader string
	// AddRateLimitHeaders também expõe os headers de cota em respostas permitidas.
	AddRateLimitHeaders bool
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader)
	}

	svc := application.Service{
		Limiter: opts.Limiter,
		Stats:   opts.Stats,
		Name:    opts.Name,
	}

	return func(next http.Handler) http.Handler {
		if opts.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			res := svc.Decide(r.Context(), key, opts.Name)
			if !res.Allowed {
				WriteTooManyRequests(w, res)
				return
			}
			if opts.AddRateLimitHeaders {
				WriteQuotaHeaders(w, res)
			}

			next.ServeHTTP(w, r)
		})
	}
}
