package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"request-gate/middleware/ratelimit"
	"request-gate/middleware/ratelimit/application"
	"request-gate/middleware/ratelimit/domain"
	"request-gate/middleware/requestid"
	"request-gate/middleware/session"
)

var (
	ErrMissingLimiter = errors.New("pipeline: api and auth limiters are required")
	ErrMissingCodec   = errors.New("pipeline: session codec is required")
)

const DefaultSignInPath = signInPath

type Options struct {
	// APILimiter cobre /api; AuthLimiter cobre /api/auth. Devem ser instâncias distintas.
	APILimiter  domain.Limiter
	AuthLimiter domain.Limiter

	Codec session.Codec

	// Stats é chamado no caminho da request; stores com I/O vão atrás de
	// infra.AsyncStatsStore.
	Stats   domain.StatsStore
	Metrics *Metrics
	Logger  *slog.Logger

	// Identity extrai a chave de rate limit. Padrão: ratelimit.ClientIdentity.
	Identity ratelimit.KeyFunc

	SignInPath string
	SessionTTL time.Duration
	Now        func() time.Time
}

type pipeline struct {
	api  application.Service
	auth application.Service

	codec     session.Codec
	refresher session.Refresher

	identity   ratelimit.KeyFunc
	signInPath string
	metrics    *Metrics
	log        *slog.Logger

	// amostra os avisos de sessão inválida para um cookie adulterado em loop
	// não inundar o log
	invalidLog *rate.Sometimes
}

// New monta o middleware. Erros só acontecem aqui, na construção; em tempo
// de requisição o pipeline sempre produz uma resposta bem formada.
func New(opts Options) (func(http.Handler) http.Handler, error) {
	if opts.APILimiter == nil || opts.AuthLimiter == nil {
		return nil, ErrMissingLimiter
	}
	if opts.Codec == nil {
		return nil, ErrMissingCodec
	}
	if opts.Identity == nil {
		opts.Identity = ratelimit.ClientIdentity
	}
	if opts.SignInPath == "" {
		opts.SignInPath = DefaultSignInPath
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &pipeline{
		api:  application.Service{Limiter: opts.APILimiter, Stats: opts.Stats, Name: "api", Now: opts.Now},
		auth: application.Service{Limiter: opts.AuthLimiter, Stats: opts.Stats, Name: "auth", Now: opts.Now},

		codec:     opts.Codec,
		refresher: session.Refresher{Codec: opts.Codec, TTL: opts.SessionTTL, Now: opts.Now},

		identity:   opts.Identity,
		signInPath: opts.SignInPath,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		invalidLog: &rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.serve(w, r, next)
		})
	}, nil
}

func (p *pipeline) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	r = withCleanPath(r)
	ctx := r.Context()
	route := Classify(r.URL.Path)

	if route.API {
		svc := p.api
		if route.Auth {
			svc = p.auth
		}
		key := p.identity(r)
		res := svc.Decide(ctx, domain.Key(key), route.Label())
		p.metrics.quota(svc.Name, res)
		if !res.Allowed {
			p.metrics.request(route, outcomeRateLimited)
			p.log.DebugContext(ctx, "rate limited",
				"request_id", requestid.FromContext(ctx),
				"limiter", svc.Name,
				"key", key,
				"path", r.URL.Path,
				"reset_at", res.ResetAt,
			)
			ratelimit.WriteTooManyRequests(w, res)
			return
		}
	}

	token, hasSession := session.TokenFrom(r)
	if route.Protected && !hasSession {
		p.metrics.request(route, outcomeSignIn)
		p.redirectToSignIn(w, r)
		return
	}

	SetSecurityHeaders(w.Header())

	if hasSession && session.IsSafeMethod(r.Method) {
		if redirected := p.refreshSession(ctx, w, r, route, token); redirected {
			p.metrics.request(route, outcomeSignIn)
			return
		}
	}

	p.metrics.request(route, outcomePassed)
	next.ServeHTTP(w, r)
}

// refreshSession aplica a decisão de sessão e informa se a resposta virou redirect.
func (p *pipeline) refreshSession(ctx context.Context, w http.ResponseWriter, r *http.Request, route Route, token string) bool {
	payload, verifyErr := p.codec.Verify(token)
	action := session.Decide(session.VerifyResult{Present: true, Err: verifyErr}, r.Method, route.Protected)
	p.metrics.session(action)

	switch action {
	case session.ActionRefresh:
		newToken, expires, err := p.refresher.Reissue(payload)
		if err != nil {
			// falha de assinatura só derruba a renovação, não a requisição
			p.log.ErrorContext(ctx, "session refresh failed",
				"request_id", requestid.FromContext(ctx),
				"error", err,
			)
			return false
		}
		session.SetCookie(w, newToken, expires)
		return false

	case session.ActionClear, session.ActionClearAndRedirect:
		p.invalidLog.Do(func() {
			p.log.WarnContext(ctx, "invalid session cookie cleared",
				"request_id", requestid.FromContext(ctx),
				"path", r.URL.Path,
				"error", verifyErr,
			)
		})
		session.ClearCookie(w)
		if action == session.ActionClearAndRedirect {
			p.redirectToSignIn(w, r)
			return true
		}
	}
	return false
}

// withCleanPath devolve r com URL.Path normalizado, para que a classificação
// e o handler seguinte vejam o mesmo path.
func withCleanPath(r *http.Request) *http.Request {
	clean := CleanPath(r.URL.Path)
	if clean == r.URL.Path {
		return r
	}
	r2 := new(http.Request)
	*r2 = *r
	u := *r.URL
	u.Path = clean
	u.RawPath = ""
	r2.URL = &u
	return r2
}

func (p *pipeline) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, p.signInPath, http.StatusTemporaryRedirect)
}
