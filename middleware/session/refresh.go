package session

import (
	"fmt"
	"maps"
	"net/http"
	"time"
)

const DefaultTTL = 24 * time.Hour

// Action é a mutação de resposta decidida para a sessão.
type Action int

const (
	ActionNone Action = iota
	ActionRefresh
	ActionClear
	ActionClearAndRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRefresh:
		return "refresh"
	case ActionClear:
		return "clear"
	case ActionClearAndRedirect:
		return "clear_redirect"
	default:
		return "none"
	}
}

// VerifyResult é o que o pipeline sabe do cookie depois de tentar verificá-lo.
type VerifyResult struct {
	Present bool
	Err     error
}

// IsSafeMethod: só requisições de leitura renovam a sessão.
func IsSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// Decide é puro: não toca em request/response.
func Decide(v VerifyResult, method string, protected bool) Action {
	if !v.Present || !IsSafeMethod(method) {
		return ActionNone
	}
	if v.Err != nil {
		if protected {
			return ActionClearAndRedirect
		}
		return ActionClear
	}
	return ActionRefresh
}

// Refresher reemite o token com a mesma carga e expiração deslizante.
type Refresher struct {
	Codec Codec
	TTL   time.Duration
	Now   func() time.Time
}

// Reissue assina p com Expires = now + TTL.
func (r Refresher) Reissue(p Payload) (string, time.Time, error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	expires := now().Add(ttl)
	token, err := r.Codec.Sign(Payload{Claims: maps.Clone(p.Claims), Expires: expires})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reissue session: %w", err)
	}
	return token, expires, nil
}
