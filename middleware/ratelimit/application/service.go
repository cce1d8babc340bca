package application

import (
	"context"
	"time"

	"request-gate/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna a decisão
// com os metadados de cota e registra o evento em Stats (best-effort).
type Service struct {
	Limiter domain.Limiter
	Stats   domain.StatsStore
	Name    string
	Now     func() time.Time
}

// Decide consulta o limiter e registra o evento sob o rótulo route.
func (s Service) Decide(ctx context.Context, key domain.Key, route string) domain.Result {
	if s.Limiter == nil {
		return domain.Result{Allowed: true}
	}

	res := s.Limiter.Check(key)

	if s.Stats != nil {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		_ = s.Stats.Record(ctx, domain.StatsEvent{
			Key:       key,
			Limiter:   s.Name,
			Route:     route,
			Allowed:   res.Allowed,
			Remaining: res.Remaining,
			At:        now(),
		})
	}
	return res
}
