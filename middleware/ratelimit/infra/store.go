package infra

import (
	"sync"
	"time"

	"request-gate/middleware/ratelimit/domain"
)

// FixedWindow é um limiter de janela fixa por chave, todo em memória.
//
// Um único mutex cobre o Check inteiro (ler/criar record, comparar, incrementar),
// então cada chamada é uma transação atômica. Cada instância tem o seu próprio
// mapa: limiters diferentes nunca compartilham contadores.
type FixedWindow struct {
	mu      sync.Mutex
	records map[domain.Key]*domain.Record
	cfg     domain.Config
	now     func() time.Time
}

var _ domain.Limiter = (*FixedWindow)(nil)

type FixedWindowOption func(*FixedWindow)

// WithClock troca o relógio (útil em testes).
func WithClock(now func() time.Time) FixedWindowOption {
	return func(s *FixedWindow) {
		if now != nil {
			s.now = now
		}
	}
}

func NewFixedWindow(cfg domain.Config, opts ...FixedWindowOption) (*FixedWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &FixedWindow{
		records: make(map[domain.Key]*domain.Record),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FixedWindow) Config() domain.Config { return s.cfg }
func (s *FixedWindow) Limit() int            { return s.cfg.MaxRequests }

// Check implementa domain.Limiter.
func (s *FixedWindow) Check(key domain.Key) domain.Result {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(now)

	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = &domain.Record{Count: 1, ResetAt: now.Add(s.cfg.Window)}
		s.records[key] = rec
		return domain.Result{
			Allowed:   true,
			Limit:     s.cfg.MaxRequests,
			Remaining: s.cfg.MaxRequests - 1,
			ResetAt:   rec.ResetAt,
		}
	}

	if rec.Count >= s.cfg.MaxRequests {
		// negado: não mexe no contador nem no ResetAt
		return domain.Result{
			Allowed:   false,
			Limit:     s.cfg.MaxRequests,
			Remaining: 0,
			ResetAt:   rec.ResetAt,
		}
	}

	rec.Count++
	return domain.Result{
		Allowed:   true,
		Limit:     s.cfg.MaxRequests,
		Remaining: s.cfg.MaxRequests - rec.Count,
		ResetAt:   rec.ResetAt,
	}
}

// Len retorna quantas chaves estão sendo rastreadas (inclui expiradas ainda não varridas).
func (s *FixedWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// purgeLocked remove records cuja janela já passou. O mapa só contém chaves
// vistas dentro de uma janela, então a varredura completa a cada Check é aceitável.
func (s *FixedWindow) purgeLocked(now time.Time) {
	for k, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, k)
		}
	}
}
