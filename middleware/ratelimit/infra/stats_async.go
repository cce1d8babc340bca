package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"request-gate/middleware/ratelimit/domain"
)

// AsyncStatsStore tira o Record do caminho da request: o evento entra num
// buffer com capacidade fixa e uma goroutine drena para o store de destino.
// Buffer cheio descarta o evento; Record nunca bloqueia.
type AsyncStatsStore struct {
	dst     domain.StatsStore
	events  chan domain.StatsEvent
	timeout time.Duration
	onError func(error)

	dropped atomic.Int64

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ domain.StatsStore = (*AsyncStatsStore)(nil)

type AsyncStatsOption func(*AsyncStatsStore)

// WithAsyncBuffer define quantos eventos podem esperar pelo destino.
func WithAsyncBuffer(n int) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if n > 0 {
			s.events = make(chan domain.StatsEvent, n)
		}
	}
}

// WithAsyncTimeout limita cada escrita no destino.
func WithAsyncTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithAsyncErrorHandler(fn func(error)) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.onError = fn }
}

// NewAsyncStatsStore já inicia a goroutine de escrita; quem cria chama Close.
func NewAsyncStatsStore(dst domain.StatsStore, opts ...AsyncStatsOption) *AsyncStatsStore {
	s := &AsyncStatsStore{
		dst:     dst,
		events:  make(chan domain.StatsEvent, 1024),
		timeout: 2 * time.Second,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Record enfileira o evento. O ctx da request não é repassado ao destino:
// a escrita acontece depois que a request já pode ter terminado.
func (s *AsyncStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped conta eventos descartados por buffer cheio.
func (s *AsyncStatsStore) Dropped() int64 { return s.dropped.Load() }

// Close para de aceitar trabalho novo, escreve o que já está no buffer e
// espera a goroutine terminar (ou ctx expirar).
func (s *AsyncStatsStore) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncStatsStore) run() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.events:
			s.write(ev)
		case <-s.quit:
			for {
				select {
				case ev := <-s.events:
					s.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncStatsStore) write(ev domain.StatsEvent) {
	if s.dst == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.dst.Record(ctx, ev); err != nil && s.onError != nil {
		s.onError(err)
	}
}
