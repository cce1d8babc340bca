package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Route é um rótulo de baixa cardinalidade ("api", "auth_api", "webhook"),
// nunca o path cru: /api/widgets/{id} viraria uma chave por id.
type StatsEvent struct {
	Key     Key
	Limiter string
	Route   string
	Allowed bool

	Remaining int

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Guarda apenas contagem de decisões, nunca o estado de cota.
// O chamador trata erro como best-effort (não derruba request). Stores que
// fazem I/O devem ficar atrás de um AsyncStatsStore para não segurar a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
