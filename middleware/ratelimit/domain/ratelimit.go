package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

type Key string

var (
	ErrInvalidWindow      = errors.New("ratelimit: window must be > 0")
	ErrInvalidMaxRequests = errors.New("ratelimit: max requests must be >= 1")
)

// Config define uma janela fixa: no máximo MaxRequests por Window, por chave.
//
// É imutável depois que o limiter é construído.
type Config struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Validate rejeita configurações que fariam Remaining ficar negativo.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	if c.MaxRequests < 1 {
		return ErrInvalidMaxRequests
	}
	return nil
}

// Record é o contador de uma chave dentro da janela corrente.
type Record struct {
	Count   int
	ResetAt time.Time
}

// Expired indica se a janela do record já passou em now.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}

// Result é a decisão de um Check com os metadados de cota.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decide se uma chave ainda tem cota na janela corrente.
//
// Check nunca falha: só permite ou nega. Implementações devem ser seguras
// para uso concorrente.
type Limiter interface {
	Check(Key) Result
	Limit() int
}
