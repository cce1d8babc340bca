package session

import "time"

// Payload é opaco para o pipeline: Claims vai e volta sem interpretação.
type Payload struct {
	Claims  map[string]any
	Expires time.Time
}

// Codec assina e verifica tokens de sessão.
//
// Verify falha (com ErrSessionInvalid) em assinatura inválida ou token expirado.
type Codec interface {
	Sign(Payload) (string, error)
	Verify(token string) (Payload, error)
}
