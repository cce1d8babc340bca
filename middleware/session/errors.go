package session

import "errors"

var (
	// ErrSessionInvalid: token malformado, adulterado ou expirado.
	ErrSessionInvalid = errors.New("session: invalid token")
	// ErrSigning: o codec não conseguiu assinar o payload.
	ErrSigning = errors.New("session: signing failed")

	ErrWeakSecret     = errors.New("session: secret must be at least 32 bytes")
	ErrMissingExpires = errors.New("session: payload has no expires")
)
