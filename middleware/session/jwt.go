package session

import (
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimExpires  = "expires"
	claimExp      = "exp"
	claimIssuedAt = "iat"
)

// JWTCodec implementa Codec com JWT HS256.
//
// O token carrega "exp" (validado pelo parser) e "expires" em RFC3339,
// que é o campo devolvido em Payload.Expires.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
}

var _ Codec = (*JWTCodec)(nil)

type JWTOption func(*JWTCodec)

func WithCodecClock(now func() time.Time) JWTOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewJWTCodec(secret []byte, opts ...JWTOption) (*JWTCodec, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	c := &JWTCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *JWTCodec) Sign(p Payload) (string, error) {
	if p.Expires.IsZero() {
		return "", ErrMissingExpires
	}

	claims := jwt.MapClaims{}
	for k, v := range p.Claims {
		switch k {
		case claimExp, claimExpires, claimIssuedAt:
			continue
		}
		claims[k] = v
	}
	claims[claimExpires] = p.Expires.UTC().Format(time.RFC3339Nano)
	claims[claimExp] = jwt.NewNumericDate(p.Expires)
	claims[claimIssuedAt] = jwt.NewNumericDate(c.now())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return token, nil
}

func (c *JWTCodec) Verify(token string) (Payload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	expires, err := expiresFrom(claims)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	out := maps.Clone(map[string]any(claims))
	delete(out, claimExp)
	delete(out, claimExpires)
	delete(out, claimIssuedAt)

	return Payload{Claims: out, Expires: expires}, nil
}

// expiresFrom prefere o campo "expires"; tokens sem ele caem para "exp".
func expiresFrom(claims jwt.MapClaims) (time.Time, error) {
	if raw, ok := claims[claimExpires].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse expires: %w", err)
		}
		return t, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrMissingExpires
	}
	return exp.Time, nil
}
