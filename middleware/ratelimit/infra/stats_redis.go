package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"request-gate/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"

	bucketMinute = "minute"
	bucketNone   = "none"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis.
// Só estatística: a cota continua no FixedWindow em memória.
//
// Layout, com prefix "ratelimit:stats":
//
//	<prefix>:total                    allowed | denied
//	<prefix>:limiter:<nome>           allowed | denied
//	<prefix>:route                    <rótulo>:allowed | <rótulo>:denied
//	<prefix>:minute:<yyyymmddhhmm>    <limiter>:allowed | <limiter>:denied  (expira)
//	<prefix>:key:<chave>              allowed | denied                      (opt-in, expira)
//
// Todos os campos vêm de conjuntos fechados (limiters e rótulos de rota);
// só as hashes por minuto e por chave crescem, e essas têm TTL.
type RedisStatsStore struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	bucket    string
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithStatsTTL define a expiração das hashes por minuto e por chave.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita "minute" (padrão) ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if b := strings.ToLower(strings.TrimSpace(bucket)); b == bucketNone {
			s.bucket = bucketNone
		} else {
			s.bucket = bucketMinute
		}
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: bucketMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStatsStore) TotalKey() string              { return s.key("total") }
func (s *RedisStatsStore) RouteKey() string              { return s.key("route") }
func (s *RedisStatsStore) LimiterKey(name string) string { return s.key("limiter", name) }
func (s *RedisStatsStore) ClientKey(k domain.Key) string { return s.key("key", string(k)) }

func (s *RedisStatsStore) MinuteKey(at time.Time) string {
	return s.key(bucketMinute, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	outcome := fieldDenied
	if ev.Allowed {
		outcome = fieldAllowed
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	limiter := strings.TrimSpace(ev.Limiter)

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.TotalKey(), outcome, 1)

		if limiter != "" {
			pipe.HIncrBy(ctx, s.LimiterKey(limiter), outcome, 1)
		}
		if ev.Route != "" {
			pipe.HIncrBy(ctx, s.RouteKey(), ev.Route+":"+outcome, 1)
		}

		if s.bucket == bucketMinute {
			field := outcome
			if limiter != "" {
				field = limiter + ":" + outcome
			}
			s.incrExpiring(ctx, pipe, s.MinuteKey(at), field)
		}

		if s.trackKeys && strings.TrimSpace(string(ev.Key)) != "" {
			s.incrExpiring(ctx, pipe, s.ClientKey(ev.Key), outcome)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record rate limit stats: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}
