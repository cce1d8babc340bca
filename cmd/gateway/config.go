package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"request-gate/middleware/ratelimit/domain"
)

type config struct {
	listenAddr  string
	upstreamURL string
	logLevel    slog.Level

	sessionSecret string
	sessionTTL    time.Duration
	signInPath    string

	apiLimit     domain.Config
	authLimit    domain.Config
	webhookLimit domain.Config

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
	rateStatsBuffer        int
}

// limitsFile é o formato do LIMITS_FILE. Campos ausentes mantêm o preset.
type limitsFile struct {
	API     *limitEntry `yaml:"api"`
	Auth    *limitEntry `yaml:"auth"`
	Webhook *limitEntry `yaml:"webhook"`
}

// MaxRequests é ponteiro para distinguir "ausente" de um 0 explícito,
// que precisa falhar na validação.
type limitEntry struct {
	Window      string `yaml:"window"`
	MaxRequests *int   `yaml:"maxRequests"`
}

func readConfig() (config, error) {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.sessionSecret = os.Getenv("SESSION_SECRET")
	cfg.sessionTTL = getenvDurationDefault("SESSION_TTL", 24*time.Hour)
	cfg.signInPath = getenvDefault("SIGN_IN_PATH", "/sign-in")

	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.apiLimit = domain.APIPreset
	cfg.authLimit = domain.AuthPreset
	cfg.webhookLimit = domain.WebhookPreset
	if path := os.Getenv("LIMITS_FILE"); path != "" {
		if err := cfg.applyLimitsFile(path); err != nil {
			return config{}, err
		}
	}

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)
	cfg.rateStatsBuffer = getenvIntDefault("RATE_STATS_BUFFER", 1024)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.upstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if len(c.sessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 bytes")
	}
	if c.sessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if !strings.HasPrefix(c.signInPath, "/") {
		return errors.New("SIGN_IN_PATH must start with /")
	}
	for _, l := range []domain.Config{c.apiLimit, c.authLimit, c.webhookLimit} {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("limit %q: %w", l.Name, err)
		}
	}
	if c.rateStatsEnabled && strings.TrimSpace(c.rateStatsRedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if c.rateStatsBuffer < 1 {
		return errors.New("RATE_STATS_BUFFER must be >= 1")
	}
	return nil
}

func (c *config) applyLimitsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read LIMITS_FILE: %w", err)
	}
	var f limitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse LIMITS_FILE: %w", err)
	}
	for _, item := range []struct {
		entry *limitEntry
		dst   *domain.Config
	}{
		{f.API, &c.apiLimit},
		{f.Auth, &c.authLimit},
		{f.Webhook, &c.webhookLimit},
	} {
		if err := item.entry.apply(item.dst); err != nil {
			return fmt.Errorf("LIMITS_FILE %s: %w", item.dst.Name, err)
		}
	}
	return nil
}

func (e *limitEntry) apply(dst *domain.Config) error {
	if e == nil {
		return nil
	}
	if e.Window != "" {
		d, err := time.ParseDuration(e.Window)
		if err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}
		dst.Window = d
	}
	if e.MaxRequests != nil {
		dst.MaxRequests = *e.MaxRequests
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
