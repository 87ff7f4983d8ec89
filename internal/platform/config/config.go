package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Environment    string
	DatabaseURL    string
	Redis          RedisConfig
	Kafka          KafkaConfig
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AdminToken     string
	Extractor      ExtractorConfig
	Scoring        scoring.Config
	UploadMaxBytes int64
	RequestTimeout time.Duration
	RateLimit      RateLimitConfig
	Audit          AuditConfig
}

// AuditConfig tunes the operational event stream. Compliance events are
// never sampled.
type AuditConfig struct {
	OpsSampleRate       decimal.Decimal
	ScoreViewSampleRate decimal.Decimal
}

// RateLimitConfig sets per-minute budgets. Zero disables a class.
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Read    int
	Write   int
	Admin   int
}

// RedisConfig configures the score cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ScoreTTL     time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
}

// ExtractorConfig configures the perception endpoint. An empty URL selects
// the static demo extractor.
type ExtractorConfig struct {
	URL              string
	Timeout          time.Duration
	MaxRetries       uint64
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	MaxEdge          int
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DefaultUploadMaxBytes = 5 << 20
)

// IsProduction reports whether the server runs with production defaults.
func (s Server) IsProduction() bool { return s.Environment == EnvProduction }

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	r := reader{lookup: lookup}

	cfg := Server{
		Addr:          r.str("KYC_ADDR", ":8080"),
		Environment:   r.str("KYC_ENV", EnvDevelopment),
		DatabaseURL:   r.str("DATABASE_URL", ""),
		JWTSigningKey: r.str("JWT_SIGNING_KEY", ""),
		JWTIssuer:     r.str("JWT_ISSUER", "kyc"),
		JWTAudience:   r.str("JWT_AUDIENCE", "kyc-api"),
		AdminToken:    r.str("ADMIN_TOKEN", ""),
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ScoreTTL:     r.duration("SCORE_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       r.list("KAFKA_BROKERS"),
			AuditTopic:    r.str("KAFKA_AUDIT_TOPIC", "kyc.audit"),
			RelayInterval: r.duration("OUTBOX_RELAY_INTERVAL", time.Second),
		},
		Extractor: ExtractorConfig{
			URL:              r.str("EXTRACTOR_URL", ""),
			Timeout:          r.duration("EXTRACTOR_TIMEOUT", 30*time.Second),
			MaxRetries:       uint64(r.int("EXTRACTOR_MAX_RETRIES", 3)),
			BreakerThreshold: uint32(r.int("EXTRACTOR_BREAKER_THRESHOLD", 5)),
			BreakerCooldown:  r.duration("EXTRACTOR_BREAKER_COOLDOWN", 30*time.Second),
			MaxEdge:          r.int("EXTRACTOR_MAX_EDGE", 2048),
		},
		UploadMaxBytes: int64(r.int("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes)),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", 60*time.Second),
		RateLimit: RateLimitConfig{
			Enabled: r.bool("RATE_LIMIT_ENABLED", true),
			Window:  r.duration("RATE_LIMIT_WINDOW", time.Minute),
			Read:    r.int("RATE_LIMIT_READ", 120),
			Write:   r.int("RATE_LIMIT_WRITE", 30),
			Admin:   r.int("RATE_LIMIT_ADMIN", 60),
		},
		Audit: AuditConfig{
			OpsSampleRate:       r.decimal("OPS_SAMPLE_RATE", decimal.NewFromInt(1)),
			ScoreViewSampleRate: r.decimal("OPS_SCORE_VIEW_SAMPLE_RATE", decimal.NewFromInt(1)),
		},
	}

	defaults := scoring.DefaultConfig()
	cfg.Scoring = scoring.Config{
		Weights: scoring.Weights{
			DocumentQuality: r.decimal("WEIGHT_DOCUMENT_QUALITY", defaults.Weights.DocumentQuality),
			SpendingPattern: r.decimal("WEIGHT_SPENDING_PATTERN", defaults.Weights.SpendingPattern),
			Consistency:     r.decimal("WEIGHT_CONSISTENCY", defaults.Weights.Consistency),
			Diversity:       r.decimal("WEIGHT_DIVERSITY", defaults.Weights.Diversity),
		},
		VerificationThreshold:  r.decimal("VERIFICATION_THRESHOLD", defaults.VerificationThreshold),
		MinReceiptConfidence:   r.decimal("MIN_RECEIPT_CONFIDENCE", defaults.MinReceiptConfidence),
		MaxSingleReceiptAmount: r.nullDecimal("MAX_SINGLE_RECEIPT_AMOUNT", defaults.MaxSingleReceiptAmount),
	}

	if len(r.errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(r.errs, "; "))
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return Server{}, fmt.Errorf("invalid scoring configuration: %w", err)
	}
	if cfg.JWTSigningKey == "" {
		if cfg.IsProduction() {
			return Server{}, fmt.Errorf("invalid configuration: JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg, nil
}

// reader collects parse failures so every bad variable is reported at once.
type reader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) int(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a non-negative integer, got %q", key, v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a duration, got %q", key, v))
		return def
	}
	return d
}

func (r *reader) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a decimal, got %q", key, v))
		return def
	}
	return d
}

// nullDecimal treats "none" as an explicit absence of the limit.
func (r *reader) nullDecimal(key string, def decimal.NullDecimal) decimal.NullDecimal {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	if strings.EqualFold(v, "none") {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s must be a decimal or \"none\", got %q", key, v))
		return def
	}
	return decimal.NewNullDecimal(d)
}
