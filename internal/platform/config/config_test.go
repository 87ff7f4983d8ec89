package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc/internal/scoring"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, int64(DefaultUploadMaxBytes), cfg.UploadMaxBytes)
	assert.NotEmpty(t, cfg.JWTSigningKey)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.Write)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	defaults := scoring.DefaultConfig()
	assert.True(t, defaults.VerificationThreshold.Equal(cfg.Scoring.VerificationThreshold))
	assert.True(t, defaults.Weights.DocumentQuality.Equal(cfg.Scoring.Weights.DocumentQuality))
	assert.True(t, cfg.Scoring.MaxSingleReceiptAmount.Valid)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"KYC_ADDR":                   ":9090",
		"KAFKA_BROKERS":              "a:9092, b:9092,",
		"VERIFICATION_THRESHOLD":     "80",
		"WEIGHT_DIVERSITY":           "0.10",
		"MAX_SINGLE_RECEIPT_AMOUNT":  "none",
		"EXTRACTOR_TIMEOUT":          "5s",
		"RATE_LIMIT_ENABLED":         "false",
		"OPS_SCORE_VIEW_SAMPLE_RATE": "0.25",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, decimal.NewFromInt(80).Equal(cfg.Scoring.VerificationThreshold))
	assert.True(t, decimal.RequireFromString("0.10").Equal(cfg.Scoring.Weights.Diversity))
	assert.False(t, cfg.Scoring.MaxSingleReceiptAmount.Valid)
	assert.Equal(t, 5*time.Second, cfg.Extractor.Timeout)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, decimal.RequireFromString("0.25").Equal(cfg.Audit.ScoreViewSampleRate))
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.Audit.OpsSampleRate))
}

func TestFromLookup_InvalidValuesFail(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"REDIS_POOL_SIZE": "ten"}},
		{"negative int", map[string]string{"UPLOAD_MAX_BYTES": "-1"}},
		{"bad bool", map[string]string{"RATE_LIMIT_ENABLED": "sometimes"}},
		{"bad duration", map[string]string{"REQUEST_TIMEOUT": "forever"}},
		{"bad decimal", map[string]string{"WEIGHT_CONSISTENCY": "a quarter"}},
		{"threshold out of range", map[string]string{"VERIFICATION_THRESHOLD": "150"}},
		{"production without key", map[string]string{"KYC_ENV": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromLookup(lookupFrom(tt.env))
			require.Error(t, err)
		})
	}
}
