package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("CURRENCY", "")
	t.Setenv("SETTLEMENT_MAX_RETRIES", "")
	t.Setenv("DIVIDEND_DISTRIBUTION_CRON", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DividendCron)
	assert.Empty(t, cfg.OtelEndpoint)
	assert.GreaterOrEqual(t, cfg.SettlementRetries, 1)
}

func TestLoad_TestEnvPicksTestDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL_TEST", "sqlite:test.db")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("DIVIDEND_DISTRIBUTION_CRON", " 0 2 1 * * ")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:test.db", cfg.DatabaseURL)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "0 2 1 * *", cfg.DividendCron)
	assert.Equal(t, "http://collector:4318", cfg.OtelEndpoint)
}
