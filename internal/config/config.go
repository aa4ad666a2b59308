package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	LogLevel            string
	Currency            string // ISO 4217 code used in user-facing amounts (default ETB)
	DividendCron        string // DIVIDEND_DISTRIBUTION_CRON; empty disables scheduled distribution
	LoginRatePerMinute  int
	SettlementRetries   int    // attempts per settlement on optimistic lock conflicts
	OtelEndpoint        string // OTEL_EXPORTER_OTLP_ENDPOINT; empty keeps the no-op tracer
	SendinblueAPIKey    string // member notification emails; empty disables them
	MailFrom            string
	SaccoName           string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CURRENCY", "ETB")
	viper.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	viper.SetDefault("SETTLEMENT_MAX_RETRIES", 5)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	retries := viper.GetInt("SETTLEMENT_MAX_RETRIES")
	if retries < 1 {
		retries = 1
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		Currency:            strings.ToUpper(viper.GetString("CURRENCY")),
		DividendCron:        strings.TrimSpace(viper.GetString("DIVIDEND_DISTRIBUTION_CRON")),
		LoginRatePerMinute:  viper.GetInt("LOGIN_RATE_PER_MINUTE"),
		SettlementRetries:   retries,
		OtelEndpoint:        viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SendinblueAPIKey:    viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		SaccoName:           viper.GetString("SACCO_NAME"),
	}, nil
}
