package bootstrap

import (
	"os"
	"strings"
	"time"

	"sacco-backend/internal/config"
	"sacco-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogging sets the global zerolog level from LOG_LEVEL and switches
// to human-readable console output outside production.
func ConfigureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// New creates the Fiber app for serverless hosts (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ConfigureLogging(cfg)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
