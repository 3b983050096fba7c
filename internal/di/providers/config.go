// Package providers contains dependency injection providers for feedtriage.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})

	log.Debug("Starting feedtriage",
		"config_dir", cfg.ConfigDir,
		"log_level", cfg.LogLevel,
	)

	return log, nil
}
