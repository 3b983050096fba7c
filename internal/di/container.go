// Package di provides dependency injection configuration for feedtriage.
package di

import (
	"github.com/samber/do/v2"

	"github.com/gauthierbraillon/feedtriage/internal/config"
	"github.com/gauthierbraillon/feedtriage/internal/di/providers"
	"github.com/gauthierbraillon/feedtriage/internal/logger"
)

// NewContainer creates the DI container with configuration loaded from the
// environment.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	register(injector)
	return injector
}

// NewContainerWithConfig creates the DI container around an existing
// configuration.
func NewContainerWithConfig(cfg *config.Config) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	register(injector)
	return injector
}

// Services are resolved lazily, so commands that never touch the network
// never need a token.
func register(injector *do.RootScope) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideLogger)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenStorage)
	do.Provide(injector, providers.ProvideOAuthFlow)
	do.Provide(injector, providers.ProvideAuthorizedClient)

	// Remote services
	do.Provide(injector, providers.ProvideYouTubeClient)
	do.Provide(injector, providers.ProvideDriveStore)

	// Local state
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideSession)
	do.Provide(injector, providers.ProvideFeedBuilder)
}

// Shutdown shuts the container down and returns the report as an error when
// any service failed to stop, after logging it. A session that could not
// flush its last save shows up here.
func Shutdown(injector *do.RootScope) error {
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		log = logger.Discard()
	}

	report := injector.Shutdown()
	if report.Succeed {
		return nil
	}
	log.Error("Shutdown failed", "error", report.Error())
	return report
}
