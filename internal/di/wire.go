//go:build wireinject
// +build wireinject

package di

import (
	"IndiCache/pkg/config"
	"IndiCache/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Persistence backends
		ProvideStores,
		ProvideCohortProvider,
		ProvideLockService,
		ProvideReportPublisher,

		// Engine
		ProvidePlugins,
		ProvideOrchestrator,
		ProvideMetaManager,
		ProvideBatch,
		ProvideMaintainer,

		// HTTP surface
		ProvideStatusHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
