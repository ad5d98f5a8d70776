//go:build wireinject
// +build wireinject

package di

import (
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/quotes"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideTieredCache,
		ProvideSnapshotPublisher,

		// Repositories and collaborators
		ProvideSeriesStore,
		ProvideBreaker,
		ProvideQuoteStream,
		ProvideQuoteProvider,
		wire.Bind(new(domrepo.QuoteProvider), new(*quotes.Provider)),

		// Use cases
		ProvideConsolidation,

		// HTTP and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
