//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"tallyd/internal"
	"tallyd/internal/adapter"
	"tallyd/internal/controllers"
	"tallyd/internal/engine"
	"tallyd/internal/persistence"
	"tallyd/internal/providers"
	"tallyd/internal/services"
	"tallyd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		services.NewConfigService,
		services.NewAggregateService,
		persistence.NewAggregateWriter,

		engine.NewSessionTracker,
		engine.NewWindowStore,
		engine.NewStatsSource,
		engine.NewEngine,

		adapter.NewDiscordAdapter,
		wire.Bind(new(engine.PresenceChecker), new(*adapter.DiscordAdapter)),
		wire.Bind(new(persistence.SessionSource), new(*engine.SessionTracker)),

		persistence.NewZstdCompressor,
		persistence.NewFileManager,
		persistence.NewScheduler,

		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
