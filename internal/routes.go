package internal

import (
	"net/http"

	"tallyd/internal/controllers"
	"tallyd/internal/providers"
	"tallyd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/aggregate", http.HandlerFunc(apiController.GetAggregate))
	routers.Get("/session", http.HandlerFunc(apiController.GetOpenSession))
	routers.Get("/leaderboard", http.HandlerFunc(apiController.GetLeaderboard))
	routers.Get("/heatmap", http.HandlerFunc(apiController.GetHeatmap))
	routers.Post("/events", http.HandlerFunc(apiController.ReceiveEvents))
	routers.Post("/config/guild", http.HandlerFunc(apiController.SetGuildConfig))
	routers.Post("/config/optout", http.HandlerFunc(apiController.SetOptOut))
	routers.Delete("/aggregate", http.HandlerFunc(apiController.EraseAggregate))
	return routers
}
