// server/internal/api/routes/routes.go
package routes

import (
	"github.com/freightbid/bidding-api/config"
	"github.com/freightbid/bidding-api/internal/api/handlers"
	"github.com/freightbid/bidding-api/internal/api/middleware"
	"github.com/freightbid/bidding-api/internal/auction"
	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/socket"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter wires handlers to routes.
func SetupRouter(
	cfg config.Config,
	bids *auction.BidService,
	lifecycle *auction.LifecycleService,
	negotiation *auction.NegotiationService,
	assignments store.AssignmentStore,
	wsHub *socket.Hub,
	log *logrus.Logger,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	bidHandler := &handlers.BidHandler{Bids: bids, Assignments: assignments, Log: log}
	loadHandler := &handlers.LoadHandler{Lifecycle: lifecycle, Log: log}
	negotiationHandler := &handlers.NegotiationHandler{Negotiation: negotiation, Log: log}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, Secret: cfg.JWT.Secret, Log: log}

	apiV1 := router.Group("/api/v1")
	{
		// WebSocket authenticates via query token, not the middleware.
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		authenticated := apiV1.Group("/")
		authenticated.Use(middleware.Authenticate(cfg.JWT.Secret))
		{
			// Transporter surface.
			bidRoutes := authenticated.Group("/bids")
			bidRoutes.Use(middleware.Authorize(models.RoleTransporter))
			{
				bidRoutes.POST("/:loadID/rates", bidHandler.SubmitRate)
				bidRoutes.GET("/:loadID/lowest", bidHandler.GetLowest)
				bidRoutes.GET("/:loadID/rates/history", bidHandler.GetRateHistory)
				bidRoutes.POST("/:loadID/terms/accept", bidHandler.AcceptTerms)
				bidRoutes.POST("/:loadID/match/respond", negotiationHandler.Respond)
				bidRoutes.GET("/:loadID/assignment/history", negotiationHandler.AssignmentHistory)
			}

			// Shipper and operator surface.
			loadRoutes := authenticated.Group("/loads")
			loadRoutes.Use(middleware.Authorize(models.RoleShipper, models.RoleOperator))
			{
				loadRoutes.POST("", loadHandler.CreateLoad)
				loadRoutes.GET("", loadHandler.List)
				loadRoutes.POST("/:loadID/publish", loadHandler.Publish)
				loadRoutes.POST("/:loadID/cancel", loadHandler.Cancel)
				loadRoutes.POST("/:loadID/complete", loadHandler.Complete)
				loadRoutes.POST("/:loadID/epod", loadHandler.MarkEpod)
				loadRoutes.POST("/:loadID/assign", negotiationHandler.Assign)
				loadRoutes.POST("/:loadID/unassign", negotiationHandler.Unassign)
				loadRoutes.POST("/:loadID/match", negotiationHandler.RequestPriceMatch)
			}

			// Assignment audit is visible to all parties on the load.
			authenticated.GET("/loads/:loadID/assignment/history", negotiationHandler.AssignmentHistory)
		}
	}

	return router
}
