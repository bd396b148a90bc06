package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/naffle-labs/allowlist-engine/internal/config"
	"github.com/naffle-labs/allowlist-engine/internal/handlers"
	"github.com/naffle-labs/allowlist-engine/internal/middleware"
)

// HandlerDependencies bundles the handlers wired in main
type HandlerDependencies struct {
	CampaignHandler *handlers.CampaignHandler
	DrawHandler     *handlers.DrawHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.LoggerMiddleware())

	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		campaigns := public.Group("/campaigns")
		{
			campaigns.POST("", deps.CampaignHandler.CreateCampaign)
			campaigns.GET("/:id", deps.CampaignHandler.GetCampaign)
			campaigns.POST("/:id/tickets", deps.CampaignHandler.PurchaseTicket)
			campaigns.GET("/:id/winners", deps.CampaignHandler.GetWinners)
		}
	}

	// Operator routes: manual draw transitions are money-affecting.
	operator := router.Group("/api/v1")
	operator.Use(middleware.JWTAuthMiddleware(cfg))
	{
		operator.PUT("/campaigns/:id/payment", deps.CampaignHandler.UpdatePaymentTerms)
		operator.GET("/draws/drawing", deps.DrawHandler.ListDrawing)
		operator.POST("/campaigns/:id/draw/cancel", deps.DrawHandler.CancelDraw)
		operator.POST("/campaigns/:id/draw/expire", deps.DrawHandler.ExpireDraw)
		operator.POST("/campaigns/:id/draw/fail", deps.DrawHandler.FailDraw)
	}

	return router
}
