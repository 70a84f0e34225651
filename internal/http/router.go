package http

import (
	"time"

	"github.com/adlaunch/backend/internal/config"
	"github.com/adlaunch/backend/internal/http/handlers"
	"github.com/adlaunch/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	campaignHandler *handlers.CampaignHandler,
	connectionHandler *handlers.ConnectionHandler,
	adHandler *handlers.AdHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/goals", metaHandler.GetGoals)
	api.Get("/meta/ad-statuses", metaHandler.GetAdStatuses)

	// Protected endpoints
	protected := api.Group("",
		middleware.AuthMiddleware(cfg.JWTSecret, log),
		middleware.RateLimitMiddleware(rdb, "api", cfg.RateLimitPerMinute, time.Minute),
	)

	// Platform writes and verifications share a tighter bucket
	platformLimit := middleware.RateLimitMiddleware(rdb, "platform", max(cfg.RateLimitPerMinute/5, 1), time.Minute)

	// Campaigns
	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Get("/campaigns", campaignHandler.ListCampaigns)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Put("/campaigns/:id", campaignHandler.UpdateCampaign)
	protected.Delete("/campaigns/:id", campaignHandler.DeleteCampaign)
	protected.Put("/campaigns/:id/setup", campaignHandler.UpdateSetup)
	protected.Get("/campaigns/:id/readiness", campaignHandler.Readiness)

	// Ad platform connection
	protected.Get("/campaigns/:id/connection", connectionHandler.GetConnection)
	protected.Put("/campaigns/:id/connection", connectionHandler.Connect)
	protected.Delete("/campaigns/:id/connection", connectionHandler.Disconnect)
	protected.Put("/campaigns/:id/connection/assets", connectionHandler.SelectAssets)
	protected.Post("/campaigns/:id/connection/verify-funding", platformLimit, connectionHandler.VerifyFunding)
	protected.Post("/campaigns/:id/connection/verify-admin", platformLimit, connectionHandler.VerifyAdmin)

	// Ads
	protected.Post("/campaigns/:id/ads", adHandler.CreateAd)
	protected.Get("/campaigns/:id/ads", adHandler.ListAds)
	protected.Get("/ads/:id", adHandler.GetAd)
	protected.Get("/ads/:id/can-publish", platformLimit, adHandler.CanPublish)
	protected.Post("/ads/:id/publish", platformLimit, adHandler.Publish)
	protected.Post("/ads/:id/pause", platformLimit, adHandler.PauseAd)
	protected.Post("/ads/:id/resume", platformLimit, adHandler.ResumeAd)
	protected.Post("/ads/:id/archive", platformLimit, adHandler.ArchiveAd)
	protected.Post("/ads/:id/draft", adHandler.ReturnToDraft)
	protected.Put("/ads/:id/selection", adHandler.UpdateSelection)
	protected.Delete("/ads/:id", platformLimit, adHandler.DeleteAd)
	protected.Get("/ads/:id/events", adHandler.GetAdEvents)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
