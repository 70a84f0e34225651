package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adlaunch/backend/internal/config"
	"github.com/adlaunch/backend/internal/db"
	"github.com/adlaunch/backend/internal/events"
	apphttp "github.com/adlaunch/backend/internal/http"
	"github.com/adlaunch/backend/internal/http/handlers"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/adlaunch/backend/internal/services"
	"github.com/adlaunch/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	campaignRepo := repositories.NewCampaignRepo(pool)
	adRepo := repositories.NewAdRepo(pool)
	connectionRepo := repositories.NewConnectionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	platform := services.NewPlatformClient(cfg.AdPlatformAPIURL, cfg.PlatformTimeout, log)
	campaignValidator := services.NewCampaignValidator(cfg.MinDailyBudget)
	fundingValidator := services.NewFundingValidator(platform, cfg.PlatformTimeout, cfg.SpendCapLowThresholdMinor, log)
	adminResolver := services.NewAdminAccessResolver(platform, cfg.PlatformTimeout, log)

	campaignService := services.NewCampaignService(campaignRepo, adRepo, auditRepo, campaignValidator, log)
	connectionService := services.NewConnectionService(connectionRepo, campaignRepo, adRepo, auditRepo, fundingValidator, adminResolver, publisher, log)
	adService := services.NewAdService(adRepo, campaignRepo, connectionRepo, auditRepo, platform, publisher, log)
	publishService := services.NewPublishService(adRepo, campaignRepo, connectionRepo, auditRepo, campaignValidator, fundingValidator, platform, publisher,
		services.PublishOptions{Timeout: cfg.PlatformTimeout, Simulate: cfg.SimulatePublish}, log)

	// Handlers
	campaignHandler := handlers.NewCampaignHandler(campaignService, connectionService, log)
	connectionHandler := handlers.NewConnectionHandler(connectionService, log)
	adHandler := handlers.NewAdHandler(adService, publishService, log)
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, campaignHandler, connectionHandler, adHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
