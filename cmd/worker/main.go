package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adlaunch/backend/internal/config"
	"github.com/adlaunch/backend/internal/db"
	"github.com/adlaunch/backend/internal/events"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/adlaunch/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const batchSize = 100

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	campaignRepo := repositories.NewCampaignRepo(pool)
	adRepo := repositories.NewAdRepo(pool)
	connectionRepo := repositories.NewConnectionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	platform := services.NewPlatformClient(cfg.AdPlatformAPIURL, cfg.PlatformTimeout, log)
	campaignValidator := services.NewCampaignValidator(cfg.MinDailyBudget)
	fundingValidator := services.NewFundingValidator(platform, cfg.PlatformTimeout, cfg.SpendCapLowThresholdMinor, log)
	adminResolver := services.NewAdminAccessResolver(platform, cfg.PlatformTimeout, log)
	connectionService := services.NewConnectionService(connectionRepo, campaignRepo, adRepo, auditRepo, fundingValidator, adminResolver, publisher, log)
	publishService := services.NewPublishService(adRepo, campaignRepo, connectionRepo, auditRepo, campaignValidator, fundingValidator, platform, publisher,
		services.PublishOptions{Timeout: cfg.PlatformTimeout, Simulate: cfg.SimulatePublish}, log)

	// Health endpoint
	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db_unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("health server error", zap.Error(err))
		}
	}()
	defer health.Shutdown()

	log.Info("worker started")

	// Run jobs on tickers
	fundingTicker := time.NewTicker(cfg.FundingRecheckInterval)
	adminTicker := time.NewTicker(cfg.AdminRecheckInterval)
	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	reviewTicker := time.NewTicker(cfg.ReviewSyncInterval)
	defer fundingTicker.Stop()
	defer adminTicker.Stop()
	defer reconcileTicker.Stop()
	defer reviewTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-fundingTicker.C:
			runJob(ctx, "funding_recheck", log, func(ctx context.Context) (int, error) {
				return connectionService.RecheckFunding(ctx, batchSize)
			})
		case <-adminTicker.C:
			runJob(ctx, "admin_recheck", log, func(ctx context.Context) (int, error) {
				return connectionService.RecheckAdmin(ctx, batchSize)
			})
		case <-reconcileTicker.C:
			runJob(ctx, "publish_reconcile", log, func(ctx context.Context) (int, error) {
				return publishService.Reconcile(ctx, cfg.ReconcileGrace, batchSize)
			})
		case <-reviewTicker.C:
			runJob(ctx, "review_sync", log, func(ctx context.Context) (int, error) {
				return publishService.SyncReviewStatuses(ctx, batchSize)
			})
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runJob(ctx context.Context, name string, log *zap.Logger, job func(context.Context) (int, error)) {
	started := time.Now()
	n, err := job(ctx)
	if err != nil {
		log.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("job done",
			zap.String("job", name),
			zap.Int("processed", n),
			zap.Duration("took", time.Since(started)),
		)
	}
}
