package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"level-publish-system/auth"
	"level-publish-system/config"
	"level-publish-system/docstore"
	"level-publish-system/handlers"
	"level-publish-system/logger"
	"level-publish-system/middleware"
	"level-publish-system/models"
	"level-publish-system/monitoring"
	"level-publish-system/services"
	"level-publish-system/submission"
	"level-publish-system/utils"
	"level-publish-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("invalid config:\n", err)
	}

	logger.Init(cfg.Log)
	defer logger.Sync()
	monitoring.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Level{},
		&models.Like{},
		&models.Profile{},
	); err != nil {
		logger.Log.Fatal("failed to migrate database", zap.Error(err))
	}

	var r2 *utils.R2
	if cfg.R2.Enabled() {
		if r2, err = utils.NewR2(ctx, cfg.R2); err != nil {
			logger.Log.Fatal("failed to initialize R2 client", zap.Error(err))
		}
	}

	docs, err := openDocStore(cfg, r2)
	if err != nil {
		logger.Log.Fatal("failed to open document store", zap.Error(err))
	}
	validator, err := submission.NewValidator()
	if err != nil {
		logger.Log.Fatal("failed to compile action schemas", zap.Error(err))
	}

	levelService := services.NewLevelService(db, cfg.Levels.EnforceOwnership)
	levelService.Docs = docs
	socialService := services.NewSocialService(db)
	profileService := services.NewProfileService(db, r2)

	var mirrorTo *services.LevelService
	if cfg.Ingest.MirrorToDatabase {
		mirrorTo = levelService
	}
	ingestService := services.NewIngestService(docs, validator, mirrorTo)
	webhookService := services.NewWebhookService(ingestService, cfg.Ingest.WebhookSecret)

	var authClient *auth.ServiceClient
	if cfg.Gateway.AuthServiceURL != "" {
		authClient = auth.NewServiceClient(cfg.Gateway.AuthServiceURL, cfg.Gateway.ServiceToken)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	allowedOrigins := strings.Join(cfg.Server.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Session-Token, X-Service-Token, X-Device-ID, X-User-ID, X-User-Name",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(monitoring.MetricsMiddleware())

	// Routes registered before the gateway check are reachable directly.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", monitoring.PrometheusHandler())
	handlers.SetupWebhookRoutes(app, webhookService)

	app.Use(middleware.GatewayAuthMiddleware(cfg.Gateway.ServiceToken))
	app.Use(middleware.UserContextMiddleware())
	app.Use(middleware.SessionAuthMiddleware(authClient))

	handlers.SetupLevelRoutes(app, levelService, socialService)
	handlers.SetupUserRoutes(app, profileService, levelService)

	sched, err := levelService.StartPublishScheduler(ctx, cfg.Scheduler.Interval)
	if err != nil {
		logger.Log.Fatal("failed to start publish scheduler", zap.Error(err))
	}

	if cfg.Ingest.MirrorToDatabase && cfg.Ingest.ReconcileInterval > 0 {
		workers.NewReconcileWorker(docs, levelService, cfg.Ingest.ReconcileInterval).Start(ctx)
	}

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Log.Info("✅ Server running", zap.String("port", cfg.Server.Port))
	logger.Log.Info("✅ Document store ready", zap.String("backend", cfg.DocStore.Backend))
	logger.Log.Info("✅ GatewayAuthMiddleware enforced for API routes")
	logger.Log.Info("✅ CORS configured", zap.String("origins", allowedOrigins))

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Warn("server shutdown", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Log.Warn("scheduler shutdown", zap.Error(err))
	}
}

// openDocStore picks the document store backend named in config.
func openDocStore(cfg *config.Config, r2 *utils.R2) (*docstore.Repository, error) {
	var backend docstore.Backend
	switch cfg.DocStore.Backend {
	case config.DocStoreR2:
		backend = docstore.NewR2Backend(r2.Client, r2.Bucket, cfg.DocStore.ObjectKey)
	default:
		if err := utils.EnsureDir(cfg.DocStore.Path); err != nil {
			return nil, err
		}
		backend = docstore.NewFileBackend(cfg.DocStore.Path)
	}
	return docstore.NewRepository(backend, cfg.DocStore.MaxAttempts), nil
}
