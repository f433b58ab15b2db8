package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	catalogapp "github.com/resell/backend/internal/application/catalog"
	syncapp "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared"
	domainsync "github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/cache"
	"github.com/resell/backend/internal/infrastructure/config"
	"github.com/resell/backend/internal/infrastructure/dispatcher"
	"github.com/resell/backend/internal/infrastructure/ecommerce"
	"github.com/resell/backend/internal/infrastructure/logger"
	"github.com/resell/backend/internal/infrastructure/persistence"
	"github.com/resell/backend/internal/interfaces/http/handler"
	"github.com/resell/backend/internal/interfaces/http/middleware"
	"github.com/resell/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Resell Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	jobRepo := persistence.NewGormJobRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	actionRepo := persistence.NewGormActionTypeRepository(db.DB)
	mappingRepo := persistence.NewGormCategoryMappingRepository(db.DB)
	productRepo := persistence.NewGormProductRecordRepository(db.DB)

	// Seed the action catalog; existing rows win over defaults
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := actionRepo.Seed(seedCtx, domainsync.DefaultActionTypes()); err != nil {
		seedCancel()
		log.Fatal("Failed to seed action catalog", zap.Error(err))
	}
	seedCancel()

	// Redis backs the dispatch clock and idempotency reservations. Without
	// it a single instance falls back to in-process equivalents.
	var (
		clock       cache.DispatchClock
		idempotency shared.IdempotencyStore
	)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory pacing and deduplication",
			zap.String("addr", cfg.Redis.Addr()),
			zap.Error(err),
		)
		clock = cache.NewInMemoryDispatchClock()
		idempotency = cache.NewInMemoryIdempotencyStore()
	} else {
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
		clock = cache.NewRedisDispatchClock(redisClient, cfg.App.Name)
		idempotency = cache.NewRedisIdempotencyStoreWithClient(redisClient, cfg.App.Name)
	}
	pingCancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()

	// Marketplace adapters
	registry := ecommerce.NewStaticRegistry()
	registerAdapters(registry, cfg, log)

	// Payload construction and category mapping
	mappingService := catalogapp.NewMappingService(mappingRepo, log)
	payloadBuilder := catalogapp.NewListingPayloadBuilder(productRepo, mappingService, log)

	executors, err := dispatcher.NewExecutorSet(dispatcher.NewAdapterExecutor(registry))
	if err != nil {
		log.Fatal("Failed to build executor set", zap.Error(err))
	}

	// Dispatcher and sweeper
	var disp *dispatcher.Dispatcher
	if cfg.Dispatcher.Enabled {
		disp, err = dispatcher.NewDispatcher(
			dispatcher.Config{
				Workers:        cfg.Dispatcher.Workers,
				QueueSize:      cfg.Dispatcher.QueueSize,
				PollInterval:   cfg.Dispatcher.PollInterval,
				ClaimBatchSize: cfg.Dispatcher.ClaimBatchSize,
				BackoffCap:     cfg.Dispatcher.BackoffCap,
				IdempotencyTTL: cfg.Dispatcher.IdempotencyTTL,
			},
			jobRepo, taskRepo, batchRepo, actionRepo,
			executors, payloadBuilder, clock, idempotency, log,
		)
		if err != nil {
			log.Fatal("Failed to create dispatcher", zap.Error(err))
		}
		if err := disp.Start(context.Background()); err != nil {
			log.Fatal("Failed to start dispatcher", zap.Error(err))
		}
		log.Info("Dispatcher started", zap.Int("workers", cfg.Dispatcher.Workers))
	}

	var sweeper *dispatcher.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper, err = dispatcher.NewSweeper(
			dispatcher.SweeperConfig{
				Interval:  cfg.Sweeper.Interval,
				BatchSize: cfg.Sweeper.BatchSize,
			},
			jobRepo, batchRepo, log,
		)
		if err != nil {
			log.Fatal("Failed to create sweeper", zap.Error(err))
		}
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sweeper", zap.Error(err))
		}
		log.Info("Sweeper started", zap.Duration("interval", cfg.Sweeper.Interval))
	}

	// Application services
	var notifier syncapp.DispatchNotifier
	if disp != nil {
		notifier = disp
	}
	syncService := syncapp.NewSyncService(jobRepo, taskRepo, batchRepo, actionRepo, notifier, log)

	// HTTP handlers
	var stats handler.StatsProvider
	if disp != nil {
		stats = disp
	}
	syncHandler := handler.NewSyncHandler(syncService, stats)
	catalogHandler := handler.NewCatalogHandler(mappingService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Tenant - Resolve the tenant for API routes
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	tenantConfig := middleware.TenantMiddlewareConfig{
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
			"/api/v1/system",
		},
		Required: true,
		Logger:   log,
	}
	engine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/jobs", syncHandler.SubmitJob)
	syncRoutes.GET("/jobs", syncHandler.ListJobs)
	syncRoutes.GET("/jobs/:id", syncHandler.GetJob)
	syncRoutes.POST("/jobs/:id/cancel", syncHandler.CancelJob)
	syncRoutes.POST("/jobs/:id/pause", syncHandler.PauseJob)
	syncRoutes.POST("/jobs/:id/resume", syncHandler.ResumeJob)
	syncRoutes.GET("/jobs/:id/tasks", syncHandler.ListJobTasks)
	syncRoutes.POST("/batches", syncHandler.SubmitBatch)
	syncRoutes.GET("/batches/:batch_id", syncHandler.GetBatch)
	syncRoutes.POST("/batches/:batch_id/cancel", syncHandler.CancelBatch)
	syncRoutes.GET("/actions", syncHandler.ListActionTypes)
	syncRoutes.GET("/stats", syncHandler.GetStats)

	catalogRoutes := router.NewDomainGroup("catalog", "/catalog")
	catalogRoutes.GET("/resolve", catalogHandler.ResolveCategory)
	catalogRoutes.GET("/mappings/validate", catalogHandler.ValidateDefaults)
	catalogRoutes.POST("/mappings/reload", catalogHandler.ReloadMappings)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(syncRoutes).
		Register(catalogRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background workers after the HTTP surface is drained
	if sweeper != nil {
		if err := sweeper.Stop(ctx); err != nil {
			log.Error("Sweeper forced to stop", zap.Error(err))
		}
	}
	if disp != nil {
		if err := disp.Stop(ctx); err != nil {
			log.Error("Dispatcher forced to stop", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// registerAdapters wires every marketplace with credentials configured
func registerAdapters(registry *ecommerce.StaticRegistry, cfg *config.Config, log *zap.Logger) {
	if cfg.Marketplaces.Vinted.Enabled {
		vintedCfg := ecommerce.NewVintedConfig(
			cfg.Marketplaces.Vinted.SessionCookie,
			cfg.Marketplaces.Vinted.CSRFToken,
		)
		adapter, err := ecommerce.NewVintedAdapter(vintedCfg)
		if err != nil {
			log.Fatal("Failed to configure Vinted adapter", zap.Error(err))
		}
		registry.Register(adapter)
		log.Info("Marketplace adapter registered", zap.String("marketplace", string(marketplace.CodeVinted)))
	}

	if cfg.Marketplaces.Ebay.Enabled {
		ebayCfg := ecommerce.NewEbayConfig(
			cfg.Marketplaces.Ebay.ClientID,
			cfg.Marketplaces.Ebay.ClientSecret,
			cfg.Marketplaces.Ebay.AccessToken,
		)
		if cfg.Marketplaces.Ebay.MarketplaceID != "" {
			ebayCfg.MarketplaceID = cfg.Marketplaces.Ebay.MarketplaceID
		}
		if cfg.Marketplaces.Ebay.Sandbox {
			ebayCfg.IsSandbox = true
			ebayCfg.APIBaseURL = ecommerce.EbaySandboxAPIURL
		}
		adapter, err := ecommerce.NewEbayAdapter(ebayCfg)
		if err != nil {
			log.Fatal("Failed to configure eBay adapter", zap.Error(err))
		}
		registry.Register(adapter)
		log.Info("Marketplace adapter registered", zap.String("marketplace", string(marketplace.CodeEbay)))
	}

	if cfg.Marketplaces.Etsy.Enabled {
		etsyCfg := ecommerce.NewEtsyConfig(
			cfg.Marketplaces.Etsy.APIKey,
			cfg.Marketplaces.Etsy.AccessToken,
			cfg.Marketplaces.Etsy.ShopID,
		)
		adapter, err := ecommerce.NewEtsyAdapter(etsyCfg)
		if err != nil {
			log.Fatal("Failed to configure Etsy adapter", zap.Error(err))
		}
		registry.Register(adapter)
		log.Info("Marketplace adapter registered", zap.String("marketplace", string(marketplace.CodeEtsy)))
	}
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
