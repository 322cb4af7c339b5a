package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"organic-hub/common/auth"
	apperrors "organic-hub/common/errors"
	"organic-hub/common/logger"
	commonmw "organic-hub/common/middleware"
	"organic-hub/controllers"
	"organic-hub/database"
	"organic-hub/events"
	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
	dynamopkg "organic-hub/pkg/dynamodb"
	"organic-hub/pkg/localstore"
	"organic-hub/repository"
	"organic-hub/routes"
	"organic-hub/services"
)

const serviceName = "organic-hub"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.Initialize(getEnv("ENV", "development"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, err := awspkg.LoadConfig(ctx, cfg.AWSOptions())
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	if cfg.CloudWatchEnabled {
		sink, err := awspkg.NewLogsWriter(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Warn("CloudWatch Logs disabled", zap.Error(err))
		} else if log, err = logger.Initialize(cfg.Env, sink); err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	metrics := awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)

	// --- storage ---

	db, err := database.ConnectPostgres(ctx, cfg.Postgres, log, 5)
	if db == nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err != nil {
		log.Warn("Starting without database, orders will be stored locally", zap.Error(err))
	}
	go database.MigrateWhenReady(ctx, db, log, 15*time.Second, models.Migrate)

	cartRedis, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if cartRedis == nil {
		log.Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	if err != nil {
		log.Warn("Cart redis unreachable", zap.Error(err))
	}

	cacheRedis, productCache := newProductCache(cfg, log)

	store, err := localstore.Open(cfg.FallbackStorePath)
	if err != nil {
		log.Fatal("Failed to open fallback store", zap.String("path", cfg.FallbackStorePath), zap.Error(err))
	}
	fallback := repository.NewFallbackOrderStore(store)

	ddb := dynamopkg.NewClient(awsCfg)
	if err := dynamopkg.EnsureTable(ctx, ddb, cfg.WishlistTable, "user_id", "product_id"); err != nil {
		log.Warn("Wishlist table not ready", zap.String("table", cfg.WishlistTable), zap.Error(err))
	}

	productRepo := repository.NewGormProductRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	cartRepo := repository.NewRedisCartRepository(cartRedis, cfg.CartTTL)
	wishlistRepo := repository.NewDynamoWishlistRepository(ddb, cfg.WishlistTable)

	publisher := newPublisher(cfg, awsCfg, log)
	defer publisher.Close()

	var uploader services.ImageUploader
	if cfg.S3Bucket != "" {
		uploader = awspkg.NewImageUploader(awsCfg, cfg.S3Bucket, cfg.S3PublicURL, 15*time.Minute)
	}

	// --- services ---

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	productService := services.NewProductService(productRepo, productCache, uploader, log)
	cartService := services.NewCartService(cartRepo, productService, metrics, log)
	orderService := services.NewOrderService(orderRepo, userRepo, cartRepo, cartService, productCache, fallback, publisher, metrics, services.OrderConfig{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
	}, log)
	authService := services.NewAuthService(userRepo, tokens, nil, log)
	wishlistService := services.NewWishlistService(wishlistRepo, productService, cartService, log)
	dashboardService := services.NewDashboardService(orderRepo, productRepo, userRepo, fallback, cfg.LowStockThreshold, log)

	var gateway services.PaymentGateway
	if services.IsDemoKey(cfg.StripeAPIKey) {
		log.Warn("No Stripe key configured, using demo payments")
		gateway = services.NewDemoGateway(cfg.Currency)
	} else {
		gateway = services.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.Currency)
	}
	paymentService := services.NewPaymentService(gateway, orderService, services.PaymentConfig{
		Currency:       cfg.Currency,
		PublishableKey: cfg.StripePublishableKey,
	}, log)

	// --- background workers ---

	if cfg.PaymentQueueURL != "" {
		consumer := services.NewPaymentEventConsumer(awspkg.NewSQSConsumer(awsCfg, cfg.PaymentQueueURL, log), paymentService, log)
		go consumer.Start(ctx)
	}
	go services.NewOrderReplayer(orderRepo, fallback, productCache, metrics, log).Run(ctx, cfg.ReplayInterval)
	go func() {
		adminCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := authService.EnsureAdmin(adminCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Warn("Admin bootstrap skipped", zap.Error(err))
		}
	}()

	limiter := commonmw.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, 10*time.Minute)
	go limiter.RunSweeper(ctx)

	// --- HTTP ---

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		commonmw.RequestLogger(log),
		commonmw.SecurityHeaders(),
		commonmw.CORS(cfg.AllowedOrigins),
		commonmw.RateLimit(limiter),
		commonmw.Timeout(30*time.Second),
		commonmw.Metrics(metrics, serviceName),
		apperrors.ErrorMiddleware(),
	)

	routes.RegisterRoutes(r, routes.Controllers{
		Auth:     controllers.NewAuthController(authService, log),
		Product:  controllers.NewProductController(productService, log),
		Cart:     controllers.NewCartController(cartService, log),
		Order:    controllers.NewOrderController(orderService, log),
		Wishlist: controllers.NewWishlistController(wishlistService, log),
		Payment:  controllers.NewPaymentController(paymentService, log),
		Admin:    controllers.NewAdminController(dashboardService, log),
	}, tokens)
	r.GET("/health", healthHandler(db, cartRedis, fallback))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Organic Hub API starting", zap.String("port", cfg.Port), zap.String("payments", gateway.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Organic Hub API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	closeAll(log,
		named{"cart redis", cartRedis},
		named{"cache redis", cacheRedis},
	)
	if err := database.Close(db); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
	log.Info("Organic Hub API stopped gracefully")
}

// newProductCache connects the catalog cache. An unparsable URL disables it.
func newProductCache(cfg *Config, log *zap.Logger) (io.Closer, services.ProductCache) {
	url := cfg.CacheRedisURL
	if url == "" {
		url = cfg.RedisURL
	}
	opts, err := redisv8.ParseURL(url)
	if err != nil {
		log.Warn("Invalid CACHE_REDIS_URL, catalog cache disabled", zap.Error(err))
		return nil, services.NopCache{}
	}
	client := redisv8.NewClient(opts)
	return client, services.NewCacheManager(client, cfg.CacheTTL, log)
}

func newPublisher(cfg *Config, awsCfg sdkaws.Config, log *zap.Logger) events.Publisher {
	switch cfg.EventBackend {
	case "sns":
		log.Info("Publishing order events to SNS", zap.String("topic", cfg.OrderTopicARN))
		return events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.OrderTopicARN)
	case "kafka":
		log.Info("Publishing order events to Kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
	default:
		return events.NewLogPublisher(log)
	}
}

func healthHandler(db *gorm.DB, cartRedis *redis.Client, fallback *repository.FallbackOrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		deps := gin.H{"database": "up", "redis": "up"}
		status := "OK"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			deps["database"] = "down"
			status = "DEGRADED"
		}
		if err := cartRedis.Ping(ctx).Err(); err != nil {
			deps["redis"] = "down"
			status = "DEGRADED"
		}
		pending, _ := fallback.All()

		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"dependencies": deps,
			"pending_sync": len(pending),
		})
	}
}

type named struct {
	name string
	c    io.Closer
}

func closeAll(log *zap.Logger, closers ...named) {
	for _, n := range closers {
		if n.c == nil {
			continue
		}
		if err := n.c.Close(); err != nil {
			log.Error("Failed to close "+n.name, zap.Error(err))
		}
	}
}
