package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goride-wallet/internal/config"
	handlers "goride-wallet/internal/handlers/shared"
	"goride-wallet/internal/middleware"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/internal/repositories/memory"
	"goride-wallet/internal/repositories/mongodb"
	"goride-wallet/internal/services"
	"goride-wallet/pkg/cache"
	"goride-wallet/pkg/database"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
	"goride-wallet/pkg/payment"
	"goride-wallet/routes"
)

type repositories struct {
	wallets     interfaces.WalletRepository
	withdrawals interfaces.WithdrawalRepository
	drivers     interfaces.DriverRepository
	plans       interfaces.PlanRepository
	transactor  interfaces.Transactor
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		Caller:  cfg.App.Debug,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	walletMetrics := metrics.NewMetrics(registry)

	repos, err := openRepositories(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer repos.close()

	// Redis is an optional fast path: webhook dedupe and wallet_updates fan-out.
	var deduper services.Deduper
	var publisher services.Publisher
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without dedupe cache and realtime updates")
		} else {
			defer redisCache.Close()
			deduper = redisCache
			publisher = redisCache
		}
	}

	providers := paymentProviders(cfg.Payment, log)

	withdrawalService := services.NewWithdrawalService(services.WithdrawalServiceDeps{
		Wallets:     repos.wallets,
		Withdrawals: repos.withdrawals,
		Transactor:  repos.transactor,
		Config:      cfg.Wallet,
		Publisher:   publisher,
		Metrics:     walletMetrics,
		Logger:      log,
	})
	planService := services.NewPlanService(services.PlanServiceDeps{
		Wallets: repos.wallets,
		Drivers: repos.drivers,
		Plans:   repos.plans,
		Config:  cfg.Wallet,
		Metrics: walletMetrics,
		Logger:  log,
	})
	walletService := services.NewWalletService(services.WalletServiceDeps{
		Wallets:         repos.wallets,
		Transactor:      repos.transactor,
		Providers:       providers,
		DefaultProvider: cfg.Payment.DefaultProvider,
		Config:          cfg.Wallet,
		Publisher:       publisher,
		Metrics:         walletMetrics,
		Logger:          log,
	})
	webhookService := services.NewWebhookService(services.WebhookServiceDeps{
		Wallets:     repos.wallets,
		Providers:   providers,
		Withdrawals: withdrawalService,
		Plans:       planService,
		Deduper:     deduper,
		Config:      cfg.Wallet,
		Publisher:   publisher,
		Metrics:     walletMetrics,
		Logger:      log,
	})

	// Initialize handlers
	h := &routes.Handlers{
		Wallet:     handlers.NewWalletHandler(walletService, log),
		Withdrawal: handlers.NewWithdrawalHandler(withdrawalService, log),
		Plan:       handlers.NewPlanHandler(planService, log),
		Webhook:    handlers.NewWebhookHandler(webhookService, log),
		Admin:      handlers.NewAdminHandler(walletService, log),
	}

	if !cfg.App.Debug || config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		log.WithError(err).Warn("Invalid trusted proxies")
	}

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	routes.Setup(router, h, cfg.Security.JWTSecret)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		redisStatus := "disabled"
		if redisCache != nil {
			redisStatus = "up"
			if err := redisCache.Ping(c.Request.Context()); err != nil {
				redisStatus = "down"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
			"storage": cfg.App.StorageDriver,
			"redis":   redisStatus,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shut down")
	}
}

func openRepositories(cfg *config.Config, log *logger.Logger) (*repositories, error) {
	if cfg.App.StorageDriver == "memory" {
		log.Warn("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			wallets:     store.Wallets(),
			withdrawals: store.Withdrawals(),
			drivers:     store.Drivers(),
			plans:       store.Plans(),
			transactor:  store.Transactor(),
			close:       func() {},
		}, nil
	}

	mongoDB, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := database.NewMigrator(mongoDB.Database, log).Up(); err != nil {
			mongoDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &repositories{
		wallets:     mongodb.NewWalletRepository(mongoDB.Database),
		withdrawals: mongodb.NewWithdrawalRepository(mongoDB.Database),
		drivers:     mongodb.NewDriverRepository(mongoDB.Database),
		plans:       mongodb.NewPlanRepository(mongoDB.Database),
		transactor:  mongodb.NewTransactor(mongoDB),
		close: func() {
			if err := mongoDB.Close(); err != nil {
				log.WithError(err).Warn("Failed to close MongoDB connection")
			}
		},
	}, nil
}

func paymentProviders(cfg *config.PaymentConfig, log *logger.Logger) []payment.PaymentProvider {
	var providers []payment.PaymentProvider
	if cfg.Razorpay.Enabled {
		providers = append(providers, payment.NewRazorpayProvider(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Webhook))
	}
	if cfg.Stripe.Enabled {
		providers = append(providers, payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret))
	}
	if len(providers) == 0 {
		log.Warn("No payment provider enabled; webhooks will be rejected")
	}
	return providers
}
