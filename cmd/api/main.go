package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"myautowhiz-backend/internal/activity"
	"myautowhiz-backend/internal/admin"
	"myautowhiz-backend/internal/analysis"
	"myautowhiz-backend/internal/auth"
	"myautowhiz-backend/internal/billing"
	"myautowhiz-backend/internal/cache"
	"myautowhiz-backend/internal/config"
	"myautowhiz-backend/internal/database"
	"myautowhiz-backend/internal/health"
	"myautowhiz-backend/internal/logging"
	"myautowhiz-backend/internal/metrics"
	"myautowhiz-backend/internal/middleware"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/notifications"
	"myautowhiz-backend/internal/profile"
	"myautowhiz-backend/internal/streams"
	"myautowhiz-backend/internal/usage"
	"myautowhiz-backend/internal/vehicledata"
	"myautowhiz-backend/internal/vehicles"
	"myautowhiz-backend/internal/webhooks"
	"myautowhiz-backend/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.IsProduction())
	logrus.WithField("environment", cfg.Environment).Info("starting MyAutoWhiz API server")

	// Initialize Sentry before other subsystems so we capture initialization errors
	if cfg.SentryDSN != "" {
		release := os.Getenv("SENTRY_RELEASE")
		if release == "" {
			release = os.Getenv("GIT_COMMIT")
		}
		opts := sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     release,
		}
		if host, _ := os.Hostname(); host != "" {
			opts.ServerName = host
		}
		if err := sentry.Init(opts); err != nil {
			logrus.WithError(err).Warn("sentry initialization failed")
		} else {
			sentry.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("service", "myautowhiz-api")
			})
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := database.InitDatabase(cfg); err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	db := database.DB
	if err := database.RunMigrations(db, models.All()...); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := billing.SeedPlans(ctx, db, cfg.StripePrices); err != nil {
		logrus.WithError(err).Fatal("failed to seed subscription plans")
	}

	var responseCache cache.Cache = cache.Noop{}
	var cachePinger health.Pinger
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, upstream responses will not be cached")
		} else {
			defer client.Close()
			redisCache := cache.NewRedisCache(client, "myautowhiz")
			responseCache = redisCache
			cachePinger = redisCache
		}
	}

	// Components
	verifier := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer)
	resolver := usage.NewResolver(db)
	notificationStore := notifications.NewStore(db)
	gateway := billing.NewStripeGateway(cfg.StripeSecretKey)
	vehicleClient := vehicledata.NewClient(vehicledata.Options{
		VPICBaseURL:    cfg.VPICBaseURL,
		RecallsBaseURL: cfg.RecallsBaseURL,
		Timeout:        cfg.UpstreamTimeout,
		Cache:          responseCache,
		DecodeTTL:      cfg.VINCacheTTL,
		RecallTTL:      cfg.RecallCacheTTL,
	})

	analysisHandler := analysis.NewHandler(analysis.NewService(db, resolver, notificationStore))
	profileHandler := profile.NewHandler(profile.NewService(db, resolver, gateway))
	vehicleHandler := vehicles.NewHandler(vehicles.NewStore(db, vehicleClient))
	vehicleDataHandler := vehicledata.NewHandler(vehicleClient)
	notificationHandler := notifications.NewHandler(notificationStore)
	usageHandler := usage.NewHandler(resolver)
	billingHandler := billing.NewHandler(db, gateway, cfg.SiteURL)
	webhookHandler := webhooks.NewHandler(db, billing.NewReconciler(db, notificationStore), cfg.StripeWebhookSecret)
	adminHandler := admin.NewHandler(db)
	healthChecker := health.NewChecker(db, cachePinger)
	notificationStream := streams.NewNotificationStream(notificationStore, 5*time.Second, cfg.CORSOrigins)

	publicLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.PublicRateLimit), cfg.PublicRateBurst)
	publicLimiter.StartCleanup(5*time.Minute, ctx.Done())

	// Set up router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	}))
	router.Use(gin.Recovery())

	// CORS - MUST be first to handle OPTIONS requests
	corsConfig, err := middleware.CORSConfig(cfg.CORSOrigins, cfg.IsProduction())
	if err != nil {
		logrus.WithError(err).Fatal("invalid CORS configuration")
	}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestSize))

	if os.Getenv("ENABLE_SENTRY_DEBUG_ENDPOINT") == "true" {
		router.GET("/internal/sentry-test", func(c *gin.Context) {
			utils.CaptureSentryError(c, nil, "Sentry debug endpoint hit", nil)
			_ = sentry.Flush(2 * time.Second)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// Health check endpoints
	router.GET("/health", healthChecker.HandleHealthCheck)
	router.GET("/ready", healthChecker.HandleReady)
	router.GET("/metrics", metrics.HandlePrometheusMetrics())

	api := router.Group("/api")
	{
		// Public routes
		public := api.Group("")
		public.Use(middleware.RateLimit(publicLimiter), auth.Optional(verifier))
		{
			public.GET("/vin", vehicleDataHandler.HandleDecodeVin)
			public.POST("/vin", vehicleDataHandler.HandleBatchDecode)
			public.GET("/recalls", vehicleDataHandler.HandleGetRecalls)
			public.GET("/plans", billingHandler.HandleGetPlans)
		}

		// Signature-verified payment events
		api.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

		// Worker callbacks
		internal := api.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.InternalAPIToken))
		{
			internal.POST("/analysis/:id/status", analysisHandler.HandleSetStatus)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(auth.Middleware(verifier))
		{
			protected.POST("/analysis", analysisHandler.HandleCreateAnalysis)
			protected.GET("/analysis", analysisHandler.HandleGetAnalyses)
			protected.GET("/analysis/:id", analysisHandler.HandleGetAnalyses)
			protected.PATCH("/analysis/:id", analysisHandler.HandleUpdateAnalysis)
			protected.DELETE("/analysis", analysisHandler.HandleDeleteAnalysis)
			protected.DELETE("/analysis/:id", analysisHandler.HandleDeleteAnalysis)

			protected.GET("/notifications", notificationHandler.HandleListNotifications)
			protected.PATCH("/notifications", notificationHandler.HandleMarkRead)
			protected.PATCH("/notifications/:id", notificationHandler.HandleMarkRead)
			protected.DELETE("/notifications", notificationHandler.HandleDeleteNotifications)
			protected.DELETE("/notifications/:id", notificationHandler.HandleDeleteNotifications)

			protected.GET("/user", profileHandler.HandleGetProfile)
			protected.PATCH("/user", profileHandler.HandleUpdateProfile)
			protected.DELETE("/user", profileHandler.HandleDeleteAccount)

			protected.GET("/vehicles", vehicleHandler.HandleGetVehicles)
			protected.GET("/vehicles/:id", vehicleHandler.HandleGetVehicles)
			protected.POST("/vehicles", vehicleHandler.HandleCreateVehicle)
			protected.PATCH("/vehicles/:id", vehicleHandler.HandleUpdateVehicle)
			protected.DELETE("/vehicles", vehicleHandler.HandleDeleteVehicle)
			protected.DELETE("/vehicles/:id", vehicleHandler.HandleDeleteVehicle)

			protected.GET("/usage", usageHandler.HandleGetUsage)
			protected.GET("/activity", activity.HandleListActivity(db))

			// Billing & subscription
			protected.GET("/subscription", billingHandler.HandleGetSubscription)
			protected.GET("/payments", billingHandler.HandleGetPayments)
			protected.POST("/billing/checkout", billingHandler.HandleCreateCheckout)
			protected.POST("/billing/portal", billingHandler.HandleCreatePortal)

			staff := protected.Group("/admin")
			staff.Use(admin.RequireStaff(db))
			{
				staff.GET("/plans", adminHandler.HandleListPlans)
				staff.PATCH("/plans/:id", adminHandler.HandleUpdatePlan)
				staff.GET("/stats", adminHandler.HandleGetAdminStats)
				staff.GET("/metrics", metrics.HandleSystemMetrics(db))
			}
		}
	}

	// Real-time WebSocket streams
	router.GET("/ws/notifications", auth.Middleware(verifier), notificationStream.HandleNotificationWebSocket)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
