package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"plansync-backend-go/internal/api"
	"plansync-backend-go/internal/billing"
	"plansync-backend-go/internal/config"
	"plansync-backend-go/internal/core"
	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/lock"
	"plansync-backend-go/internal/middleware"
	"plansync-backend-go/internal/notify"
	"plansync-backend-go/internal/telemetry"
	"plansync-backend-go/pkg/cache"
	"plansync-backend-go/pkg/database"
	"plansync-backend-go/pkg/messagequeue"
)

// stores bundles the repositories selected by STORE_DRIVER.
type stores struct {
	users  db.UserRepository
	events db.BillingEventRepository
	checks map[string]api.HealthCheck
	close  func()
}

func main() {
	// --- 1. Environment and configuration ---
	// In production, environment variables should be set directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Println("Warning: Error loading .env file:", err)
		}
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Logger ---
	var zapLogger *zap.Logger
	if appConfig.IsRelease() {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zapLogger.Info("Application configuration loaded", zap.String("storeDriver", appConfig.StoreDriver))

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	// --- 3. Firebase (Auth, and Firestore when it is the store) ---
	var firebaseClients *db.FirebaseClients
	if appConfig.FirebaseConfigured() {
		firebaseClients, err = db.InitFirebase(initCtx, appConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		defer func() { _ = firebaseClients.Close() }()
	}

	// --- 4. Repositories ---
	st, err := openStores(initCtx, appConfig, firebaseClients, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize user store", zap.Error(err))
	}
	defer st.close()

	// --- 5. Per-user lock ---
	var locker lock.Locker = lock.NewKeyedMutex()
	if appConfig.RedisURL != "" {
		rdb, err := cache.NewRedisClient(initCtx, cache.RedisConfig{URL: appConfig.RedisURL}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		locker = lock.NewRedisLocker(rdb, appConfig.LockTTL, zapLogger)
		st.checks["redis"] = cache.Healthcheck(rdb)
		zapLogger.Info("Using Redis per-user lock", zap.Duration("ttl", appConfig.LockTTL))
	} else {
		zapLogger.Info("Using in-process per-user lock")
	}

	// --- 6. Plan-change publisher ---
	publisher := notify.NewNoopPublisher()
	if appConfig.NATSURL != "" {
		mq, err := messagequeue.NewNATSService(messagequeue.NATSConfig{URL: appConfig.NATSURL, Name: "plansync-backend"}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to NATS", zap.Error(err))
		}
		defer func() { _ = mq.Close() }()
		publisher = notify.NewQueuePublisher(mq, appConfig.NATSPlanSubject)
	}

	// --- 7. Billing provider ---
	var provider billing.Provider
	if appConfig.StripeSecretKey != "" {
		provider, err = billing.NewStripeProvider(billing.StripeConfig{
			SecretKey:         appConfig.StripeSecretKey,
			MaxNetworkRetries: appConfig.StripeMaxNetworkRetries,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Stripe client", zap.Error(err))
		}
	} else {
		zapLogger.Warn("STRIPE_SECRET_KEY is not set; checkout and portal sessions are disabled")
		provider = billing.NewUnconfiguredProvider()
	}

	// --- 8. Services ---
	metrics := telemetry.NewMetrics(nil)
	eventService := core.NewBillingEventService(st.events)
	userService := core.NewUserService(st.users)
	billingService := core.NewBillingService(core.BillingServiceDeps{
		Normalizer: billing.NewNormalizer(appConfig.StripeWebhookSecret, appConfig.StripeWebhookTolerance),
		Reconciler: core.NewReconciler(st.users, locker, publisher, metrics, zapLogger),
		Provider:   provider,
		Users:      st.users,
		Events:     eventService,
		Metrics:    metrics,
		Logger:     zapLogger,
		URLs: core.CheckoutURLs{
			SuccessURL: appConfig.CheckoutSuccessURL,
			CancelURL:  appConfig.CheckoutCancelURL,
			ReturnURL:  appConfig.PortalReturnURL,
		},
		AllowedPriceIDs: appConfig.StripePriceIDs,
	})
	zapLogger.Info("Core services initialized successfully.")

	// --- 9. Gin engine and middleware (order matters) ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.Metrics(metrics))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))

	var authMW *middleware.AuthMiddleware
	if firebaseClients != nil {
		authMW = middleware.NewAuthMiddleware(firebaseClients.Auth, zapLogger)
	}

	api.SetupRoutes(router, api.RouteDeps{
		Logger:         zapLogger,
		Auth:           authMW,
		UserService:    userService,
		BillingService: billingService,
		EventService:   eventService,
		Metrics:        metrics,
		HealthChecks:   st.checks,
	})

	// --- 10. HTTP server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful shutdown ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}

func openStores(ctx context.Context, cfg *config.Config, fb *db.FirebaseClients, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		if fb == nil {
			return nil, errors.New("firestore driver selected but Firebase is not configured")
		}
		return &stores{
			users:  db.NewFirestoreUserRepository(fb.Firestore, cfg.UsersCollection),
			events: db.NewFirestoreBillingEventRepository(fb.Firestore, cfg.BillingEventsCollection),
			checks: map[string]api.HealthCheck{"firestore": database.FirestoreHealthcheck(fb.Firestore, cfg.UsersCollection)},
			close:  func() {},
		}, nil

	case config.StoreMongo:
		client, err := database.ConnectMongo(ctx, database.MongoConfig{URL: cfg.MongoURL}, logger)
		if err != nil {
			return nil, err
		}
		mdb := client.Database(cfg.MongoDatabase)
		if err := db.EnsureMongoIndexes(ctx, mdb, cfg.UsersCollection, cfg.BillingEventsCollection); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		return &stores{
			users:  db.NewMongoUserRepository(mdb, cfg.UsersCollection),
			events: db.NewMongoBillingEventRepository(mdb, cfg.BillingEventsCollection),
			checks: map[string]api.HealthCheck{"mongo": database.MongoHealthcheck(client)},
			close:  func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return &stores{
			users:  db.NewMemoryUserRepository(),
			events: db.NewMemoryBillingEventRepository(),
			checks: map[string]api.HealthCheck{},
			close:  func() {},
		}, nil
	}
}
