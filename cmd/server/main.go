package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pbassistant/backend/internal/api"
	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/generation"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/metrics"
	"pbassistant/backend/internal/observability"
	"pbassistant/backend/internal/prompt"
	"pbassistant/backend/internal/repository/factory"
	"pbassistant/backend/internal/service"
	"pbassistant/backend/internal/storage"
)

// @title PB Assistant API
// @version 1.0
// @description Generates personalised running plans and tracks workout check-ins and logs.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	appLog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("FATAL: Could not create logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("Starting PB Assistant backend", "address", cfg.Server.Address, "mock_mode", cfg.Generation.UseMock())
	if cfg.DefaultSecretInRelease() {
		appLog.Warn("jwt.secret is the built-in development secret; set JWT_SECRET before serving real users", "mode", cfg.Server.Mode)
	}

	ctx := context.Background()

	// --- Tracing ---
	shutdownTracing, err := observability.InitTracing(ctx, appLog, cfg.Tracing)
	if err != nil {
		appLog.Fatal("Could not initialise tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLog.Error("Tracer shutdown failed", "error", err)
		}
	}()

	// --- Stores ---
	stores, err := factory.Open(ctx, cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("Could not open stores", "error", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			appLog.Error("Failed to close stores", "error", err)
		}
	}()

	// --- Plan archive ---
	archive := storage.NewNoopArchive()
	if cfg.S3.Enabled() {
		archive, err = storage.NewS3Archive(ctx, cfg.S3)
		if err != nil {
			appLog.Fatal("Failed to initialise S3 archive", "error", err)
		}
		appLog.Info("Plan archive enabled", "bucket", cfg.S3.BucketName)
	}

	// --- Services ---
	m := metrics.New()
	generator := generation.New(generation.Options{
		Endpoint: cfg.Generation.Endpoint,
		APIKey:   cfg.Generation.APIKey,
		MockMode: cfg.Generation.MockMode,
		Timeout:  cfg.Generation.Timeout,
	})
	authService, err := service.NewAuthService(stores.Users, cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		appLog.Fatal("Could not create auth service", "error", err)
	}
	planService := service.NewPlanService(service.PlanServiceDeps{
		Users:     stores.Users,
		Plans:     stores.Plans,
		Workouts:  stores.Workouts,
		Builder:   prompt.NewBuilder(cfg.Generation.Model, time.Now),
		Generator: generator,
		Archive:   archive,
		Metrics:   m,
		Logger:    appLog,
	})

	// --- Gin Engine ---
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Deps{
		AuthService:     authService,
		ProfileService:  service.NewProfileService(stores.Users),
		PlanService:     planService,
		WorkoutService:  service.NewWorkoutService(stores.Plans, stores.Workouts, appLog),
		CORS:            cfg.CORS,
		DevLoginEnabled: cfg.Auth.DevLoginEnabled,
		ServiceName:     cfg.Tracing.ServiceName,
		Metrics:         m,
		Logger:          appLog,
	})

	// --- Start HTTP Server ---
	// WriteTimeout leaves room for the generation call.
	genTimeout := cfg.Generation.Timeout
	if genTimeout <= 0 {
		genTimeout = generation.DefaultTimeout
	}
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: genTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("Server listening", "address", cfg.Server.Address, "store", stores.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
	}
	appLog.Info("Server exiting.")
}
