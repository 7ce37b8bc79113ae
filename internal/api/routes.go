package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/metrics"
	"pbassistant/backend/internal/service"
)

// Deps carries everything SetupRoutes mounts. Metrics and Logger may be nil.
type Deps struct {
	AuthService    service.AuthService
	ProfileService service.ProfileService
	PlanService    service.PlanService
	WorkoutService service.WorkoutService

	CORS            config.CORSConfig
	DevLoginEnabled bool
	ServiceName     string

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "pb-assistant-backend"
	}

	router.Use(otelgin.Middleware(serviceName))
	router.Use(RequestLogger(log, deps.Metrics))
	router.Use(cors.New(corsConfig(deps.CORS)))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.ProfileService)
	planHandler := NewPlanHandler(deps.PlanService)
	workoutHandler := NewWorkoutHandler(deps.WorkoutService)

	authMiddleware := AuthMiddleware(deps.AuthService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	apiV1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	if deps.DevLoginEnabled {
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/dev-login", authHandler.DevLogin)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		userGroup := protected.Group("/user")
		{
			userGroup.GET("/me", userHandler.GetMe)
			userGroup.PUT("/me", userHandler.UpdateMe)
		}

		planGroup := protected.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.ListPlans)
			planGroup.GET("/latest", planHandler.GetLatestPlan)
			planGroup.GET("/:planId/archive", planHandler.GetPlanArchive)
		}

		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.POST("/:id/checkin", workoutHandler.CheckIn)
			workoutGroup.POST("/:id/log", workoutHandler.Log)
		}
	}
}

func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if c.AllowAll() {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = c.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}
