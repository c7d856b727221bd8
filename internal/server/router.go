package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dhyana-app/dhyana-backend/internal/handlers"
	"github.com/dhyana-app/dhyana-backend/internal/middleware"
)

type RouterConfig struct {
	HealthcheckHandler *handlers.HealthcheckHandler
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	QuizHandler        *handlers.QuizHandler
	PracticeHandler    *handlers.PracticeHandler
	EventHandler       *handlers.EventHandler
	FavoriteHandler    *handlers.FavoriteHandler
	PlayerHandler      *handlers.PlayerHandler
	SSEHandler         *handlers.SSEHandler
	AllowedOrigins     []string
	ServiceName        string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "dhyana-backend"
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.AttachTraceContext())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)
	router.POST("/auth/telegram", cfg.AuthHandler.AuthenticateTelegram)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Quiz
	api.GET("/quiz", cfg.QuizHandler.GetState)
	api.POST("/quiz/answer", cfg.QuizHandler.Answer)
	api.POST("/quiz/next", cfg.QuizHandler.Next)
	api.POST("/quiz/back", cfg.QuizHandler.Back)
	api.POST("/quiz/reset", cfg.QuizHandler.Reset)
	api.POST("/quiz/resolve", cfg.QuizHandler.Resolve)

	// Catalog
	api.GET("/practices", cfg.PracticeHandler.List)
	api.GET("/practices/:id", cfg.PracticeHandler.Get)
	api.GET("/categories", cfg.PracticeHandler.ListCategories)

	// Events
	api.GET("/events", cfg.EventHandler.List)
	api.POST("/events", cfg.EventHandler.Create)

	// Favorites
	api.POST("/favorites/:id/toggle", cfg.FavoriteHandler.Toggle)
	api.GET("/favorites", cfg.FavoriteHandler.List)

	// Player
	api.GET("/player", cfg.PlayerHandler.GetState)
	api.POST("/player/command", cfg.PlayerHandler.Command)
	api.POST("/player/event", cfg.PlayerHandler.MediaEvent)
	api.POST("/player/reconcile", cfg.PlayerHandler.Reconcile)
	api.GET("/player/embed", cfg.PlayerHandler.EmbedConfig)
	api.POST("/player/practice", cfg.PlayerHandler.ActivatePractice)
	api.POST("/player/timer", cfg.PlayerHandler.ActivateTimer)
	api.DELETE("/player", cfg.PlayerHandler.Teardown)

	// SSE
	sse := router.Group("/sse")
	sse.Use(cfg.AuthMiddleware.RequireAuth())
	sse.GET("/stream", cfg.SSEHandler.Stream)

	return router
}
