package main

import (
	"context"
	"strings"
	"time"

	"github.com/dhyana-app/dhyana-backend/internal/clients/redis"
	"github.com/dhyana-app/dhyana-backend/internal/db"
	"github.com/dhyana-app/dhyana-backend/internal/handlers"
	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/middleware"
	"github.com/dhyana-app/dhyana-backend/internal/observability"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/server"
	"github.com/dhyana-app/dhyana-backend/internal/services"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
	"github.com/dhyana-app/dhyana-backend/internal/utils"
)

func main() {
	log, err := logger.New(utils.GetEnv("APP_ENV", "development", nil))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Tracing
	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "dhyana-backend",
		Environment: utils.GetEnv("APP_ENV", "development", nil),
		Version:     utils.GetEnv("APP_VERSION", "", nil),
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Database
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Failed to connect to postgres", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}
	gdb := pg.DB()

	// Redis
	rdb, err := redis.NewClient(log)
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}
	quizTTL := time.Duration(utils.GetEnvAsInt("QUIZ_STATE_TTL_HOURS", 24*14, log)) * time.Hour
	prefsTTL := time.Duration(utils.GetEnvAsInt("PLAYER_PREFS_TTL_HOURS", 24*180, log)) * time.Hour
	quizStore := redis.NewStateStore(log, rdb, quizTTL)
	prefsStore := redis.NewStateStore(log, rdb, prefsTTL)

	// SSE hub with redis fanout
	hub := sse.NewHub(log)
	bus := redis.NewBus(log, rdb)
	defer bus.Close()
	hub.SetPublisher(func(msg sse.Message) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.Publish(ctx, msg)
	})
	if err := bus.StartForwarder(context.Background(), hub.Deliver); err != nil {
		log.Fatal("Failed to start SSE forwarder", "error", err)
	}

	// Repos
	userRepo := repos.NewUserRepo(gdb, log)
	categoryRepo := repos.NewCategoryRepo(gdb, log)
	practiceRepo := repos.NewPracticeRepo(gdb, log)
	ruleRepo := repos.NewRecommendationRuleRepo(gdb, log)
	recordRepo := repos.NewRecommendationRecordRepo(gdb, log)
	eventRepo := repos.NewEventRepo(gdb, log)
	favoriteRepo := repos.NewFavoriteRepo(gdb, log)

	// Services
	accessTTL := time.Duration(utils.GetEnvAsInt("JWT_ACCESS_TTL_HOURS", 24*7, log)) * time.Hour
	authService := services.NewAuthService(
		gdb, log, userRepo,
		utils.GetEnv("TELEGRAM_BOT_TOKEN", "", log),
		utils.GetEnv("JWT_SECRET_KEY", "", log),
		accessTTL,
	)
	recommendationService := services.NewRecommendationService(gdb, log, ruleRepo, recordRepo, practiceRepo)
	quizService := services.NewQuizSessionService(log, quizStore, recommendationService, hub)
	playerService := services.NewPlayerService(log, prefsStore, hub)
	practiceService := services.NewPracticeService(gdb, log, practiceRepo, categoryRepo)
	eventService := services.NewEventService(gdb, log, eventRepo, hub)
	favoriteService := services.NewFavoriteService(gdb, log, favoriteRepo, practiceRepo)

	// Handlers
	healthcheckHandler := handlers.NewHealthcheckHandler(log)
	authHandler := handlers.NewAuthHandler(log, authService)
	quizHandler := handlers.NewQuizHandler(log, quizService)
	practiceHandler := handlers.NewPracticeHandler(log, practiceService)
	eventHandler := handlers.NewEventHandler(log, eventService)
	favoriteHandler := handlers.NewFavoriteHandler(log, favoriteService)
	playerHandler := handlers.NewPlayerHandler(log, playerService, practiceService)
	sseHandler := handlers.NewSSEHandler(log, hub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		HealthcheckHandler: healthcheckHandler,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		QuizHandler:        quizHandler,
		PracticeHandler:    practiceHandler,
		EventHandler:       eventHandler,
		FavoriteHandler:    favoriteHandler,
		PlayerHandler:      playerHandler,
		SSEHandler:         sseHandler,
		AllowedOrigins:     strings.Split(utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173", log), ","),
		ServiceName:        "dhyana-backend",
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
