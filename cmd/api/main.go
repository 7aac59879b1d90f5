package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univecal/unical-api/api/swagger"
	"github.com/univecal/unical-api/internal/handler"
	"github.com/univecal/unical-api/internal/middleware"
	"github.com/univecal/unical-api/internal/repository"
	"github.com/univecal/unical-api/internal/service"
	"github.com/univecal/unical-api/pkg/cache"
	"github.com/univecal/unical-api/pkg/config"
	"github.com/univecal/unical-api/pkg/database"
	"github.com/univecal/unical-api/pkg/logger"
	"github.com/univecal/unical-api/pkg/mailer"
	corsmiddleware "github.com/univecal/unical-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univecal/unical-api/pkg/middleware/requestid"
	"github.com/univecal/unical-api/pkg/token"
)

// @title UniCal API
// @version 1.0.0
// @description University course calendar and notification service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metricsService := service.NewMetricsService()

	obs := repository.NewQueryObserver(logr, cfg.Database.SlowQueryThreshold).WithMetrics(metricsService)
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	feedRepo := repository.NewFeedRepository(db, obs)
	lessonRepo := repository.NewLessonRepository(db, obs)
	courseRepo := repository.NewCourseRepository(db, obs)
	catalogRepo := repository.NewCatalogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	tokens := token.NewGenerator(cfg.Tokens.Secret, map[token.Purpose]time.Duration{
		token.PurposeConfirm:     cfg.Tokens.ConfirmTTL,
		token.PurposeReset:       cfg.Tokens.ResetTTL,
		token.PurposeEmailChange: cfg.Tokens.ConfirmTTL,
		token.PurposeChatLink:    cfg.Tokens.ChatTTL,
	})

	var mail mailer.Mailer
	if cfg.Mail.SendgridKey != "" {
		mail = mailer.NewSendgrid(cfg.Mail, logr)
	} else {
		logr.Info("no sendgrid key configured, mail goes to the log")
		mail = mailer.NewConsole(logr)
	}

	authService := service.NewAuthService(userRepo, tokens, mail, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		BaseURL:            cfg.Mail.BaseURL,
		BotUsername:        cfg.Bot.Username,
	})
	followService := service.NewFollowService(followRepo, logr).WithCache(cacheRepo)
	feedService := service.NewFeedService(feedRepo, cacheRepo, catalogRepo, validate, logr, service.FeedConfig{
		PageSize:      cfg.Feeds.PageSize,
		LatestCount:   cfg.Feeds.LatestCount,
		CountCacheTTL: cfg.Feeds.CountCacheTTL,
	}).WithMetrics(metricsService)
	scheduleService := service.NewScheduleService(lessonRepo, courseRepo, validate, logr)
	catalogService := service.NewCatalogService(catalogRepo, courseRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Services{
		Auth:     authService,
		Follows:  followService,
		Feeds:    feedService,
		Schedule: scheduleService,
		Catalog:  catalogService,
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
