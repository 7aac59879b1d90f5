package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-playground/validator/v10"

	"github.com/univecal/unical-api/internal/bot"
	"github.com/univecal/unical-api/internal/repository"
	"github.com/univecal/unical-api/internal/service"
	"github.com/univecal/unical-api/pkg/config"
	"github.com/univecal/unical-api/pkg/database"
	"github.com/univecal/unical-api/pkg/logger"
	"github.com/univecal/unical-api/pkg/mailer"
	"github.com/univecal/unical-api/pkg/token"
)

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

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to telegram", "error", err)
	}
	logr.Sugar().Infow("telegram connected", "username", api.Self.UserName)

	obs := repository.NewQueryObserver(logr, cfg.Database.SlowQueryThreshold)
	userRepo := repository.NewUserRepository(db)
	feedRepo := repository.NewFeedRepository(db, obs)

	tokens := token.NewGenerator(cfg.Tokens.Secret, map[token.Purpose]time.Duration{
		token.PurposeConfirm:     cfg.Tokens.ConfirmTTL,
		token.PurposeReset:       cfg.Tokens.ResetTTL,
		token.PurposeEmailChange: cfg.Tokens.ConfirmTTL,
		token.PurposeChatLink:    cfg.Tokens.ChatTTL,
	})

	// The dispatcher only links and unlinks chats; mail stays on the log.
	authService := service.NewAuthService(userRepo, tokens, mailer.NewConsole(logr), validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		BaseURL:            cfg.Mail.BaseURL,
		BotUsername:        cfg.Bot.Username,
	})

	dispatcher := bot.New(api, authService, feedRepo, logr, bot.Config{
		PollInterval: cfg.Bot.PollInterval,
		SendWorkers:  cfg.Bot.SendWorkers,
		SendRetries:  cfg.Bot.SendRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		logr.Sugar().Fatalw("dispatcher failed", "error", err)
	}
	logr.Info("dispatcher stopped")
}
