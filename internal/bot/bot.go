package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/pkg/jobs"
)

const (
	replyLinked    = "Hi %s! Your chats are linked: I will notify you when something happens on your courses."
	replyUnknown   = "I have no clue who you are. Open the link from your account settings to introduce yourself."
	replyStart     = "Open the link from your account settings to connect this chat."
	replyStopped   = "Done. I will not message this chat anymore."
	replyUnhandled = "I only understand /start and /stop."
)

type accountLinker interface {
	LinkTelegramChat(ctx context.Context, token, chatID string) (*models.User, error)
	UnlinkTelegramChat(ctx context.Context, chatID string) error
}

type feedSource interface {
	MaxID(ctx context.Context) (int64, error)
	Recipients(ctx context.Context, afterID int64) ([]models.FeedRecipient, error)
}

// sender is the slice of tgbotapi.BotAPI the dispatcher uses. Narrowed for
// tests.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config tunes the dispatcher.
type Config struct {
	PollInterval time.Duration
	SendWorkers  int
	SendRetries  int
}

// Bot long-polls Telegram for account-linking commands and watches the
// feeds table to push notifications to linked chats.
type Bot struct {
	api      sender
	accounts accountLinker
	feeds    feedSource
	queue    *jobs.Queue
	logger   *zap.Logger
	config   Config

	lastFeedID int64
}

// New constructs the dispatcher around a connected Telegram client.
func New(api sender, accounts accountLinker, feeds feedSource, logger *zap.Logger, config Config) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	b := &Bot{api: api, accounts: accounts, feeds: feeds, logger: logger, config: config}
	b.queue = jobs.NewQueue("telegram-send", b.deliver, jobs.QueueConfig{
		Workers:    config.SendWorkers,
		MaxRetries: config.SendRetries,
		Logger:     logger,
	})
	return b
}

// Run blocks until the context is cancelled, serving updates and pushing
// feed notifications.
func (b *Bot) Run(ctx context.Context) error {
	// New feeds start flowing from the current high-water mark; history is
	// never replayed to a freshly started dispatcher.
	maxID, err := b.feeds.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("read feed watermark: %w", err)
	}
	b.lastFeedID = maxID

	b.queue.Start(ctx)
	defer b.queue.Stop()

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()

	b.logger.Sugar().Infow("dispatcher running", "poll_interval", b.config.PollInterval, "watermark", b.lastFeedID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(ctx, update)
		case <-ticker.C:
			b.pushNewFeeds(ctx)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	chatID := update.Message.Chat.ID

	switch update.Message.Command() {
	case "start":
		token := update.Message.CommandArguments()
		if token == "" {
			b.reply(chatID, replyStart)
			return
		}
		user, err := b.accounts.LinkTelegramChat(ctx, token, strconv.FormatInt(chatID, 10))
		if err != nil {
			b.logger.Sugar().Infow("chat link rejected", "chat_id", chatID, "error", err)
			b.reply(chatID, replyUnknown)
			return
		}
		b.logger.Sugar().Infow("chat linked", "chat_id", chatID, "user_id", user.ID)
		b.reply(chatID, fmt.Sprintf(replyLinked, user.Username))
	case "stop":
		if err := b.accounts.UnlinkTelegramChat(ctx, strconv.FormatInt(chatID, 10)); err != nil {
			b.logger.Sugar().Warnw("chat unlink failed", "chat_id", chatID, "error", err)
			return
		}
		b.reply(chatID, replyStopped)
	default:
		b.reply(chatID, replyUnhandled)
	}
}

// pushNewFeeds enqueues one send per (feed, linked follower) pair beyond
// the watermark. The watermark only advances after enqueueing, so a failed
// query retries the same window on the next tick.
func (b *Bot) pushNewFeeds(ctx context.Context) {
	recipients, err := b.feeds.Recipients(ctx, b.lastFeedID)
	if err != nil {
		b.logger.Sugar().Errorw("failed to resolve feed recipients", "error", err)
		return
	}

	for _, rec := range recipients {
		job := jobs.Job{
			ID:      fmt.Sprintf("feed-%d-user-%d", rec.FeedID, rec.UserID),
			Type:    "feed-notification",
			Payload: rec,
		}
		if err := b.queue.Enqueue(job); err != nil {
			b.logger.Sugar().Errorw("failed to enqueue notification", "job_id", job.ID, "error", err)
			return
		}
		if rec.FeedID > b.lastFeedID {
			b.lastFeedID = rec.FeedID
		}
	}
}

func (b *Bot) deliver(_ context.Context, job jobs.Job) error {
	rec, ok := job.Payload.(models.FeedRecipient)
	if !ok {
		b.logger.Sugar().Errorw("unexpected job payload", "job_id", job.ID)
		return nil
	}

	chatID, err := strconv.ParseInt(rec.ChatID, 10, 64)
	if err != nil {
		b.logger.Sugar().Errorw("invalid chat id on record", "job_id", job.ID, "chat_id", rec.ChatID)
		return nil
	}

	text := rec.Title + "\n\n" + rec.Body
	if rec.ProfessorName != nil {
		text = fmt.Sprintf("%s\n\n%s\n\n- %s", rec.Title, rec.Body, *rec.ProfessorName)
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Sugar().Warnw("failed to send reply", "chat_id", chatID, "error", err)
	}
}
