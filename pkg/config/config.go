package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Tokens   TokenConfig
	Mail     MailConfig
	Bot      BotConfig
	Feeds    FeedConfig
}

type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	SlowQueryThreshold time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TokenConfig governs the timed account-action tokens (confirm email,
// password reset, email change, telegram link).
type TokenConfig struct {
	Secret     string
	ConfirmTTL time.Duration
	ResetTTL   time.Duration
	ChatTTL    time.Duration
}

type MailConfig struct {
	SendgridKey   string
	FromName      string
	FromAddress   string
	SubjectPrefix string
	BaseURL       string
}

// BotConfig configures the Telegram dispatcher process.
type BotConfig struct {
	Token        string
	Username     string
	PollInterval time.Duration
	SendWorkers  int
	SendRetries  int
}

// FeedConfig tunes feed pagination and cache behaviour.
type FeedConfig struct {
	PageSize      int
	LatestCount   int
	CountCacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:               v.GetString("DB_HOST"),
		Port:               v.GetInt("DB_PORT"),
		User:               v.GetString("DB_USER"),
		Password:           v.GetString("DB_PASSWORD"),
		Name:               v.GetString("DB_NAME"),
		SSLMode:            v.GetString("DB_SSL_MODE"),
		MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
		SlowQueryThreshold: parseDuration(v.GetString("DB_SLOW_QUERY_THRESHOLD"), 200*time.Millisecond),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tokens = TokenConfig{
		Secret:     v.GetString("ACCOUNT_TOKEN_SECRET"),
		ConfirmTTL: parseDuration(v.GetString("CONFIRM_TOKEN_TTL"), time.Hour),
		ResetTTL:   parseDuration(v.GetString("RESET_TOKEN_TTL"), time.Hour),
		ChatTTL:    parseDuration(v.GetString("CHAT_TOKEN_TTL"), 24*time.Hour),
	}

	cfg.Mail = MailConfig{
		SendgridKey:   v.GetString("SENDGRID_API_KEY"),
		FromName:      v.GetString("MAIL_FROM_NAME"),
		FromAddress:   v.GetString("MAIL_FROM_ADDRESS"),
		SubjectPrefix: v.GetString("MAIL_SUBJECT_PREFIX"),
		BaseURL:       v.GetString("FRONTEND_BASE_URL"),
	}

	cfg.Bot = BotConfig{
		Token:        v.GetString("BOT_TOKEN"),
		Username:     v.GetString("BOT_USERNAME"),
		PollInterval: parseDuration(v.GetString("BOT_FEED_POLL_INTERVAL"), 30*time.Second),
		SendWorkers:  v.GetInt("BOT_SEND_WORKERS"),
		SendRetries:  v.GetInt("BOT_SEND_RETRIES"),
	}

	cfg.Feeds = FeedConfig{
		PageSize:      v.GetInt("FEEDS_PER_PAGE"),
		LatestCount:   v.GetInt("FEEDS_LATEST_COUNT"),
		CountCacheTTL: parseDuration(v.GetString("FEEDS_COUNT_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "unical")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_SLOW_QUERY_THRESHOLD", "200ms")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ACCOUNT_TOKEN_SECRET", "dev_account_secret")
	v.SetDefault("CONFIRM_TOKEN_TTL", "1h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("CHAT_TOKEN_TTL", "24h")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "UniCal")
	v.SetDefault("MAIL_FROM_ADDRESS", "noreply@unical.example")
	v.SetDefault("MAIL_SUBJECT_PREFIX", "[UniCal] ")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")

	v.SetDefault("BOT_TOKEN", "")
	v.SetDefault("BOT_USERNAME", "UniCalBot")
	v.SetDefault("BOT_FEED_POLL_INTERVAL", "30s")
	v.SetDefault("BOT_SEND_WORKERS", 2)
	v.SetDefault("BOT_SEND_RETRIES", 3)

	v.SetDefault("FEEDS_PER_PAGE", 10)
	v.SetDefault("FEEDS_LATEST_COUNT", 3)
	v.SetDefault("FEEDS_COUNT_CACHE_TTL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
