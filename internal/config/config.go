package config

import (
	"os"
	"strconv"
	"strings"

	"referral_bot/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken        string
	DatabaseURL     string
	ChannelUsername string // channel the user must join, with or without leading @
	ChannelURL      string // public link used in prompts and referral links
	CompanyName     string

	AppPort string

	// Subscription-check cache; disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from the environment once at process start.
// Missing required values are a fatal startup error.
func Load() *Config {
	_ = godotenv.Load()

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	channel := strings.TrimSpace(os.Getenv("CHANNEL_USERNAME"))
	if channel == "" {
		logger.Fatal("CHANNEL_USERNAME is not set")
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}

	channelURL := os.Getenv("CHANNEL_URL")
	if channelURL == "" {
		logger.Fatal("CHANNEL_URL is not set")
	}

	company := os.Getenv("COMPANY_NAME")
	if company == "" {
		company = "our channel"
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	return &Config{
		BotToken:        botToken,
		DatabaseURL:     dbURL,
		ChannelUsername: channel,
		ChannelURL:      channelURL,
		CompanyName:     company,
		AppPort:         port,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogJSON:         os.Getenv("LOG_JSON") == "true",
	}
}
