package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral_bot/internal/bot"
	"referral_bot/internal/config"
	"referral_bot/internal/db"
	httpServer "referral_bot/internal/http"
	"referral_bot/internal/logger"
	"referral_bot/internal/repository"
	"referral_bot/internal/service"
	"referral_bot/internal/telegram"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.Bootstrap(ctx, dbPool); err != nil {
		cancel()
		logger.Fatal("schema bootstrap failed", "error", err)
	}
	cancel()

	userRepo := repository.NewUserRepository(dbPool)
	referralRepo := repository.NewReferralRepository(dbPool)
	svc := service.NewReferralService(userRepo, referralRepo)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("bot init failed", "error", err)
	}

	cache := telegram.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	subs := telegram.NewSubscriptionChecker(api, cfg.ChannelUsername, cache)

	b := bot.New(api, cfg, svc, subs)
	go b.Start()

	r := gin.Default()
	httpServer.RegisterRoutes(r, dbPool, svc)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("http server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	b.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("exited")
}
