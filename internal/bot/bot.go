package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"referral_bot/internal/config"
	"referral_bot/internal/logger"
	"referral_bot/internal/metrics"
	"referral_bot/internal/service"
	"referral_bot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const commandTimeout = 30 * time.Second

// Bot runs the long-poll update loop and dispatches the /start and
// /board commands.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	svc    *service.ReferralService
	subs   *telegram.SubscriptionChecker
	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(api *tgbotapi.BotAPI, cfg *config.Config, svc *service.ReferralService, subs *telegram.SubscriptionChecker) *Bot {
	log := logger.With("component", "bot")
	log.Info("bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:    api,
		cfg:    cfg,
		svc:    svc,
		subs:   subs,
		stopCh: make(chan struct{}),
		log:    log,
	}
}

// Start blocks, receiving updates until Stop is called.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.log.Info("stopping bot...")
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch msg.Command() {
	case "start":
		metrics.CommandsTotal.WithLabelValues("start").Inc()
		b.handleStart(ctx, msg)
	case "board":
		metrics.CommandsTotal.WithLabelValues("board").Inc()
		b.handleBoard(ctx, msg)
	}
}

func (b *Bot) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = "Markdown"
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message failed", "chat_id", chatID, "error", err)
	}
}
