package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"referral_bot/internal/domain"
	"referral_bot/internal/metrics"
	"referral_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	// Messages without a sender (channel posts and the like) have no
	// user to refer or credit.
	if msg.From == nil {
		return
	}

	userID := msg.Chat.ID
	username := msg.From.UserName
	firstName := msg.From.FirstName

	arg := strings.TrimSpace(msg.CommandArguments())

	selfReferral, err := b.svc.RecordIntent(ctx, userID, arg)
	if err != nil {
		b.log.Error("record intent failed", "user_id", userID, "error", err)
		b.reply(userID, retryMessage, false)
		return
	}
	if selfReferral {
		b.reply(userID, "You cannot refer yourself!", false)
		return
	}

	if !b.subs.IsSubscribed(ctx, userID) {
		// The pending intent stays recorded; the user can subscribe
		// and re-run /start to be credited.
		b.reply(userID, subscribePrompt(b.cfg.CompanyName, b.cfg.ChannelURL), true)
		return
	}

	res, err := b.svc.Finalize(ctx, userID, username, firstName)
	if err != nil {
		// The welcome still goes out; only the referrer notification
		// depends on the engine outcome.
		b.log.Error("finalize referral failed", "user_id", userID, "error", err)
	} else {
		metrics.CreditOutcomes.WithLabelValues(string(res.Status)).Inc()
		if res.Status == service.StatusCredited {
			b.reply(res.ReferrerID, referrerNotification(res.InviteCount), false)
		}
	}

	b.reply(userID, welcomeMessage(b.cfg.CompanyName, firstName, referralLink(b.cfg.ChannelURL, userID)), false)
}

func (b *Bot) handleBoard(ctx context.Context, msg *tgbotapi.Message) {
	entries, err := b.svc.Leaderboard(ctx, 10)
	if err != nil {
		// One retry with backoff for the read-only path.
		time.Sleep(500 * time.Millisecond)
		entries, err = b.svc.Leaderboard(ctx, 10)
	}
	if err != nil {
		b.log.Error("leaderboard query failed", "error", err)
		b.reply(msg.Chat.ID, retryMessage, false)
		return
	}

	if len(entries) == 0 {
		b.reply(msg.Chat.ID, "No referrals with invites yet!", false)
		return
	}

	b.reply(msg.Chat.ID, leaderboardMessage(b.cfg.CompanyName, entries), false)
}

const retryMessage = "Something went wrong. Please try again in a moment."

func referralLink(channelURL string, userID int64) string {
	return fmt.Sprintf("%s?start=%d", channelURL, userID)
}

func subscribePrompt(company, channelURL string) string {
	return fmt.Sprintf("To use this bot, you must first subscribe to our channel: [%s](%s)\n"+
		"After subscribing, click /start again to continue.", company, channelURL)
}

func referrerNotification(inviteCount int64) string {
	return fmt.Sprintf("Thank you for referring a new user! Total invites: %d", inviteCount)
}

func welcomeMessage(company, firstName, link string) string {
	return fmt.Sprintf("Welcome to %s, %s!\n"+
		"Here is your referral link:\n%s\n\n"+
		"Share this link with others to invite them! To check the leaderboard, use the /board command.",
		company, firstName, link)
}

func leaderboardMessage(company string, entries []domain.LeaderboardEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Leaderboard - Top Referrers at %s:\n\n", company)
	for _, e := range entries {
		fmt.Fprintf(&sb, "🏅 %d. %s: %d invites\n", e.Rank, e.DisplayName, e.InviteCount)
	}
	return sb.String()
}
