// Package telegram delivers signal alerts to a chat and exposes the
// engine's control surface as bot commands.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/adapters/config"
	"github.com/mkryl/sigflow/internal/signals"
	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// Controller is the engine control surface the bot drives
type Controller interface {
	Start(ctx context.Context) models.EngineState
	Stop() models.EngineState
	Status() models.EngineStatus
}

// Bot sends signal alerts and handles control commands
type Bot struct {
	api        *tgbotapi.BotAPI
	chatID     int64
	controller Controller
	store      signals.Store
	appCtx     context.Context
}

// NewBot creates a Telegram bot
func NewBot(cfg *config.TelegramConfig, controller Controller, store signals.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("telegram bot initialized",
		zap.String("username", api.Self.UserName),
	)

	return &Bot{
		api:        api,
		chatID:     cfg.ChatID,
		controller: controller,
		store:      store,
	}, nil
}

// Name implements alerts.Destination
func (b *Bot) Name() string {
	return "telegram"
}

// Send delivers a signal alert to the configured chat
func (b *Bot) Send(ctx context.Context, sig *models.Signal) error {
	msg := tgbotapi.NewMessage(b.chatID, formatSignal(sig))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}

// Start listens for control commands until ctx ends
func (b *Bot) Start(ctx context.Context) error {
	b.appCtx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	logger.Info("telegram bot listening for commands")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				continue
			}
			go b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()

	logger.Info("received telegram command",
		zap.String("command", command),
	)

	var reply string
	switch command {
	case "status":
		reply = formatStatus(b.controller.Status())
	case "stop":
		state := b.controller.Stop()
		reply = fmt.Sprintf("Engine state: <b>%s</b>", state)
	case "resume", "start":
		state := b.controller.Start(b.appCtx)
		reply = fmt.Sprintf("Engine state: <b>%s</b>", state)
	case "signals":
		reply = b.recentSignals(ctx)
	case "help":
		reply = "Commands: /status /stop /resume /signals"
	default:
		return
	}

	msg := tgbotapi.NewMessage(b.chatID, reply)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		logger.Error("failed to send command reply", zap.Error(err))
	}
}

func (b *Bot) recentSignals(ctx context.Context) string {
	rows, err := b.store.Query(ctx, signals.Filter{Limit: 5})
	if err != nil {
		return fmt.Sprintf("Query failed: %v", err)
	}
	if len(rows) == 0 {
		return "No signals yet."
	}

	var sb strings.Builder
	sb.WriteString("<b>Recent signals</b>\n")
	for _, sig := range rows {
		fmt.Fprintf(&sb, "%s <b>%s</b> %s @ %s (%.0f%%)\n",
			sig.CreatedAt.Format("01-02 15:04"),
			strings.ToUpper(string(sig.Direction)),
			sig.Symbol,
			sig.Price.StringFixed(2),
			sig.Confidence,
		)
	}
	return sb.String()
}

func formatSignal(sig *models.Signal) string {
	emoji := "ℹ️"
	switch sig.Direction {
	case models.DirectionBuy:
		emoji = "🟢"
	case models.DirectionSell:
		emoji = "🔴"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s %s</b>\n", emoji, strings.ToUpper(string(sig.Direction)), sig.Symbol)
	fmt.Fprintf(&sb, "Price: %s\n", sig.Price.StringFixed(2))
	if sig.Direction != models.DirectionInfo {
		fmt.Fprintf(&sb, "Target: %s | Stop: %s (R:R %.1f)\n",
			sig.Target.StringFixed(2), sig.Stop.StringFixed(2), sig.RiskReward)
	}
	fmt.Fprintf(&sb, "Strategy: %s (%s)\n", sig.Strategy, sig.Timeframe)
	fmt.Fprintf(&sb, "Confidence: %.0f%%\n", sig.Confidence)
	fmt.Fprintf(&sb, "%s", sig.Rationale)
	return sb.String()
}

func formatStatus(status models.EngineStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Engine: %s</b>\n", status.State)
	fmt.Fprintf(&sb, "Cycles: %d | Signals: %d | Rejections: %d\n",
		status.CycleCount, status.TotalSignals, status.TotalRejections)
	if !status.LastCycleAt.IsZero() {
		fmt.Fprintf(&sb, "Last cycle: %s ago\n", time.Since(status.LastCycleAt).Round(time.Second))
	}
	if status.LastReport != "" {
		fmt.Fprintf(&sb, "\n%s", status.LastReport)
	}
	return sb.String()
}
