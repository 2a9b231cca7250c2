// Package bot exposes the listing dashboard as a Telegram bot.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lfp_bot/internal/catalog"
	"lfp_bot/internal/config"
	"lfp_bot/internal/dashboard"
	"lfp_bot/internal/model"
	"lfp_bot/internal/scheduler"
	"lfp_bot/internal/view"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dashboard is the view state the bot renders and edits.
type Dashboard interface {
	Page() view.Page
	SetPage(i int) view.Page
	NextPage() view.Page
	PrevPage() view.Page
	SetPageSize(n int) error
	Filter() model.FilterConfig
	SetFilter(ctx context.Context, cfg model.FilterConfig) error
	UpdateFilter(ctx context.Context, fn func(*model.FilterConfig)) error
	Status() dashboard.Status
	Catalog() *catalog.Catalog
}

// Poller controls the refresh schedule.
type Poller interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	RefreshNow(ctx context.Context) error
	Status() scheduler.Status
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api   telegramAPI
	dash  Dashboard
	poll  Poller
	cfg   *config.Config
	log   *slog.Logger
	clock func() time.Time

	// refreshing is set while a manual refresh runs off the update loop.
	refreshing atomic.Bool
	tasks      sync.WaitGroup
}

// New creates a Bot with the given Telegram token.
func New(token string, dash Dashboard, poll Poller, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		dash:  dash,
		poll:  poll,
		cfg:   cfg,
		log:   log,
		clock: time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.tasks.Wait()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

// background runs fn outside the update loop. Run waits for it on shutdown.
func (b *Bot) background(fn func()) {
	b.tasks.Add(1)
	go func() {
		defer b.tasks.Done()
		fn()
	}()
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdList:
		b.handleList(chatID, args)
	case "next":
		b.sendPage(chatID, b.dash.NextPage())
	case "prev":
		b.sendPage(chatID, b.dash.PrevPage())
	case "status":
		b.handleStatus(chatID)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID)
	case "pause":
		b.handlePause(ctx, chatID)
	case "resume":
		b.handleResume(ctx, chatID)
	case "filter":
		b.reply(chatID, FormatFilter(b.dash.Filter()))
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "level":
		b.handleLevel(ctx, chatID, args)
	case "main", "sub", "jobs":
		b.handleJobs(ctx, chatID, cmd, args)
	case "sort":
		b.handleSort(ctx, chatID, args)
	case "pagesize":
		b.handlePageSize(chatID, args)
	case "alerts":
		b.handleAlerts(ctx, chatID, args)
	case "reset":
		b.handleReset(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
