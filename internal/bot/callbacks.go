package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lfp_bot/internal/view"
)

const (
	cmdList    = "list"
	cmdRefresh = "refresh"
	cbPage     = "page"
)

// pageKeyboard returns the navigation buttons for p.
func pageKeyboard(p view.Page) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if p.Index > 0 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« Prev", fmt.Sprintf("%s:%d", cbPage, p.Index-1)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdRefresh+":0"))
	if p.Index < p.Count()-1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next »", fmt.Sprintf("%s:%d", cbPage, p.Index+1)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	arg, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbPage:
		b.editPage(chatID, cb.Message.MessageID, b.dash.SetPage(arg))
	case cmdRefresh:
		if !b.refreshing.CompareAndSwap(false, true) {
			return
		}
		messageID := cb.Message.MessageID
		b.background(func() {
			defer b.refreshing.Store(false)
			if err := b.poll.RefreshNow(ctx); err != nil {
				b.reply(chatID, fmt.Sprintf("Refresh failed: %v", err))
				return
			}
			b.editPage(chatID, messageID, b.dash.Page())
		})
	}
}

// editPage replaces the text and buttons of a previously sent page.
func (b *Bot) editPage(chatID int64, messageID int, p view.Page) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
		truncate(FormatPage(p, b.dash.Catalog())), pageKeyboard(p))
	edit.DisableWebPagePreview = true
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("edit page", "chat_id", chatID, "error", err)
	}
}
