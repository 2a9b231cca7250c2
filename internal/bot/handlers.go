package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lfp_bot/internal/model"
	"lfp_bot/internal/view"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to the Looking For Party bot!

I poll the looking-for-party board, mark new listings and alert you when
someone matching your filter shows up.

Quick start:
1. /list to see who is looking for a party
2. /level <min> <max> to narrow the level range
3. /jobs <JOB...> to only see certain jobs

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Browsing:
/list [page] show listings
/next, /prev move between pages
/pagesize <10|25|50|100> set rows per page
/status polling state and last update

Polling:
/refresh fetch now
/pause stop automatic refreshes
/resume fetch now and restart refreshes

Filtering:
/filter show the current filter
/search <text> match name or comment (empty clears)
/level <min> <max> level range, "any" for no bound
/main <JOB...> main job (empty clears)
/sub <JOB...> sub job (empty clears)
/jobs <JOB...> main or sub job (empty clears)
/sort <level|sublevel|name|none> [asc|desc]
/alerts on|off alert on new matching listings
/reset restore the default filter`)
}

func (b *Bot) handleList(chatID int64, args string) {
	var p view.Page
	if args == "" {
		p = b.dash.Page()
	} else {
		idx, err := ParsePageArg(args)
		if err != nil {
			b.reply(chatID, "Usage: /list [page]")
			return
		}
		p = b.dash.SetPage(idx)
	}
	b.sendPage(chatID, p)
}

func (b *Bot) sendPage(chatID int64, p view.Page) {
	msg := tgbotapi.NewMessage(chatID, truncate(FormatPage(p, b.dash.Catalog())))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = pageKeyboard(p)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send page", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleStatus(chatID int64) {
	b.reply(chatID, FormatStatus(b.dash.Status(), b.poll.Status(), b.clock()))
}

// handleRefresh answers right away and reports the result once the refresh
// finishes, which may take up to the fetcher's minimum interval.
func (b *Bot) handleRefresh(ctx context.Context, chatID int64) {
	if !b.refreshing.CompareAndSwap(false, true) {
		b.reply(chatID, "A refresh is already running.")
		return
	}
	b.reply(chatID, "Refreshing...")
	b.background(func() {
		defer b.refreshing.Store(false)
		if err := b.poll.RefreshNow(ctx); err != nil {
			b.reply(chatID, fmt.Sprintf("Refresh failed: %v", err))
			return
		}
		st := b.dash.Status()
		if st.LastError != "" {
			b.reply(chatID, fmt.Sprintf("Refresh failed: %s", st.LastError))
			return
		}
		b.reply(chatID, fmt.Sprintf("Refreshed: %d listings (%d new), %d matching.", st.Total, st.NewCount, st.Matches))
	})
}

func (b *Bot) handlePause(ctx context.Context, chatID int64) {
	if err := b.poll.Pause(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Automatic refresh paused. /refresh still works.")
}

func (b *Bot) handleResume(ctx context.Context, chatID int64) {
	if err := b.poll.Resume(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Automatic refresh resumed.")
}

// applyFilter updates the filter and replies with the result.
func (b *Bot) applyFilter(ctx context.Context, chatID int64, fn func(*model.FilterConfig)) {
	if err := b.dash.UpdateFilter(ctx, fn); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid filter: %v", err))
		return
	}
	p := b.dash.Page()
	b.reply(chatID, fmt.Sprintf("%s\n\n%d listing(s) match.", FormatFilter(b.dash.Filter()), p.Total))
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	b.applyFilter(ctx, chatID, func(cfg *model.FilterConfig) {
		cfg.SearchTerm = args
	})
}

func (b *Bot) handleLevel(ctx context.Context, chatID int64, args string) {
	lo, hi, err := ParseLevelArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyFilter(ctx, chatID, func(cfg *model.FilterConfig) {
		cfg.MinLevel, cfg.MaxLevel = lo, hi
	})
}

func (b *Bot) handleJobs(ctx context.Context, chatID int64, which, args string) {
	jobs, err := b.dash.Catalog().ParseJobs(strings.Fields(args))
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyFilter(ctx, chatID, func(cfg *model.FilterConfig) {
		switch which {
		case "main":
			cfg.MainJobs = jobs
		case "sub":
			cfg.SubJobs = jobs
		default:
			cfg.AnyJobs = jobs
		}
	})
}

func (b *Bot) handleSort(ctx context.Context, chatID int64, args string) {
	key, dir, err := ParseSortArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyFilter(ctx, chatID, func(cfg *model.FilterConfig) {
		cfg.SortKey, cfg.SortDirection = key, dir
	})
}

func (b *Bot) handlePageSize(chatID int64, args string) {
	n, err := ParsePageSize(args)
	if err == nil {
		err = b.dash.SetPageSize(n)
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /pagesize <%s>", joinInts(view.PageSizes)))
		return
	}
	b.reply(chatID, fmt.Sprintf("Showing %d listings per page.", n))
}

func (b *Bot) handleAlerts(ctx context.Context, chatID int64, args string) {
	on, err := ParseToggle(args)
	if err != nil {
		b.reply(chatID, "Usage: /alerts on|off")
		return
	}
	if err := b.dash.UpdateFilter(ctx, func(cfg *model.FilterConfig) { cfg.AlertsEnabled = on }); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	b.reply(chatID, fmt.Sprintf("Alerts %s.", state))
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	if err := b.dash.SetFilter(ctx, model.DefaultFilterConfig()); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Filter reset.\n\n"+FormatFilter(b.dash.Filter()))
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, "|")
}
