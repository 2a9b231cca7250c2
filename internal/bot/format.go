package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"lfp_bot/internal/catalog"
	"lfp_bot/internal/dashboard"
	"lfp_bot/internal/model"
	"lfp_bot/internal/scheduler"
	"lfp_bot/internal/view"
)

// maxMessageLen stays below Telegram's 4096 character message limit.
const maxMessageLen = 4000

const maxComment = 80

// FormatRecord formats one listing. n is its 1-based position in the view.
func FormatRecord(n int, r model.Record, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s %s%d", n, r.Name, r.MainJob, r.MainLevel)
	if r.SubJob != "" {
		fmt.Fprintf(&b, "/%s%d", r.SubJob, r.SubLevel)
	}
	fmt.Fprintf(&b, " [%s]", cat.ChannelLabel(r.Channel))
	if r.IsNew {
		b.WriteString(" NEW")
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		b.WriteString("\n   ")
		b.WriteString(shorten(msg, maxComment))
	}
	return b.String()
}

// FormatPage formats a page of listings with a position header.
func FormatPage(p view.Page, cat *catalog.Catalog) string {
	if p.Total == 0 {
		return "No listings match the current filter."
	}
	if len(p.Records) == 0 {
		return fmt.Sprintf("Page %d is empty; there are %d page(s).", p.Index+1, p.Count())
	}

	first := p.Index*p.Size + 1
	var b strings.Builder
	fmt.Fprintf(&b, "Listings %d-%d of %d (page %d/%d)\n",
		first, first+len(p.Records)-1, p.Total, p.Index+1, p.Count())
	for i, r := range p.Records {
		b.WriteString("\n")
		b.WriteString(FormatRecord(first+i, r, cat))
	}
	return b.String()
}

// FormatStatus formats the refresh and polling state.
func FormatStatus(ds dashboard.Status, ss scheduler.Status, now time.Time) string {
	var b strings.Builder
	switch {
	case ds.Loading || ss.State == scheduler.Fetching:
		b.WriteString("Polling: fetching now\n")
	case ss.State == scheduler.Paused:
		b.WriteString("Polling: paused\n")
	case ss.State == scheduler.Scheduled:
		fmt.Fprintf(&b, "Polling: next refresh in %ds\n", int(ss.Countdown/time.Second))
	default:
		b.WriteString("Polling: idle\n")
	}

	if ds.LastUpdated.IsZero() {
		b.WriteString("Last update: never\n")
	} else {
		fmt.Fprintf(&b, "Last update: %s\n", humanize.RelTime(ds.LastUpdated, now, "ago", "from now"))
	}
	fmt.Fprintf(&b, "Listings: %d (%d new), matching filter: %d", ds.Total, ds.NewCount, ds.Matches)
	if ds.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", ds.LastError)
	}
	return b.String()
}

// FormatFilter formats the current filter configuration.
func FormatFilter(cfg model.FilterConfig) string {
	var b strings.Builder
	b.WriteString("Current filter:\n")
	fmt.Fprintf(&b, "Search: %s\n", orAny(cfg.SearchTerm))
	fmt.Fprintf(&b, "Level: %s-%s\n", boundLabel(cfg.MinLevel), boundLabel(cfg.MaxLevel))
	fmt.Fprintf(&b, "Main job: %s\n", jobsLabel(cfg.MainJobs))
	fmt.Fprintf(&b, "Sub job: %s\n", jobsLabel(cfg.SubJobs))
	fmt.Fprintf(&b, "Main or sub job: %s\n", jobsLabel(cfg.AnyJobs))

	sort := "none"
	if cfg.SortKey != model.SortNone {
		dir := cfg.SortDirection
		if dir == "" {
			dir = model.Ascending
		}
		sort = fmt.Sprintf("%s %s", cfg.SortKey, dir)
	}
	fmt.Fprintf(&b, "Sort: %s\n", sort)

	alerts := "off"
	if cfg.AlertsEnabled {
		alerts = "on"
	}
	fmt.Fprintf(&b, "Alerts: %s", alerts)
	return b.String()
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func boundLabel(n int) string {
	if n == 0 {
		return "any"
	}
	return fmt.Sprint(n)
}

func jobsLabel(jobs []model.Job) string {
	if len(jobs) == 0 {
		return "any"
	}
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		parts[i] = string(j)
	}
	return strings.Join(parts, ", ")
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := strings.LastIndex(s[:maxMessageLen], "\n")
	if cut <= 0 {
		cut = maxMessageLen
	}
	return s[:cut] + "\n…"
}
