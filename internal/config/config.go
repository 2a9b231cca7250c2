// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"lfp_bot/internal/view"
)

// DefaultAPIBaseURL is the listing API used when API_BASE_URL is unset.
const DefaultAPIBaseURL = "https://api.horizonxi.com/api/v1"

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	// RedisURL selects Redis for persisted state instead of SQLite.
	RedisURL     string
	LogLevel     string
	AllowedUsers []int64
	// NotifyChatIDs receive alert messages for new listings.
	NotifyChatIDs []int64

	APIBaseURL       string
	MinFetchInterval time.Duration
	PollBase         time.Duration
	PollJitter       time.Duration
	RequestTimeout   time.Duration

	PageSize      int
	DesktopAlerts bool
	CatalogPath   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     getenv("DATABASE_PATH", "./data/lfp.db"),
		RedisURL:         os.Getenv("REDIS_URL"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		APIBaseURL:       strings.TrimRight(getenv("API_BASE_URL", DefaultAPIBaseURL), "/"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
	}

	var err error
	if cfg.AllowedUsers, err = parseIDs("ALLOWED_USERS"); err != nil {
		return nil, err
	}
	if cfg.NotifyChatIDs, err = parseIDs("NOTIFY_CHAT_IDS"); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dst  *time.Duration
		zero bool
	}{
		{key: "MIN_FETCH_INTERVAL", def: 60 * time.Second, dst: &cfg.MinFetchInterval, zero: true},
		{key: "POLL_BASE", def: 60 * time.Second, dst: &cfg.PollBase},
		{key: "POLL_JITTER", def: 40 * time.Second, dst: &cfg.PollJitter, zero: true},
		{key: "REQUEST_TIMEOUT", def: 10 * time.Second, dst: &cfg.RequestTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def, d.zero); err != nil {
			return nil, err
		}
	}

	cfg.PageSize = view.DefaultPageSize
	if raw := os.Getenv("PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !view.ValidPageSize(n) {
			return nil, fmt.Errorf("PAGE_SIZE must be one of %v, got %q", view.PageSizes, raw)
		}
		cfg.PageSize = n
	}

	if raw := os.Getenv("DESKTOP_ALERTS"); raw != "" {
		if cfg.DesktopAlerts, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid DESKTOP_ALERTS %q: %w", raw, err)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIDs(key string) ([]int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q in %s: %w", s, key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDuration(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}
