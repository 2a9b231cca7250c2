// Package dashboard holds the current view of the listings: the latest
// annotated snapshot, the user's filter and the page being shown.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"lfp_bot/internal/catalog"
	"lfp_bot/internal/filter"
	"lfp_bot/internal/model"
	"lfp_bot/internal/storage"
	"lfp_bot/internal/view"
)

// KeyFilter is the storage key of the persisted filter configuration.
const KeyFilter = "dashboard.filter"

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("dashboard closed")

// Fetcher retrieves the current snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
}

// Annotator flags new records and advances the novelty state.
type Annotator interface {
	Annotate(ctx context.Context, snap model.Snapshot, isRefresh bool) model.Snapshot
}

// Alerter compares consecutive filtered results and notifies on additions.
type Alerter interface {
	Evaluate(ctx context.Context, prev, next []model.Record, enabled bool) []model.Record
}

// Status summarizes the last refresh.
type Status struct {
	Loading     bool
	LastError   string
	LastUpdated time.Time
	// Total is the number of listings in the last snapshot.
	Total    int
	Matches  int
	NewCount int
}

// Service is safe for concurrent use.
type Service struct {
	fetcher Fetcher
	tracker Annotator
	alerts  Alerter
	catalog *catalog.Catalog
	kv      storage.KV
	log     *slog.Logger
	now     func() time.Time

	// refreshMu serializes Refresh so every snapshot is annotated once.
	refreshMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	cfg      model.FilterConfig
	records  model.Snapshot
	filtered []model.Record
	page     int
	pageSize int
	status   Status
}

// Options configures a Service.
type Options struct {
	Catalog  *catalog.Catalog
	PageSize int
	// KV persists the filter configuration. Nil disables persistence.
	KV storage.KV
}

// New creates a Service with the default filter configuration.
func New(f Fetcher, tracker Annotator, alerts Alerter, opts Options, log *slog.Logger) *Service {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if !view.ValidPageSize(opts.PageSize) {
		opts.PageSize = view.DefaultPageSize
	}
	return &Service{
		fetcher:  f,
		tracker:  tracker,
		alerts:   alerts,
		catalog:  opts.Catalog,
		kv:       opts.KV,
		log:      log,
		now:      time.Now,
		cfg:      model.DefaultFilterConfig(),
		pageSize: opts.PageSize,
	}
}

// LoadFilter restores the persisted filter configuration. A missing or
// invalid value keeps the default.
func (s *Service) LoadFilter(ctx context.Context) {
	if s.kv == nil {
		return
	}
	raw, err := s.kv.Get(ctx, KeyFilter)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("load filter", "error", err)
		return
	}

	var cfg model.FilterConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		s.log.Warn("decode filter", "error", err)
		return
	}
	if err := filter.Validate(cfg, s.catalog); err != nil {
		s.log.Warn("discard persisted filter", "error", err)
		return
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Refresh fetches a snapshot and updates the view. Results that arrive after
// ctx is done or after Close are discarded before they touch novelty state.
// A failed fetch keeps the previous records on display.
func (s *Service) Refresh(ctx context.Context, isRefresh bool) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status.Loading = true
	s.mu.Unlock()

	snap, err := s.fetcher.Fetch(ctx)

	s.mu.Lock()
	s.status.Loading = false
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case ctx.Err() != nil:
		s.mu.Unlock()
		return ctx.Err()
	case err != nil:
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	// Annotate under mu so Close cannot return while novelty state advances.
	annotated := s.tracker.Annotate(ctx, snap, isRefresh)
	cfg := s.cfg
	prev := s.filtered
	filtered := filter.Evaluate(annotated, cfg)

	newCount := 0
	for _, r := range annotated {
		if r.IsNew {
			newCount++
		}
	}

	s.records = annotated
	s.filtered = filtered
	s.status = Status{
		LastUpdated: s.now(),
		Total:       len(annotated),
		Matches:     len(filtered),
		NewCount:    newCount,
	}
	s.mu.Unlock()

	s.log.Debug("dashboard refreshed", "total", len(annotated), "matches", len(filtered), "new", newCount)

	s.alerts.Evaluate(ctx, prev, filtered, cfg.AlertsEnabled)
	return nil
}

// SetFilter validates and applies cfg. The page resets to the first one and
// the re-filtered records become the alert baseline without alerting.
func (s *Service) SetFilter(ctx context.Context, cfg model.FilterConfig) error {
	if err := filter.Validate(cfg, s.catalog); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.page = 0
	if s.records != nil {
		s.filtered = filter.Evaluate(s.records, cfg)
		s.status.Matches = len(s.filtered)
	}
	s.mu.Unlock()

	s.saveFilter(ctx, cfg)
	return nil
}

// UpdateFilter applies fn to a copy of the current configuration and
// stores the result through SetFilter.
func (s *Service) UpdateFilter(ctx context.Context, fn func(*model.FilterConfig)) error {
	cfg := s.Filter()
	fn(&cfg)
	return s.SetFilter(ctx, cfg)
}

func (s *Service) saveFilter(ctx context.Context, cfg model.FilterConfig) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		s.log.Warn("encode filter", "error", err)
		return
	}
	if err := s.kv.Set(ctx, KeyFilter, string(data)); err != nil {
		s.log.Warn("save filter", "error", err)
	}
}

// Filter returns the current filter configuration.
func (s *Service) Filter() model.FilterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetPage selects page i, clamped to the available pages.
func (s *Service) SetPage(i int) view.Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := view.PageCount(len(s.filtered), s.pageSize) - 1
	s.page = max(min(i, last), 0)
	return s.pageLocked()
}

// NextPage advances one page, staying on the last page.
func (s *Service) NextPage() view.Page {
	return s.SetPage(s.Page().Index + 1)
}

// PrevPage goes back one page, staying on the first page.
func (s *Service) PrevPage() view.Page {
	return s.SetPage(s.Page().Index - 1)
}

// SetPageSize changes the page size and returns to the first page.
func (s *Service) SetPageSize(n int) error {
	if !view.ValidPageSize(n) {
		return fmt.Errorf("page size must be one of %v", view.PageSizes)
	}
	s.mu.Lock()
	s.pageSize = n
	s.page = 0
	s.mu.Unlock()
	return nil
}

// Page returns the current page of filtered, sorted records.
func (s *Service) Page() view.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked()
}

func (s *Service) pageLocked() view.Page {
	return view.Project(s.filtered, s.cfg.SortKey, s.cfg.SortDirection, s.page, s.pageSize)
}

// Status returns the state of the last refresh.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Catalog returns the catalog used to validate filters.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Close makes pending and future refreshes discard their results. Once Close
// returns, no refresh changes novelty state.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
