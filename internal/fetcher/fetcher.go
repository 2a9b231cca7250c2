// Package fetcher downloads and parses the looking-for-party listing snapshot.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lfp_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	listingPath  = "/chars/lfp"
	maxBodyBytes = 5 * 1024 * 1024
)

// Options tune a Fetcher. Zero values select the defaults.
type Options struct {
	// MinInterval is the minimum time between two requests. Calls made
	// earlier wait until the interval has lapsed.
	MinInterval time.Duration
	// Timeout bounds a single request.
	Timeout time.Duration
}

// Fetcher downloads listing snapshots. At most one request is in flight at a
// time: concurrent callers share the result of the running request.
type Fetcher struct {
	client      HTTPClient
	url         string
	minInterval time.Duration
	timeout     time.Duration

	group singleflight.Group

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a Fetcher for the API rooted at baseURL.
func New(client HTTPClient, baseURL string, opts Options) *Fetcher {
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Fetcher{
		client:      client,
		url:         strings.TrimRight(baseURL, "/") + listingPath,
		minInterval: opts.MinInterval,
		timeout:     opts.Timeout,
	}
}

// URL returns the listing endpoint this Fetcher polls.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch downloads and parses the current snapshot.
func (f *Fetcher) Fetch(ctx context.Context) (model.Snapshot, error) {
	v, err, _ := f.group.Do("snapshot", func() (any, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(model.Snapshot), nil
}

func (f *Fetcher) fetch(ctx context.Context) (model.Snapshot, error) {
	if err := f.throttle(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", "LFPBot/1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}

	return Parse(body)
}

// throttle waits until MinInterval has passed since the previous request and
// then claims the slot for this one.
func (f *Fetcher) throttle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lastRequest.IsZero() {
		if wait := f.minInterval - time.Since(f.lastRequest); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	f.lastRequest = time.Now()
	return nil
}
