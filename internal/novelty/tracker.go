package novelty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"lfp_bot/internal/model"
	"lfp_bot/internal/storage"
)

// Keys under which the state is persisted.
const (
	KeyKnown   = "novelty.known_identities"
	KeyRecency = "novelty.recency_counters"
)

// Tracker owns the process-wide novelty state and persists it after every
// change. Annotate calls are serialized.
type Tracker struct {
	kv  storage.KV
	log *slog.Logger

	mu    sync.Mutex
	state State
}

// NewTracker creates a Tracker with an empty state. Call Load to restore the
// persisted state.
func NewTracker(kv storage.KV, log *slog.Logger) *Tracker {
	return &Tracker{kv: kv, log: log, state: NewState()}
}

// Load restores the persisted state. Missing or corrupt values are replaced
// with empty collections and logged; Load itself never fails.
func (t *Tracker) Load(ctx context.Context) {
	known, err := t.loadKnown(ctx)
	if err != nil {
		t.log.Warn("reset known identities", "key", KeyKnown, "error", err)
		known = make(map[model.Identity]struct{})
	}
	recency, err := t.loadRecency(ctx)
	if err != nil {
		t.log.Warn("reset recency counters", "key", KeyRecency, "error", err)
		recency = make(map[model.Identity]int)
	}

	for id := range recency {
		known[id] = struct{}{}
	}

	t.mu.Lock()
	t.state = State{Known: known, Recency: recency}
	t.mu.Unlock()

	t.log.Info("novelty state loaded", "known", len(known), "recent", len(recency))
}

// Annotate flags new records in snap, updates the state and persists it.
// Persistence failures are logged; the in-memory state stays authoritative.
func (t *Tracker) Annotate(ctx context.Context, snap model.Snapshot, isRefresh bool) model.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, next := Annotate(snap, t.state, isRefresh)
	t.state = next

	if err := t.save(ctx, next); err != nil {
		t.log.Error("persist novelty state", "error", err)
	}
	return out
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Tracker) save(ctx context.Context, s State) error {
	known, err := EncodeKnown(s)
	if err != nil {
		return err
	}
	recency, err := EncodeRecency(s)
	if err != nil {
		return err
	}
	if err := t.kv.Set(ctx, KeyKnown, known); err != nil {
		return fmt.Errorf("save known identities: %w", err)
	}
	if err := t.kv.Set(ctx, KeyRecency, recency); err != nil {
		return fmt.Errorf("save recency counters: %w", err)
	}
	return nil
}

func (t *Tracker) loadKnown(ctx context.Context) (map[model.Identity]struct{}, error) {
	raw, err := t.kv.Get(ctx, KeyKnown)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[model.Identity]struct{}), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeKnown(raw)
}

func (t *Tracker) loadRecency(ctx context.Context) (map[model.Identity]int, error) {
	raw, err := t.kv.Get(ctx, KeyRecency)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[model.Identity]int), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeRecency(raw)
}

// EncodeKnown serializes the known set as a sorted JSON array of identities.
func EncodeKnown(s State) (string, error) {
	ids := make([]string, 0, len(s.Known))
	for id := range s.Known {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode known identities: %w", err)
	}
	return string(b), nil
}

// EncodeRecency serializes the recency map as a JSON array of [identity, count] pairs.
func EncodeRecency(s State) (string, error) {
	ids := make([]string, 0, len(s.Recency))
	for id := range s.Recency {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	pairs := make([][2]any, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]any{id, s.Recency[model.Identity(id)]})
	}
	b, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode recency counters: %w", err)
	}
	return string(b), nil
}

// DecodeKnown parses the output of EncodeKnown. Numeric identities written
// by older clients are accepted.
func DecodeKnown(raw string) (map[model.Identity]struct{}, error) {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode known identities: %w", err)
	}
	known := make(map[model.Identity]struct{}, len(items))
	for _, v := range items {
		id, ok := identityOf(v)
		if !ok {
			return nil, fmt.Errorf("decode known identities: bad identity %v", v)
		}
		known[id] = struct{}{}
	}
	return known, nil
}

// DecodeRecency parses the output of EncodeRecency.
func DecodeRecency(raw string) (map[model.Identity]int, error) {
	var pairs [][]any
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("decode recency counters: %w", err)
	}
	recency := make(map[model.Identity]int, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("decode recency counters: pair of length %d", len(p))
		}
		id, ok := identityOf(p[0])
		if !ok {
			return nil, fmt.Errorf("decode recency counters: bad identity %v", p[0])
		}
		n, ok := p[1].(float64)
		if !ok || n < 0 || n >= GraceCycles || n != float64(int(n)) {
			return nil, fmt.Errorf("decode recency counters: bad count %v for %s", p[1], id)
		}
		recency[id] = int(n)
	}
	return recency, nil
}

func identityOf(v any) (model.Identity, bool) {
	switch x := v.(type) {
	case string:
		return model.Identity(x), x != ""
	case float64:
		if x != float64(int64(x)) {
			return "", false
		}
		return model.Identity(strconv.FormatInt(int64(x), 10)), true
	}
	return "", false
}
