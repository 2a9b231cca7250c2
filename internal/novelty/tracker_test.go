package novelty

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lfp_bot/internal/model"
	"lfp_bot/internal/storage"
)

func newTestKV(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrackerPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	first := NewTracker(kv, discardLogger())
	first.Load(ctx)
	first.Annotate(ctx, snapshotOf("1", "2"), false)
	first.Annotate(ctx, snapshotOf("1", "2", "3"), true)
	first.Annotate(ctx, snapshotOf("3"), true)

	restarted := NewTracker(kv, discardLogger())
	restarted.Load(ctx)

	if diff := cmp.Diff(first.Snapshot(), restarted.Snapshot()); diff != "" {
		t.Errorf("state after restart mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []model.Identity{"1", "2", "3"} {
		if !restarted.Snapshot().IsKnown(id) {
			t.Errorf("identity %s lost across restart", id)
		}
	}

	// 3 was seeded two cycles ago and expires on this refresh.
	got := restarted.Annotate(ctx, snapshotOf("3", "4"), true)
	want := map[model.Identity]bool{"3": false, "4": true}
	if diff := cmp.Diff(want, flags(got)); diff != "" {
		t.Errorf("flags after restart mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerPersistedFormat(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	tr := NewTracker(kv, discardLogger())
	tr.Annotate(ctx, snapshotOf("b", "a"), false)
	tr.Annotate(ctx, snapshotOf("c"), true)

	known, err := kv.Get(ctx, KeyKnown)
	if err != nil {
		t.Fatalf("get known: %v", err)
	}
	if diff := cmp.Diff(`["a","b","c"]`, known); diff != "" {
		t.Errorf("known encoding mismatch (-want +got):\n%s", diff)
	}

	recency, err := kv.Get(ctx, KeyRecency)
	if err != nil {
		t.Fatalf("get recency: %v", err)
	}
	if diff := cmp.Diff(`[["a",1],["b",1],["c",0]]`, recency); diff != "" {
		t.Errorf("recency encoding mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerLoadFallsBackOnCorruptState(t *testing.T) {
	tests := []struct {
		name        string
		known       string
		recency     string
		wantKnown   []model.Identity
		wantRecency map[model.Identity]int
	}{
		{
			name:        "both corrupt",
			known:       "{not json",
			recency:     "42",
			wantKnown:   nil,
			wantRecency: map[model.Identity]int{},
		},
		{
			name:        "corrupt recency keeps known",
			known:       `["1", 2]`,
			recency:     `[["1"]]`,
			wantKnown:   []model.Identity{"1", "2"},
			wantRecency: map[model.Identity]int{},
		},
		{
			name:        "recency count out of range",
			known:       `["1"]`,
			recency:     `[["1", 5]]`,
			wantKnown:   []model.Identity{"1"},
			wantRecency: map[model.Identity]int{},
		},
		{
			name:        "recency entry missing from known is adopted",
			known:       `[]`,
			recency:     `[["9", 1]]`,
			wantKnown:   []model.Identity{"9"},
			wantRecency: map[model.Identity]int{"9": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := newTestKV(t)
			if err := kv.Set(ctx, KeyKnown, tt.known); err != nil {
				t.Fatalf("seed known: %v", err)
			}
			if err := kv.Set(ctx, KeyRecency, tt.recency); err != nil {
				t.Fatalf("seed recency: %v", err)
			}

			tr := NewTracker(kv, discardLogger())
			tr.Load(ctx)
			got := tr.Snapshot()

			if diff := cmp.Diff(len(tt.wantKnown), len(got.Known)); diff != "" {
				t.Errorf("known size mismatch (-want +got):\n%s", diff)
			}
			for _, id := range tt.wantKnown {
				if !got.IsKnown(id) {
					t.Errorf("expected %s to be known", id)
				}
			}
			if diff := cmp.Diff(tt.wantRecency, got.Recency); diff != "" {
				t.Errorf("recency mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("disk on fire") }
func (failingKV) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingKV) Delete(context.Context, string) error { return errors.New("disk on fire") }
func (failingKV) Close() error { return nil }

func TestTrackerSurvivesStorageFailure(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(failingKV{}, discardLogger())
	tr.Load(ctx)

	got := tr.Annotate(ctx, snapshotOf("1"), false)
	if !got[0].IsNew {
		t.Error("expected record to be new")
	}
	if !tr.Snapshot().IsKnown("1") {
		t.Error("in-memory state must be updated even when persisting fails")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := NewState()
	_, s = Annotate(snapshotOf("1", "2", "3"), s, false)
	_, s = Annotate(snapshotOf("4"), s, true)
	_, s = Annotate(snapshotOf("5"), s, true)

	known, err := EncodeKnown(s)
	if err != nil {
		t.Fatalf("encode known: %v", err)
	}
	recency, err := EncodeRecency(s)
	if err != nil {
		t.Fatalf("encode recency: %v", err)
	}

	gotKnown, err := DecodeKnown(known)
	if err != nil {
		t.Fatalf("decode known: %v", err)
	}
	gotRecency, err := DecodeRecency(recency)
	if err != nil {
		t.Fatalf("decode recency: %v", err)
	}

	if diff := cmp.Diff(s, State{Known: gotKnown, Recency: gotRecency}); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	// 1, 2 and 3 expired from the window but stay known.
	for _, id := range []model.Identity{"1", "2", "3"} {
		if _, ok := gotKnown[id]; !ok {
			t.Errorf("identity %s lost after round trip", id)
		}
	}
}
