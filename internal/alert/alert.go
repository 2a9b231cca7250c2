// Package alert signals newly appeared listings to the user.
package alert

import (
	"context"
	"log/slog"

	"lfp_bot/internal/model"
)

// Sink delivers one alert for a batch of new listings.
type Sink interface {
	Name() string
	Alert(ctx context.Context, records []model.Record) error
}

// Trigger compares consecutive filtered results and fires its sinks once
// per batch of newly appeared listings.
type Trigger struct {
	sinks []Sink
	log   *slog.Logger
}

// NewTrigger creates a Trigger that fires every sink in order.
func NewTrigger(log *slog.Logger, sinks ...Sink) *Trigger {
	return &Trigger{sinks: sinks, log: log}
}

// AddSink registers another sink. It must not be called concurrently with
// Evaluate.
func (t *Trigger) AddSink(s Sink) {
	t.sinks = append(t.sinks, s)
}

// NewlyAppeared returns the records of next whose identity is absent from prev.
func NewlyAppeared(prev, next []model.Record) []model.Record {
	seen := model.Snapshot(prev).Identities()
	var out []model.Record
	for _, r := range next {
		if _, ok := seen[r.Identity]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate fires the sinks when alerts are enabled and next holds listings
// absent from prev. A nil prev means there is no baseline yet and never
// alerts. Sink failures are logged and otherwise ignored. It returns the
// newly appeared records.
func (t *Trigger) Evaluate(ctx context.Context, prev, next []model.Record, enabled bool) []model.Record {
	if prev == nil {
		return nil
	}
	appeared := NewlyAppeared(prev, next)
	if !enabled || len(appeared) == 0 {
		return appeared
	}

	t.log.Info("new listings", "count", len(appeared))
	for _, s := range t.sinks {
		if err := s.Alert(ctx, appeared); err != nil {
			t.log.Warn("alert sink failed", "sink", s.Name(), "error", err)
		}
	}
	return appeared
}
