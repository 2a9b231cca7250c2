// Package filter implements the listing predicate evaluator.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"lfp_bot/internal/catalog"
	"lfp_bot/internal/model"
)

// Match checks whether a record passes every active predicate of cfg.
// Predicates are AND-combined; an unset bound or an empty job list does not
// restrict anything.
func Match(r model.Record, cfg model.FilterConfig) bool {
	if cfg.MinLevel > 0 && r.MainLevel < cfg.MinLevel {
		return false
	}
	if cfg.MaxLevel > 0 && r.MainLevel > cfg.MaxLevel {
		return false
	}
	if len(cfg.MainJobs) > 0 && !slices.Contains(cfg.MainJobs, r.MainJob) {
		return false
	}
	if len(cfg.SubJobs) > 0 && !slices.Contains(cfg.SubJobs, r.SubJob) {
		return false
	}
	if len(cfg.AnyJobs) > 0 && !slices.Contains(cfg.AnyJobs, r.MainJob) && !slices.Contains(cfg.AnyJobs, r.SubJob) {
		return false
	}
	return matchesSearch(r, cfg.SearchTerm)
}

func matchesSearch(r model.Record, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(r.Name), term) ||
		strings.Contains(strings.ToLower(r.Message), term)
}

// Evaluate returns the records that match cfg, preserving their order.
func Evaluate(records []model.Record, cfg model.FilterConfig) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Match(r, cfg) {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks cfg against the catalog: level bounds must lie in
// [1, LevelCap] with min not above max, and every job must be known.
func Validate(cfg model.FilterConfig, c *catalog.Catalog) error {
	for _, b := range []struct {
		name  string
		value int
	}{{"min level", cfg.MinLevel}, {"max level", cfg.MaxLevel}} {
		if b.value < 0 || b.value > c.LevelCap {
			return fmt.Errorf("%s must be between 1 and %d", b.name, c.LevelCap)
		}
	}
	if cfg.MinLevel > 0 && cfg.MaxLevel > 0 && cfg.MinLevel > cfg.MaxLevel {
		return fmt.Errorf("min level %d is above max level %d", cfg.MinLevel, cfg.MaxLevel)
	}
	for _, jobs := range [][]model.Job{cfg.MainJobs, cfg.SubJobs, cfg.AnyJobs} {
		for _, j := range jobs {
			if !c.HasJob(j) {
				return fmt.Errorf("unknown job %q", j)
			}
		}
	}
	switch cfg.SortKey {
	case model.SortNone, model.SortLevel, model.SortSubLevel, model.SortName:
	default:
		return fmt.Errorf("unknown sort key %q", cfg.SortKey)
	}
	switch cfg.SortDirection {
	case "", model.Ascending, model.Descending:
	default:
		return fmt.Errorf("unknown sort direction %q", cfg.SortDirection)
	}
	return nil
}
