// Package view orders filtered listings and slices them into pages.
package view

import (
	"cmp"
	"slices"
	"strings"

	"lfp_bot/internal/model"
)

// DefaultPageSize is the number of rows shown per page.
const DefaultPageSize = 25

// PageSizes are the page sizes a user may choose from.
var PageSizes = []int{10, 25, 50, 100}

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool {
	return slices.Contains(PageSizes, n)
}

// Page is one window of an ordered listing.
type Page struct {
	Records []model.Record
	Index   int
	Size    int
	// Total is the number of records across all pages.
	Total int
}

// Count returns the number of pages needed to show Total records.
func (p Page) Count() int {
	return PageCount(p.Total, p.Size)
}

// PageCount returns how many pages of size records total records need.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Sort returns a copy of records ordered by key. Equal keys keep their
// relative order, including under Descending. SortNone returns the records
// in their incoming order.
func Sort(records []model.Record, key model.SortKey, dir model.SortDirection) []model.Record {
	out := slices.Clone(records)
	less := comparator(key)
	if less == nil {
		return out
	}
	if dir == model.Descending {
		asc := less
		less = func(a, b model.Record) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, less)
	return out
}

func comparator(key model.SortKey) func(a, b model.Record) int {
	switch key {
	case model.SortLevel:
		return func(a, b model.Record) int { return cmp.Compare(a.MainLevel, b.MainLevel) }
	case model.SortSubLevel:
		return func(a, b model.Record) int { return cmp.Compare(a.SubLevel, b.SubLevel) }
	case model.SortName:
		return func(a, b model.Record) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	return nil
}

// Project sorts records and returns page pageIndex of size pageSize.
// A page past the end is empty. A non-positive pageSize selects
// DefaultPageSize and a negative pageIndex is treated as 0.
func Project(records []model.Record, key model.SortKey, dir model.SortDirection, pageIndex, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageIndex < 0 {
		pageIndex = 0
	}

	sorted := Sort(records, key, dir)
	p := Page{Index: pageIndex, Size: pageSize, Total: len(sorted)}

	if pageIndex >= PageCount(len(sorted), pageSize) {
		p.Records = []model.Record{}
		return p
	}
	start := pageIndex * pageSize
	end := min(start+pageSize, len(sorted))
	p.Records = sorted[start:end]
	return p
}
