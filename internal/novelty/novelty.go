// Package novelty decides which listings are shown as new.
//
// An identity is new on the cycle it is first seen and stays new while it
// sits in the recency map. Every refresh ages the map; an entry whose count
// reaches GraceCycles is dropped. Identities are remembered forever, so a
// listing that disappears and comes back later is not new again.
package novelty

import (
	"lfp_bot/internal/model"
)

// GraceCycles is the number of refresh cycles a first-seen identity stays new.
const GraceCycles = 2

// State is the persisted novelty state.
// Every key of Recency is also a member of Known.
type State struct {
	Known   map[model.Identity]struct{}
	Recency map[model.Identity]int
}

// NewState returns an empty state.
func NewState() State {
	return State{
		Known:   make(map[model.Identity]struct{}),
		Recency: make(map[model.Identity]int),
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{
		Known:   make(map[model.Identity]struct{}, len(s.Known)),
		Recency: make(map[model.Identity]int, len(s.Recency)),
	}
	for id := range s.Known {
		c.Known[id] = struct{}{}
	}
	for id, n := range s.Recency {
		c.Recency[id] = n
	}
	return c
}

// IsKnown reports whether id has ever been observed.
func (s State) IsKnown(id model.Identity) bool {
	_, ok := s.Known[id]
	return ok
}

// Annotate marks the records of snap that are new and returns the annotated
// copy together with the updated state. The input state is not modified.
//
// On a refresh the recency counters are aged before the snapshot is
// examined, so an identity seeded in this call cannot expire in the same
// call. On the first load (isRefresh false) nothing is aged and every record
// whose identity is unknown, which is every record of a fresh state, is new.
func Annotate(snap model.Snapshot, state State, isRefresh bool) (model.Snapshot, State) {
	next := state.Clone()

	if isRefresh {
		for id, n := range next.Recency {
			n++
			if n >= GraceCycles {
				delete(next.Recency, id)
				continue
			}
			next.Recency[id] = n
		}
	}

	out := make(model.Snapshot, len(snap))
	for i, r := range snap {
		switch {
		case !next.IsKnown(r.Identity):
			next.Known[r.Identity] = struct{}{}
			next.Recency[r.Identity] = 0
			r.IsNew = true
		default:
			_, recent := next.Recency[r.Identity]
			r.IsNew = recent
		}
		out[i] = r
	}
	return out, next
}
