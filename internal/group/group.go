// Package group evaluates the card-group filter language and owns the
// collection of named groups.
package group

import (
	"sort"

	"github.com/jfenske/recollect/internal/card"
)

// Manager holds the group list. Mutations keep the previous state
// recoverable so the scheduler can roll back a failed persist.
type Manager struct {
	groups []*card.CardGroup
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Groups returns the groups ordered by sort order, then creation time.
func (m *Manager) Groups() []*card.CardGroup {
	out := make([]*card.CardGroup, len(m.groups))
	copy(out, m.groups)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedTime.Before(out[j].CreatedTime)
	})
	return out
}

// Get returns the group with the given id, or false if unknown.
func (m *Manager) Get(id string) (*card.CardGroup, bool) {
	for _, g := range m.groups {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// Add appends a group to the collection.
func (m *Manager) Add(g *card.CardGroup) {
	m.groups = append(m.groups, g)
}

// Pop removes the most recently added group. It undoes an Add whose
// persist failed.
func (m *Manager) Pop() {
	if n := len(m.groups); n > 0 {
		m.groups = m.groups[:n-1]
	}
}

// Update replaces the stored group with the same id and returns the
// previous value for rollback. It returns false if the id is unknown.
func (m *Manager) Update(g *card.CardGroup) (prev *card.CardGroup, ok bool) {
	for i, existing := range m.groups {
		if existing.ID == g.ID {
			m.groups[i] = g
			return existing, true
		}
	}
	return nil, false
}

// Remove deletes the group with the given id, returning the removed
// group and its index so a failed persist can splice it back in.
func (m *Manager) Remove(id string) (removed *card.CardGroup, idx int, ok bool) {
	for i, g := range m.groups {
		if g.ID == id {
			m.groups = append(m.groups[:i], m.groups[i+1:]...)
			return g, i, true
		}
	}
	return nil, 0, false
}

// Insert places a group back at the given index, the inverse of Remove.
func (m *Manager) Insert(g *card.CardGroup, idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(m.groups) {
		idx = len(m.groups)
	}
	m.groups = append(m.groups, nil)
	copy(m.groups[idx+1:], m.groups[idx:])
	m.groups[idx] = g
}

// CardsIn filters the given card projection (normally the store's
// latest-per-text set) by the group's filter.
func (m *Manager) CardsIn(g *card.CardGroup, cards []*card.Card) []*card.Card {
	f := ParseFilter(g.Filter)
	var out []*card.Card
	for _, c := range cards {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns a deep copy of the group list.
func (m *Manager) Snapshot() []*card.CardGroup {
	out := make([]*card.CardGroup, len(m.groups))
	for i, g := range m.groups {
		out[i] = g.Clone()
	}
	return out
}

// Replace swaps the group list for a deep copy of the given slice.
func (m *Manager) Replace(groups []*card.CardGroup) {
	m.groups = make([]*card.CardGroup, len(groups))
	for i, g := range groups {
		m.groups[i] = g.Clone()
	}
}
