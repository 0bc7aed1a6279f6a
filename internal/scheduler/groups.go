package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/jfenske/recollect/internal/card"
)

// Group CRUD persists synchronously rather than through the debounce:
// the in-memory mutation is rolled back when the save fails, and the
// persistence error is returned to the caller.

// CreateCardGroup stores a new group and persists immediately. The
// group's id and creation time are assigned here.
func (s *Scheduler) CreateCardGroup(ctx context.Context, g card.CardGroup) (*card.CardGroup, error) {
	s.mu.Lock()

	g.ID = uuid.NewString()
	if g.CreatedTime.IsZero() {
		g.CreatedTime = s.clk.Now()
	}
	stored := g.Clone()
	s.groups.Add(stored)

	if err := s.saveNowLocked(ctx); err != nil {
		s.groups.Pop()
		s.mu.Unlock()
		return nil, err
	}
	out := stored.Clone()
	s.mu.Unlock()

	s.sink.CardsChanged()
	return out, nil
}

// UpdateCardGroup replaces the group with the same id and persists
// immediately. It returns (false, nil) when the id is unknown; a save
// failure restores the previous value and returns the error.
func (s *Scheduler) UpdateCardGroup(ctx context.Context, g card.CardGroup) (bool, error) {
	s.mu.Lock()

	prev, ok := s.groups.Update(g.Clone())
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	if err := s.saveNowLocked(ctx); err != nil {
		s.groups.Update(prev)
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.sink.CardsChanged()
	return true, nil
}

// DeleteCardGroup removes the group and persists immediately. Cards
// are untouched: membership is a live filter, not a foreign key. It
// returns (false, nil) when the id is unknown; a save failure splices
// the group back in at its old position and returns the error.
func (s *Scheduler) DeleteCardGroup(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()

	removed, idx, ok := s.groups.Remove(id)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	if err := s.saveNowLocked(ctx); err != nil {
		s.groups.Insert(removed, idx)
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.sink.CardsChanged()
	return true, nil
}

// CardGroups returns copies of all groups in display order.
func (s *Scheduler) CardGroups() []*card.CardGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := s.groups.Groups()
	out := make([]*card.CardGroup, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

// GetCardGroup returns a copy of the group with the given id, or nil.
func (s *Scheduler) GetCardGroup(id string) *card.CardGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups.Get(id); ok {
		return g.Clone()
	}
	return nil
}

// GetCardsInGroup returns copies of the latest-per-text cards matching
// the group's filter. The second return is false when the group id is
// unknown.
func (s *Scheduler) GetCardsInGroup(groupID string) ([]*card.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups.Get(groupID)
	if !ok {
		return nil, false
	}
	return cloneAll(s.groups.CardsIn(g, s.cards.Latest())), true
}
