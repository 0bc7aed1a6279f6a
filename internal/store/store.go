// Package store owns the in-memory map of card id to card state. It is
// a plain data structure: persistence scheduling and change
// notification are mediated by the scheduler.
package store

import (
	"sort"

	"github.com/google/uuid"

	"github.com/jfenske/recollect/internal/card"
	"github.com/jfenske/recollect/internal/clock"
	"github.com/jfenske/recollect/internal/fsrs"
)

// Store holds all card records.
type Store struct {
	cards map[string]*card.Card
	clock clock.Clock
	newID func() string
}

// New creates an empty store using the given clock.
func New(clk clock.Clock) *Store {
	return &Store{
		cards: make(map[string]*card.Card),
		clock: clk,
		newID: uuid.NewString,
	}
}

// Add creates a card seeded in the never-reviewed state: zero reviews,
// minimum stability, full retrievability, due immediately.
func (s *Store) Add(text, answer, filePath string) *card.Card {
	now := s.clock.Now()
	c := &card.Card{
		ID:             s.newID(),
		Text:           text,
		Answer:         answer,
		FilePath:       filePath,
		Difficulty:     5,
		Stability:      fsrs.MinStability,
		Retrievability: 1,
		NextReview:     now,
		CreatedAt:      now,
	}
	s.cards[c.ID] = c
	return c
}

// Get returns the card with the given id, or false if unknown.
func (s *Store) Get(id string) (*card.Card, bool) {
	c, ok := s.cards[id]
	return c, ok
}

// Delete removes the card with the given id. It returns false if the
// id is unknown.
func (s *Store) Delete(id string) bool {
	if _, ok := s.cards[id]; !ok {
		return false
	}
	delete(s.cards, id)
	return true
}

// UpdateContent rewrites text and answer on every card for filePath
// whose current text or answer matches the given values, preserving
// all scheduling fields. It returns the cards it touched.
func (s *Store) UpdateContent(text, answer, filePath string) []*card.Card {
	var updated []*card.Card
	for _, c := range s.cards {
		if c.FilePath != filePath {
			continue
		}
		if c.Text == text || c.Answer == answer {
			c.Text = text
			c.Answer = answer
			updated = append(updated, c)
		}
	}
	return updated
}

// DeleteByContent removes cards for filePath matching the optional
// text and answer constraints. Nil constraints match everything, so
// passing neither deletes every card for the file. It returns the
// number of cards removed.
func (s *Store) DeleteByContent(filePath string, text, answer *string) int {
	var doomed []string
	for id, c := range s.cards {
		if c.FilePath != filePath {
			continue
		}
		if text != nil && c.Text != *text {
			continue
		}
		if answer != nil && c.Answer != *answer {
			continue
		}
		doomed = append(doomed, id)
	}
	for _, id := range doomed {
		delete(s.cards, id)
	}
	return len(doomed)
}

// ByFile returns all cards whose origin is filePath.
func (s *Store) ByFile(filePath string) []*card.Card {
	var out []*card.Card
	for _, c := range s.cards {
		if c.FilePath == filePath {
			out = append(out, c)
		}
	}
	return out
}

// All returns every card in the store.
func (s *Store) All() []*card.Card {
	out := make([]*card.Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c)
	}
	return out
}

// Len returns the number of cards in the store.
func (s *Store) Len() int {
	return len(s.cards)
}

// Latest returns one card per distinct text: the most recently created
// version, with the id as a tiebreaker for identical timestamps. The
// result is sorted by creation time, oldest first.
func (s *Store) Latest() []*card.Card {
	byText := make(map[string]*card.Card)
	for _, c := range s.cards {
		best, ok := byText[c.Text]
		if !ok || newer(c, best) {
			byText[c.Text] = c
		}
	}
	out := make([]*card.Card, 0, len(byText))
	for _, c := range byText {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func newer(a, b *card.Card) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Snapshot returns a deep copy of the card map, keyed by id.
func (s *Store) Snapshot() map[string]*card.Card {
	out := make(map[string]*card.Card, len(s.cards))
	for id, c := range s.cards {
		out[id] = c.Clone()
	}
	return out
}

// Replace swaps the store's contents for a deep copy of the given map.
func (s *Store) Replace(cards map[string]*card.Card) {
	s.cards = make(map[string]*card.Card, len(cards))
	for id, c := range cards {
		s.cards[id] = c.Clone()
	}
}
