// Package scheduler composes the memory model, card store, quota
// tracker, and group manager behind the public scheduling operations,
// and mediates all persistence and change notification.
package scheduler

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jfenske/recollect/internal/card"
	"github.com/jfenske/recollect/internal/clock"
	"github.com/jfenske/recollect/internal/fsrs"
	"github.com/jfenske/recollect/internal/group"
	"github.com/jfenske/recollect/internal/quota"
	"github.com/jfenske/recollect/internal/store"
)

// DefaultSaveDelay is the trailing-edge debounce applied to card
// mutations before they are written to the gateway.
const DefaultSaveDelay = time.Second

// DefaultLimits are the global daily quotas when none are configured.
var DefaultLimits = quota.Limits{NewCardsPerDay: 20, ReviewsPerDay: 200}

// Options configures a Scheduler. Zero fields take defaults.
type Options struct {
	Params    *fsrs.Params
	Limits    quota.Limits
	Clock     clock.Clock
	SaveDelay time.Duration
}

// Scheduler is the orchestrator. All public methods are safe for the
// debounce timer goroutine to race with the host's calls; there is
// otherwise a single logical writer.
type Scheduler struct {
	mu sync.Mutex

	params  *fsrs.Params
	cards   *store.Store
	quota   *quota.Tracker
	groups  *group.Manager
	stats   card.GlobalStats
	uiState json.RawMessage

	gateway PersistenceGateway
	sink    EventSink
	clk     clock.Clock

	saveDelay time.Duration
	dirty     bool
	gen       uint64 // bumped on every mutation; lets Flush detect mid-save changes
	timer     *time.Timer
}

// New creates a scheduler over the given gateway and event sink. Call
// Load to hydrate persisted state before use.
func New(gateway PersistenceGateway, sink EventSink, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Params == nil {
		opts.Params = fsrs.DefaultParams()
	}
	if opts.Limits == (quota.Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.SaveDelay == 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Scheduler{
		params:    opts.Params,
		cards:     store.New(opts.Clock),
		quota:     quota.New(opts.Clock, opts.Limits),
		groups:    group.NewManager(),
		gateway:   gateway,
		sink:      sink,
		clk:       opts.Clock,
		saveDelay: opts.SaveDelay,
	}
}

// AddCard creates a fresh, never-reviewed card and returns a copy.
func (s *Scheduler) AddCard(text, answer, filePath string) *card.Card {
	s.mu.Lock()
	c := s.cards.Add(text, answer, filePath)
	out := c.Clone()
	s.markDirtyLocked()
	s.mu.Unlock()

	s.sink.CardsChanged()
	return out
}

// UpdateCardContent rewrites the text/answer of existing cards for
// filePath whose text or answer matches, preserving scheduling state.
// It returns the number of cards updated.
func (s *Scheduler) UpdateCardContent(text, answer, filePath string) int {
	s.mu.Lock()
	updated := s.cards.UpdateContent(text, answer, filePath)
	if len(updated) > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	if len(updated) > 0 {
		s.sink.CardsChanged()
	}
	return len(updated)
}

// DeleteCardsByContent removes cards for filePath matching the
// optional text/answer constraints and returns how many were removed.
func (s *Scheduler) DeleteCardsByContent(filePath string, text, answer *string) int {
	s.mu.Lock()
	n := s.cards.DeleteByContent(filePath, text, answer)
	if n > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	if n > 0 {
		s.sink.CardsChanged()
	}
	return n
}

// DeleteCard removes a single card by id.
func (s *Scheduler) DeleteCard(id string) bool {
	s.mu.Lock()
	ok := s.cards.Delete(id)
	if ok {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	if ok {
		s.sink.CardsChanged()
	}
	return ok
}

// GetCard returns a copy of the card with the given id, or nil.
func (s *Scheduler) GetCard(id string) *card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cards.Get(id); ok {
		return c.Clone()
	}
	return nil
}

// CardsByFile returns copies of all cards originating from filePath.
func (s *Scheduler) CardsByFile(filePath string) []*card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.cards.ByFile(filePath))
}

// LatestCards returns one card per distinct text, newest version each.
func (s *Scheduler) LatestCards() []*card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.cards.Latest())
}

// ReviewCard applies a rating at the given instant and returns the
// updated card, or nil when the id is unknown. Daily quotas and the
// streak are not touched; RateCard is the quota-aware variant.
func (s *Scheduler) ReviewCard(id string, r card.Rating, now time.Time) *card.Card {
	if !r.IsValid() {
		return nil
	}
	s.mu.Lock()
	out := s.reviewLocked(id, r, now)
	s.mu.Unlock()

	if out != nil {
		s.sink.CardsChanged()
	}
	return out
}

// RateCard reviews the card at the current time, counts it against
// today's quota, and advances the streak. It returns the updated card,
// or nil when the id is unknown.
func (s *Scheduler) RateCard(id string, r card.Rating) *card.Card {
	if !r.IsValid() {
		return nil
	}
	s.mu.Lock()
	now := s.clk.Now()
	c, ok := s.cards.Get(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	isNew := c.IsNew() // evaluated before the transition
	out := s.reviewLocked(id, r, now)
	s.quota.RecordReview(isNew)
	s.advanceStreakLocked(now)
	s.mu.Unlock()

	s.sink.CardsChanged()
	return out
}

// reviewLocked runs the memory-model transition and folds the card's
// post-review retrievability into the running retention mean.
func (s *Scheduler) reviewLocked(id string, r card.Rating, now time.Time) *card.Card {
	c, ok := s.cards.Get(id)
	if !ok {
		return nil
	}
	s.params.Review(c, r, now)

	s.stats.TotalReviews++
	s.stats.AverageRetention += (c.Retrievability - s.stats.AverageRetention) /
		float64(s.stats.TotalReviews)

	s.markDirtyLocked()
	return c.Clone()
}

// advanceStreakLocked updates the consecutive-day streak: a review on
// the day after the last one extends it, a same-day review is a no-op,
// anything else restarts at 1.
func (s *Scheduler) advanceStreakLocked(now time.Time) {
	last := s.stats.LastReviewDate
	switch {
	case last.IsZero():
		s.stats.StreakDays = 1
	case clock.DaysBetween(last, now) == 1:
		s.stats.StreakDays++
	case clock.DaysBetween(last, now) == 0:
		// same day, streak unchanged
	default:
		s.stats.StreakDays = 1
	}
	s.stats.LastReviewDate = now
}

// DueCards returns copies of all due cards, soonest first, truncated
// to today's remaining review quota. The slice is empty once the quota
// is exhausted.
func (s *Scheduler) DueCards() []*card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	var due []*card.Card
	for _, c := range s.cards.All() {
		if fsrs.IsDue(c, now) {
			due = append(due, c)
		}
	}
	sortByNextReview(due)
	due = truncate(due, s.quota.RemainingReviews(nil))
	return cloneAll(due)
}

// NewCards returns copies of never-reviewed cards, oldest first,
// truncated to today's remaining new-card quota.
func (s *Scheduler) NewCards() []*card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []*card.Card
	for _, c := range s.cards.All() {
		if c.IsNew() {
			fresh = append(fresh, c)
		}
	}
	sortByCreation(fresh)
	fresh = truncate(fresh, s.quota.RemainingNew(nil))
	return cloneAll(fresh)
}

// Progress summarizes due/new/learned counts and mean retention.
type Progress struct {
	Due       int     `json:"due"`
	NewCards  int     `json:"new_cards"`
	Learned   int     `json:"learned"`
	Retention float64 `json:"retention"`
}

// GetProgress computes progress over the latest-per-text card set.
func (s *Scheduler) GetProgress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(s.cards.Latest())
}

// GetGroupProgress computes progress over a group's card set. The
// second return is false when the group id is unknown.
func (s *Scheduler) GetGroupProgress(groupID string) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups.Get(groupID)
	if !ok {
		return Progress{}, false
	}
	return s.progressLocked(s.groups.CardsIn(g, s.cards.Latest())), true
}

func (s *Scheduler) progressLocked(cards []*card.Card) Progress {
	now := s.clk.Now()
	p := Progress{Retention: 1}

	var retentionSum float64
	for _, c := range cards {
		if c.IsNew() {
			p.NewCards++
		} else {
			p.Learned++
			retentionSum += c.Retrievability
		}
		if fsrs.IsDue(c, now) {
			p.Due++
		}
	}
	if p.Learned > 0 {
		p.Retention = retentionSum / float64(p.Learned)
	}
	return p
}

// GlobalStats returns a copy of the aggregate statistics.
func (s *Scheduler) GlobalStats() card.GlobalStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RemainingNewToday returns today's remaining new-card allowance for
// the group, or the global allowance when groupID is empty or unknown.
func (s *Scheduler) RemainingNewToday(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota.RemainingNew(s.groupSettingsLocked(groupID))
}

// RemainingReviewsToday returns today's remaining review allowance for
// the group, or the global allowance when groupID is empty or unknown.
func (s *Scheduler) RemainingReviewsToday(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota.RemainingReviews(s.groupSettingsLocked(groupID))
}

// CanLearnNewToday reports whether the effective new-card quota still
// has room today.
func (s *Scheduler) CanLearnNewToday(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota.CanLearnNew(s.groupSettingsLocked(groupID))
}

// CanReviewToday reports whether the effective review quota still has
// room today.
func (s *Scheduler) CanReviewToday(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota.CanReview(s.groupSettingsLocked(groupID))
}

func (s *Scheduler) groupSettingsLocked(groupID string) *card.GroupSettings {
	if groupID == "" {
		return nil
	}
	g, ok := s.groups.Get(groupID)
	if !ok {
		return nil
	}
	return g.Settings
}

func cloneAll(cards []*card.Card) []*card.Card {
	out := make([]*card.Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

func sortByNextReview(cards []*card.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].NextReview.Equal(cards[j].NextReview) {
			return cards[i].NextReview.Before(cards[j].NextReview)
		}
		return cards[i].ID < cards[j].ID
	})
}

func sortByCreation(cards []*card.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.Before(cards[j].CreatedAt)
		}
		return cards[i].ID < cards[j].ID
	})
}

func truncate(cards []*card.Card, n int) []*card.Card {
	if n < 0 {
		n = 0
	}
	if len(cards) > n {
		return cards[:n]
	}
	return cards
}
