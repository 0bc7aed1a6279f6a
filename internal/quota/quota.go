// Package quota maintains the rolling window of per-day review
// counters and enforces daily limits, globally or per group.
package quota

import (
	"sort"

	"github.com/jfenske/recollect/internal/card"
	"github.com/jfenske/recollect/internal/clock"
)

// historyDays is how many daily records are retained; older records
// are pruned when a new day is inserted.
const historyDays = 30

// Limits holds the daily caps on new cards and reviews.
type Limits struct {
	NewCardsPerDay int
	ReviewsPerDay  int
}

// Tracker owns the DailyStats collection. Records are kept sorted
// descending by date, so index 0 is the most recent day.
type Tracker struct {
	days   []card.DailyStats
	limits Limits
	clock  clock.Clock
}

// New creates a tracker with the given global limits.
func New(clk clock.Clock, limits Limits) *Tracker {
	return &Tracker{limits: limits, clock: clk}
}

// Today returns the record for the current calendar day, creating it
// and pruning the window when the day has rolled over.
func (t *Tracker) Today() *card.DailyStats {
	today := clock.Midnight(t.clock.Now())
	for i := range t.days {
		if t.days[i].Date.Equal(today) {
			return &t.days[i]
		}
	}
	t.days = append(t.days, card.DailyStats{Date: today})
	sort.Slice(t.days, func(i, j int) bool {
		return t.days[i].Date.After(t.days[j].Date)
	})
	if len(t.days) > historyDays {
		t.days = t.days[:historyDays]
	}
	// Today sorts first, so the fresh record is always at index 0.
	return &t.days[0]
}

// RecordReview counts one review against today, as a new-card learn
// when isNew is true.
func (t *Tracker) RecordReview(isNew bool) {
	stats := t.Today()
	if isNew {
		stats.NewCardsLearned++
	} else {
		stats.CardsReviewed++
	}
}

// CanLearnNew reports whether today's new-card count is under the
// effective limit. A non-nil override with UseGlobalSettings false
// supplies the group's own limit.
func (t *Tracker) CanLearnNew(override *card.GroupSettings) bool {
	return t.RemainingNew(override) > 0
}

// CanReview reports whether today's review count is under the
// effective limit.
func (t *Tracker) CanReview(override *card.GroupSettings) bool {
	return t.RemainingReviews(override) > 0
}

// RemainingNew returns max(0, limit - new cards learned today).
func (t *Tracker) RemainingNew(override *card.GroupSettings) int {
	limits := t.effective(override)
	return remaining(limits.NewCardsPerDay, t.Today().NewCardsLearned)
}

// RemainingReviews returns max(0, limit - cards reviewed today).
func (t *Tracker) RemainingReviews(override *card.GroupSettings) int {
	limits := t.effective(override)
	return remaining(limits.ReviewsPerDay, t.Today().CardsReviewed)
}

func (t *Tracker) effective(override *card.GroupSettings) Limits {
	limits := t.limits
	if override == nil || override.UseGlobalSettings {
		return limits
	}
	if override.NewCardsPerDay != nil {
		limits.NewCardsPerDay = *override.NewCardsPerDay
	}
	if override.ReviewsPerDay != nil {
		limits.ReviewsPerDay = *override.ReviewsPerDay
	}
	return limits
}

func remaining(limit, used int) int {
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}

// Snapshot returns a copy of the daily records, most recent first.
func (t *Tracker) Snapshot() []card.DailyStats {
	out := make([]card.DailyStats, len(t.days))
	copy(out, t.days)
	return out
}

// Replace swaps the daily records for a copy of the given slice,
// re-sorted and pruned to the retention window.
func (t *Tracker) Replace(days []card.DailyStats) {
	t.days = make([]card.DailyStats, len(days))
	copy(t.days, days)
	sort.Slice(t.days, func(i, j int) bool {
		return t.days[i].Date.After(t.days[j].Date)
	})
	if len(t.days) > historyDays {
		t.days = t.days[:historyDays]
	}
}
