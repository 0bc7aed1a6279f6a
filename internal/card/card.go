package card

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// IsValid reports whether r is one of the four review ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	switch r {
	case Again:
		return "Again"
	case Hard:
		return "Hard"
	case Good:
		return "Good"
	case Easy:
		return "Easy"
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ReviewLogEntry records a single rating applied to a card.
type ReviewLogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Rating      Rating    `json:"rating"`
	ElapsedDays float64   `json:"elapsed_days"`
}

// Card is the unit of scheduling: a text/answer pair derived from a
// highlight, plus its memory state.
//
// A card is "new" until its first rating; once rated it never returns
// to new. LastReview is the zero time for cards that have never been
// rated.
type Card struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Answer   string `json:"answer"`
	FilePath string `json:"file_path,omitempty"`

	Difficulty     float64 `json:"difficulty"`
	Stability      float64 `json:"stability"`
	Retrievability float64 `json:"retrievability"`

	LastReview time.Time `json:"last_review"`
	NextReview time.Time `json:"next_review"`

	Reviews int `json:"reviews"`
	Lapses  int `json:"lapses"`

	ReviewHistory []ReviewLogEntry `json:"review_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsNew reports whether the card has never been rated.
func (c *Card) IsNew() bool {
	return c.Reviews == 0
}

// Clone returns a deep copy of the card, including its review history.
func (c *Card) Clone() *Card {
	out := *c
	if c.ReviewHistory != nil {
		out.ReviewHistory = make([]ReviewLogEntry, len(c.ReviewHistory))
		copy(out.ReviewHistory, c.ReviewHistory)
	}
	return &out
}

// Content is a (text, answer) pair supplied by an upstream highlight
// source for a single file.
type Content struct {
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// GroupSettings holds a group's quota overrides. When UseGlobalSettings
// is true, or a per-day field is nil, the global limits apply.
type GroupSettings struct {
	UseGlobalSettings bool `json:"use_global_settings"`
	NewCardsPerDay    *int `json:"new_cards_per_day,omitempty"`
	ReviewsPerDay     *int `json:"reviews_per_day,omitempty"`
}

// CardGroup names a filter-defined subset of cards. Membership is
// evaluated live against the filter; deleting a group never touches
// cards.
type CardGroup struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Filter      string         `json:"filter"`
	SortOrder   int            `json:"sort_order"`
	CreatedTime time.Time      `json:"created_time"`
	IsReversed  bool           `json:"is_reversed"`
	Settings    *GroupSettings `json:"settings,omitempty"`
}

// Clone returns a deep copy of the group.
func (g *CardGroup) Clone() *CardGroup {
	out := *g
	if g.Settings != nil {
		s := *g.Settings
		if g.Settings.NewCardsPerDay != nil {
			v := *g.Settings.NewCardsPerDay
			s.NewCardsPerDay = &v
		}
		if g.Settings.ReviewsPerDay != nil {
			v := *g.Settings.ReviewsPerDay
			s.ReviewsPerDay = &v
		}
		out.Settings = &s
	}
	return &out
}

// DailyStats counts review activity for one calendar day. Date is
// normalized to midnight.
type DailyStats struct {
	Date            time.Time `json:"date"`
	NewCardsLearned int       `json:"new_cards_learned"`
	CardsReviewed   int       `json:"cards_reviewed"`
}

// GlobalStats aggregates review activity across all cards.
type GlobalStats struct {
	TotalReviews     int       `json:"total_reviews"`
	AverageRetention float64   `json:"average_retention"`
	StreakDays       int       `json:"streak_days"`
	LastReviewDate   time.Time `json:"last_review_date"`
}

// StorageBlob is the full-state snapshot exchanged with the
// persistence gateway and by export/import.
type StorageBlob struct {
	Version     string           `json:"version"`
	Cards       map[string]*Card `json:"cards"`
	GlobalStats *GlobalStats     `json:"global_stats"`
	CardGroups  []*CardGroup     `json:"card_groups"`
	DailyStats  []DailyStats     `json:"daily_stats"`
	UIState     json.RawMessage  `json:"ui_state,omitempty"`
}
