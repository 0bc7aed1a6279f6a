package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfenske/recollect/internal/card"
	"github.com/jfenske/recollect/internal/clock"
	"github.com/jfenske/recollect/internal/fsrs"
	"github.com/jfenske/recollect/internal/quota"
)

// fakeGateway records saves and can be told to fail.
type fakeGateway struct {
	mu       sync.Mutex
	loadBlob *card.StorageBlob
	loadErr  error
	saveErr  error
	saves    int
	last     *card.StorageBlob
}

func (g *fakeGateway) Load(context.Context) (*card.StorageBlob, error) {
	return g.loadBlob, g.loadErr
}

func (g *fakeGateway) Save(_ context.Context, blob *card.StorageBlob) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saves++
	g.last = blob
	return nil
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

// fakeSink counts change notifications.
type fakeSink struct {
	mu      sync.Mutex
	changes int
}

func (s *fakeSink) CardsChanged() {
	s.mu.Lock()
	s.changes++
	s.mu.Unlock()
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes
}

type fixture struct {
	sched *Scheduler
	gw    *fakeGateway
	sink  *fakeSink
	clk   *clock.Fixed
}

func newFixture(t *testing.T, limits quota.Limits) *fixture {
	t.Helper()
	gw := &fakeGateway{}
	sink := &fakeSink{}
	clk := &clock.Fixed{T: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	sched := New(gw, sink, Options{
		Clock:  clk,
		Limits: limits,
		// Long enough that the timer never fires during a test;
		// flushes happen via explicit Flush calls.
		SaveDelay: time.Hour,
	})
	return &fixture{sched: sched, gw: gw, sink: sink, clk: clk}
}

func defaultFixture(t *testing.T) *fixture {
	return newFixture(t, quota.Limits{NewCardsPerDay: 20, ReviewsPerDay: 200})
}

func TestAddCardSeedsFreshState(t *testing.T) {
	f := defaultFixture(t)

	c := f.sched.AddCard("Q1", "A1", "note.md")

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Reviews)
	assert.True(t, c.LastReview.IsZero())
	assert.Equal(t, fsrs.MinStability, c.Stability)
	assert.Equal(t, 5.0, c.Difficulty)
	assert.Equal(t, 1.0, c.Retrievability)
	assert.Equal(t, f.clk.Now(), c.NextReview)
	assert.Equal(t, 1, f.sink.count())
	assert.True(t, f.sched.Dirty())
}

func TestFirstGoodRating(t *testing.T) {
	f := defaultFixture(t)
	c := f.sched.AddCard("Q1", "A1", "note.md")

	got := f.sched.RateCard(c.ID, card.Good)

	require.NotNil(t, got)
	assert.Equal(t, 2.0, got.Stability)
	assert.Equal(t, 1, got.Reviews)
	assert.Equal(t, 0, got.Lapses)
	assert.Equal(t, f.clk.Now().Add(48*time.Hour), got.NextReview)

	stats := f.sched.GlobalStats()
	assert.Equal(t, 1, stats.TotalReviews)
	assert.Equal(t, 1.0, stats.AverageRetention)
	assert.Equal(t, 1, stats.StreakDays)
}

func TestRateUnknownCardReturnsNil(t *testing.T) {
	f := defaultFixture(t)

	assert.Nil(t, f.sched.RateCard("nope", card.Good))
	assert.Nil(t, f.sched.ReviewCard("nope", card.Good, f.clk.Now()))
	assert.Equal(t, 0, f.sched.GlobalStats().TotalReviews)
}

func TestLapseAfterOneDay(t *testing.T) {
	f := defaultFixture(t)
	c := f.sched.AddCard("Q1", "A1", "note.md")
	f.sched.RateCard(c.ID, card.Good)

	f.clk.Advance(24 * time.Hour)
	got := f.sched.RateCard(c.ID, card.Again)

	require.NotNil(t, got)
	assert.Equal(t, 1, got.Lapses)
	// Stability 2 scaled by the Again multiplier w[7].
	assert.InDelta(t, 2*fsrs.DefaultWeights[7], got.Stability, 1e-9)
}

func TestIsNewEvaluatedBeforeTransition(t *testing.T) {
	f := defaultFixture(t)
	c := f.sched.AddCard("Q1", "A1", "note.md")

	f.sched.RateCard(c.ID, card.Good)
	f.sched.RateCard(c.ID, card.Good)

	blob := f.sched.ExportData()
	require.Len(t, blob.DailyStats, 1)
	assert.Equal(t, 1, blob.DailyStats[0].NewCardsLearned, "only the first rating learns the card")
	assert.Equal(t, 1, blob.DailyStats[0].CardsReviewed)
}

func TestNewCardQuotaExhaustion(t *testing.T) {
	f := newFixture(t, quota.Limits{NewCardsPerDay: 2, ReviewsPerDay: 100})

	var ids []string
	for i := 0; i < 3; i++ {
		c := f.sched.AddCard("Q", "A", "n.md")
		ids = append(ids, c.ID)
	}

	assert.Len(t, f.sched.NewCards(), 2, "truncated to the remaining quota")

	f.sched.RateCard(ids[0], card.Good)
	f.sched.RateCard(ids[1], card.Good)

	assert.Empty(t, f.sched.NewCards())
	assert.False(t, f.sched.CanLearnNewToday(""))
	assert.Equal(t, 0, f.sched.RemainingNewToday(""))

	f.clk.Advance(24 * time.Hour)
	assert.True(t, f.sched.CanLearnNewToday(""), "quota resets on the next calendar day")
	assert.Len(t, f.sched.NewCards(), 1)
}

func TestDueCardsOrderingAndQuota(t *testing.T) {
	f := newFixture(t, quota.Limits{NewCardsPerDay: 20, ReviewsPerDay: 2})

	// Learn three cards a minute apart; each lands a next review two
	// days out, ordered by when it was rated.
	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		c := f.sched.AddCard(text, "a", "n.md")
		f.sched.RateCard(c.ID, card.Good)
		ids = append(ids, c.ID)
		f.clk.Advance(time.Minute)
	}

	f.clk.Advance(72 * time.Hour)
	due := f.sched.DueCards()
	require.Len(t, due, 2, "truncated to the review quota")
	assert.Equal(t, ids[0], due[0].ID)
	assert.Equal(t, ids[1], due[1].ID)

	f.sched.RateCard(due[0].ID, card.Good)
	f.sched.RateCard(due[1].ID, card.Good)
	assert.Empty(t, f.sched.DueCards(), "review quota exhausted")
	assert.False(t, f.sched.CanReviewToday(""))
}

func TestStreak(t *testing.T) {
	f := defaultFixture(t)
	c := f.sched.AddCard("Q", "A", "n.md")

	f.sched.RateCard(c.ID, card.Good)
	assert.Equal(t, 1, f.sched.GlobalStats().StreakDays)

	f.sched.RateCard(c.ID, card.Good)
	assert.Equal(t, 1, f.sched.GlobalStats().StreakDays, "same day does not extend")

	f.clk.Advance(24 * time.Hour)
	f.sched.RateCard(c.ID, card.Good)
	assert.Equal(t, 2, f.sched.GlobalStats().StreakDays, "next day extends")

	f.clk.Advance(72 * time.Hour)
	f.sched.RateCard(c.ID, card.Good)
	assert.Equal(t, 1, f.sched.GlobalStats().StreakDays, "gap resets")
}

func TestAverageRetentionRunningMean(t *testing.T) {
	f := defaultFixture(t)
	a := f.sched.AddCard("a", "1", "n.md")
	b := f.sched.AddCard("b", "2", "n.md")

	// First reviews pin retrievability to 1.
	f.sched.RateCard(a.ID, card.Good)
	f.sched.RateCard(b.ID, card.Good)
	assert.Equal(t, 1.0, f.sched.GlobalStats().AverageRetention)

	f.clk.Advance(4 * 24 * time.Hour)
	got := f.sched.RateCard(a.ID, card.Good)

	want := (1 + 1 + got.Retrievability) / 3
	assert.InDelta(t, want, f.sched.GlobalStats().AverageRetention, 1e-9)
}

func TestProgress(t *testing.T) {
	f := defaultFixture(t)
	rated := f.sched.AddCard("rated", "a", "n.md")
	f.sched.AddCard("fresh", "a", "n.md")
	f.sched.RateCard(rated.ID, card.Good)

	p := f.sched.GetProgress()
	assert.Equal(t, 1, p.NewCards)
	assert.Equal(t, 1, p.Learned)
	assert.Equal(t, 1, p.Due, "the fresh card is due, the rated one is 2 days out")
	assert.Equal(t, 1.0, p.Retention)
}

func TestProgressRetentionDefaultsToOne(t *testing.T) {
	f := defaultFixture(t)
	f.sched.AddCard("fresh", "a", "n.md")

	assert.Equal(t, 1.0, f.sched.GetProgress().Retention)
}

func TestGroupProgressAndMembership(t *testing.T) {
	f := defaultFixture(t)
	f.sched.AddCard("Mitosis #bio", "cell division", "bio.md")
	f.sched.AddCard("Algebra", "math", "math.md")

	g, err := f.sched.CreateCardGroup(context.Background(), card.CardGroup{
		Name:   "Biology",
		Filter: "#bio",
	})
	require.NoError(t, err)

	cards, ok := f.sched.GetCardsInGroup(g.ID)
	require.True(t, ok)
	require.Len(t, cards, 1)
	assert.Equal(t, "Mitosis #bio", cards[0].Text)

	gp, ok := f.sched.GetGroupProgress(g.ID)
	require.True(t, ok)
	assert.Equal(t, 1, gp.NewCards)
	assert.Equal(t, 0, gp.Learned)

	_, ok = f.sched.GetGroupProgress("missing")
	assert.False(t, ok)
	_, ok = f.sched.GetCardsInGroup("missing")
	assert.False(t, ok)
}

func TestGroupQuotaOverride(t *testing.T) {
	f := defaultFixture(t)
	limit := 1
	g, err := f.sched.CreateCardGroup(context.Background(), card.CardGroup{
		Name:   "Slow",
		Filter: "#slow",
		Settings: &card.GroupSettings{
			UseGlobalSettings: false,
			NewCardsPerDay:    &limit,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.sched.RemainingNewToday(g.ID))
	assert.Equal(t, 20, f.sched.RemainingNewToday(""), "global limit unchanged")

	c := f.sched.AddCard("Q #slow", "A", "n.md")
	f.sched.RateCard(c.ID, card.Good)

	assert.False(t, f.sched.CanLearnNewToday(g.ID))
	assert.True(t, f.sched.CanLearnNewToday(""))
}

func TestDeleteCardsByContent(t *testing.T) {
	f := defaultFixture(t)
	f.sched.AddCard("t1", "a1", "f.md")
	f.sched.AddCard("t2", "a2", "f.md")

	text := "t1"
	assert.Equal(t, 1, f.sched.DeleteCardsByContent("f.md", &text, nil))
	assert.Equal(t, 1, f.sched.DeleteCardsByContent("f.md", nil, nil))
	assert.Empty(t, f.sched.CardsByFile("f.md"))
}

func TestGroupCRUDRollbackOnSaveFailure(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()

	g, err := f.sched.CreateCardGroup(ctx, card.CardGroup{Name: "Keep", Filter: "#keep"})
	require.NoError(t, err)

	f.gw.saveErr = errors.New("disk full")

	_, err = f.sched.CreateCardGroup(ctx, card.CardGroup{Name: "Doomed"})
	require.Error(t, err)
	assert.Len(t, f.sched.CardGroups(), 1, "failed create rolled back")

	ok, err := f.sched.UpdateCardGroup(ctx, card.CardGroup{ID: g.ID, Name: "Renamed"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Keep", f.sched.GetCardGroup(g.ID).Name, "failed update rolled back")

	ok, err = f.sched.DeleteCardGroup(ctx, g.ID)
	require.Error(t, err)
	assert.False(t, ok)
	require.NotNil(t, f.sched.GetCardGroup(g.ID), "failed delete rolled back")

	f.gw.saveErr = nil
	ok, err = f.sched.DeleteCardGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, f.sched.GetCardGroup(g.ID))
}

func TestGroupCRUDNotFound(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()

	ok, err := f.sched.UpdateCardGroup(ctx, card.CardGroup{ID: "missing"})
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.sched.DeleteCardGroup(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestReversedGroupIsDisplayOnly(t *testing.T) {
	f := defaultFixture(t)
	c := f.sched.AddCard("front #rev", "back", "n.md")

	g, err := f.sched.CreateCardGroup(context.Background(), card.CardGroup{
		Name:       "Reversed",
		Filter:     "#rev",
		IsReversed: true,
	})
	require.NoError(t, err)
	assert.True(t, f.sched.GetCardGroup(g.ID).IsReversed)

	cards, _ := f.sched.GetCardsInGroup(g.ID)
	require.Len(t, cards, 1)
	assert.Equal(t, c.Text, cards[0].Text, "card content is never swapped in storage")
}
