// Package fsrs implements the forgetting-curve memory model: pure
// functions that compute retrievability, update difficulty and
// stability after a rating, and derive the next review interval.
package fsrs

import (
	"math"
	"time"

	"github.com/jfenske/recollect/internal/card"
)

const (
	// decay is the exponent of the forgetting curve R(t, S).
	decay = -0.5
	// factor scales elapsed time against stability: 19/81 makes
	// R(S, S) equal the 90% retention target.
	factor = 19.0 / 81.0

	// MinStability is the floor applied to stability after every
	// update, in days.
	MinStability = 0.1

	day = 24 * time.Hour
)

// Params holds the weight vector and scheduling bounds for the memory
// model. The update rules consult w[3..12]; the remaining slots are
// carried so full FSRS weight sets can be loaded unchanged.
type Params struct {
	W                [18]float64
	RequestRetention float64
	MaximumInterval  float64 // days
}

// DefaultWeights is the stock weight vector, usable without training.
var DefaultWeights = [18]float64{
	0.4, 0.6, 2.4, // w[0..2] unused by the update rules
	7.2, 0.53, // initial difficulty: base and rating slope
	1.46, 0.0046, // difficulty delta and mean-reversion weight
	0.5, // stability multiplier: Again
	1.2, // stability multiplier: Hard
	1.3, 2.0, // stability multiplier: Good (base, retrievability term)
	1.6, 3.0, // stability multiplier: Easy (base, retrievability term)
	0.34, 1.26, 0.29, 2.61, 0.0, // w[13..17] unused by the update rules
}

// DefaultParams returns parameters targeting 90% retention with a
// 100-year interval cap.
func DefaultParams() *Params {
	return &Params{
		W:                DefaultWeights,
		RequestRetention: 0.9,
		MaximumInterval:  36500,
	}
}

// firstStability seeds stability for a card's very first rating.
var firstStability = map[card.Rating]float64{
	card.Again: 0.1,
	card.Hard:  0.5,
	card.Good:  2,
	card.Easy:  4,
}

// Retrievability estimates the probability of recall after elapsedDays
// at the given stability: (1 + factor*t/S)^decay.
func (p *Params) Retrievability(elapsedDays, stability float64) float64 {
	if stability < MinStability {
		stability = MinStability
	}
	return math.Pow(1+factor*elapsedDays/stability, decay)
}

// NextInterval returns the interval in days after which retrievability
// decays to the requested retention, clamped to [1, MaximumInterval].
// The exponent 1/decay turns the retention target into a power of -2.
func (p *Params) NextInterval(requestedRetention, stability float64) float64 {
	ivl := stability / factor * (math.Pow(requestedRetention, 1/decay) - 1)
	return clampInterval(ivl, p.MaximumInterval)
}

// InitialDifficulty returns D0(rating) = w[3] - e^(w[4]*(rating-1)) + 1,
// clamped to [1, 10].
func (p *Params) InitialDifficulty(r card.Rating) float64 {
	return clampDifficulty(p.W[3] - math.Exp(p.W[4]*float64(r-1)) + 1)
}

// UpdateDifficulty applies the rating delta with linear damping, then
// mean-reverts toward InitialDifficulty(Good) by weight w[6].
func (p *Params) UpdateDifficulty(old float64, r card.Rating) float64 {
	delta := -p.W[5] * float64(r-3)
	d := old + delta*(10-old)/9
	d = p.W[6]*p.InitialDifficulty(card.Good) + (1-p.W[6])*d
	return clampDifficulty(d)
}

// UpdateStability multiplies stability by a per-rating factor. Good and
// Easy grow faster the lower the retrievability was at review time.
func (p *Params) UpdateStability(old, retrievability float64, r card.Rating) float64 {
	var mult float64
	switch r {
	case card.Again:
		mult = p.W[7]
	case card.Hard:
		mult = p.W[8]
	case card.Good:
		mult = p.W[9] + p.W[10]*(1-retrievability)
	default:
		mult = p.W[11] + p.W[12]*(1-retrievability)
	}
	return clampStability(old * mult)
}

// Review applies a rating to the card at the given instant, mutating
// its memory state, counters, and history. Inputs are assumed valid;
// the caller checks the rating and owns the card.
func (p *Params) Review(c *card.Card, r card.Rating, now time.Time) {
	var elapsedDays float64

	if c.LastReview.IsZero() {
		c.Difficulty = p.InitialDifficulty(r)
		c.Stability = firstStability[r]
		c.Retrievability = 1
		c.NextReview = now.Add(days(c.Stability))
	} else {
		elapsedDays = now.Sub(c.LastReview).Hours() / 24
		retr := p.Retrievability(elapsedDays, c.Stability)
		c.Difficulty = p.UpdateDifficulty(c.Difficulty, r)
		c.Stability = p.UpdateStability(c.Stability, retr, r)
		c.Retrievability = retr
		c.NextReview = now.Add(days(p.NextInterval(p.RequestRetention, c.Stability)))
	}

	c.LastReview = now
	c.Reviews++
	if r == card.Again {
		c.Lapses++
	}
	c.ReviewHistory = append(c.ReviewHistory, card.ReviewLogEntry{
		Timestamp:   now,
		Rating:      r,
		ElapsedDays: elapsedDays,
	})
}

// IsDue reports whether the card's next review time has passed.
func IsDue(c *card.Card, now time.Time) bool {
	return !now.Before(c.NextReview)
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(day))
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

func clampStability(s float64) float64 {
	return math.Max(s, MinStability)
}

func clampInterval(ivl, max float64) float64 {
	return math.Min(math.Max(ivl, 1), max)
}
