// Package popularity defines the composite popularity score used as a
// ranking signal and sort tie-break.
//
// The analytics feed that should supply these counters is not wired up yet,
// so projected documents currently carry a zeroed popularity block. The
// formula below is the intended contract for when the feed lands; it is
// exercised by tests so the shape does not rot in the meantime.
package popularity

import (
	"math"
	"time"
)

// Metrics are the raw engagement counters for one product.
type Metrics struct {
	Views     int64
	Orders    int64
	Reviews   int64
	AvgRating float64 // 0..5
}

// Weights for each signal. Orders dominate: a purchase is a far stronger
// signal than a page view.
const (
	orderWeight  = 2.0
	reviewWeight = 1.5
	viewWeight   = 0.5
	ratingWeight = 1.0

	// Freshness half-life: a product's engagement score halves every 180 days.
	freshnessHalfLife = 180 * 24 * time.Hour
)

// Score combines log-scaled engagement counters with the average rating and
// applies an exponential freshness decay anchored at createdAt. Log scaling
// keeps a single viral product from drowning out everything else; the decay
// keeps stale bestsellers from squatting on the top slots forever.
func Score(m Metrics, createdAt, now time.Time) float64 {
	engagement := orderWeight*math.Log1p(float64(m.Orders)) +
		reviewWeight*math.Log1p(float64(m.Reviews)) +
		viewWeight*math.Log1p(float64(m.Views)) +
		ratingWeight*m.AvgRating

	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	decay := math.Pow(0.5, age.Hours()/freshnessHalfLife.Hours())

	return engagement * decay
}
