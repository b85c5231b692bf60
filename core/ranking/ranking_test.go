package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-30 * 24 * time.Hour)
	profile := NewProfile("Tunis", "Food", "books")

	tests := []struct {
		name string
		c    Candidate
		want int
	}{
		{name: "nothing", c: Candidate{Category: "sport", BusinessCity: "Sfax", CreatedAt: old}, want: 0},
		{name: "priority only", c: Candidate{Priority: 50, Category: "sport", BusinessCity: "Sfax", CreatedAt: old}, want: 50},
		{name: "saved category", c: Candidate{Category: "food", BusinessCity: "Sfax", CreatedAt: old}, want: 20},
		{name: "city match ignores case", c: Candidate{Category: "sport", BusinessCity: " tunis ", CreatedAt: old}, want: 15},
		{name: "new deal", c: Candidate{Category: "sport", BusinessCity: "Sfax", CreatedAt: now.Add(-6 * 24 * time.Hour)}, want: 5},
		{name: "exactly 7 days old", c: Candidate{Category: "sport", BusinessCity: "Sfax", CreatedAt: now.Add(-RecencyWindow)}, want: 5},
		{name: "8 days old", c: Candidate{Category: "sport", BusinessCity: "Sfax", CreatedAt: now.Add(-8 * 24 * time.Hour)}, want: 0},
		{name: "all boosts", c: Candidate{Priority: 10, Category: "Books", BusinessCity: "Tunis", CreatedAt: now}, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.c, profile, now))
		})
	}
}

func TestScore_noCampusCity(t *testing.T) {
	now := time.Now()
	c := Candidate{BusinessCity: "", CreatedAt: now.Add(-time.Hour * 24 * 30)}
	assert.Zero(t, Score(c, NewProfile(""), now))
}

func TestScore_monotonic(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	profile := NewProfile("Tunis", "food")
	boosts := []func(Candidate) Candidate{
		func(c Candidate) Candidate { c.Category = "food"; return c },
		func(c Candidate) Candidate { c.BusinessCity = "Tunis"; return c },
		func(c Candidate) Candidate { c.CreatedAt = now.Add(-time.Hour); return c },
	}

	// every combination of the three boosts, with and without an admin priority
	for mask := 0; mask < 8; mask++ {
		for _, priority := range []int{0, 7, -3} {
			base := Candidate{Priority: priority, Category: "sport", BusinessCity: "Sfax", CreatedAt: now.Add(-60 * 24 * time.Hour)}
			for i, boost := range boosts {
				if mask&(1<<i) != 0 {
					base = boost(base)
				}
			}
			for i, boost := range boosts {
				assert.GreaterOrEqual(t, Score(boost(base), profile, now), Score(base, profile, now), "mask=%b boost=%d", mask, i)
			}
		}
	}
}

func TestRank(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-30 * 24 * time.Hour)
	candidates := []Candidate{
		{Category: "sport", BusinessCity: "Sfax", CreatedAt: old},                // 0
		{Category: "food", BusinessCity: "Tunis", CreatedAt: now},                // 40
		{Priority: 100, Category: "sport", BusinessCity: "Sfax", CreatedAt: old}, // 100
		{Category: "sport", BusinessCity: "Sfax", CreatedAt: old},                // 0, after the first one
		{Category: "sport", BusinessCity: "Tunis", CreatedAt: old},               // 15
	}
	order, scores := Rank(candidates, NewProfile("tunis", "food"), now)
	assert.Equal(t, []int{2, 1, 4, 0, 3}, order)
	assert.Equal(t, []int{0, 40, 100, 0, 15}, scores)
}
