package draw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sweepSource returns 0, 1, 2, ... wrapping at n so that every bucket gets hit.
type sweepSource struct{ next int64 }

func (s *sweepSource) Int63n(n int64) int64 {
	v := s.next % n
	s.next++
	return v
}

func TestPick(t *testing.T) {
	items := []Item{
		{ID: "a", Weight: 2, Quantity: Unlimited},
		{ID: "b", Weight: 5, Quantity: 0}, // sold out
		{ID: "c", Weight: 3, Quantity: 4},
		{ID: "d", Weight: 0, Quantity: 9}, // disabled
	}
	src := &sweepSource{}
	var got []string
	for i := 0; i < 5; i++ {
		idx, err := Pick(items, src)
		require.NoError(t, err)
		got = append(got, items[idx].ID)
	}
	// r: 0,1 -> a ; 2,3,4 -> c
	assert.Equal(t, []string{"a", "a", "c", "c", "c"}, got)
}

func TestPick_nothingToDraw(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
	}{
		{name: "empty"},
		{name: "all sold out", items: []Item{{ID: "a", Weight: 1, Quantity: 0}, {ID: "b", Weight: 9, Quantity: 0}}},
		{name: "no weight", items: []Item{{ID: "a", Weight: 0, Quantity: Unlimited}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Pick(tt.items, CryptoSource{})
			assert.Equal(t, ErrNothingToDraw, err)
			assert.Equal(t, -1, idx)
		})
	}
}

func TestPick_neverPicksSoldOut(t *testing.T) {
	items := []Item{
		{ID: "gone", Weight: 1000, Quantity: 0},
		{ID: "x", Weight: 1, Quantity: 1},
		{ID: "gone-too", Weight: 1000, Quantity: 0},
		{ID: "y", Weight: 2, Quantity: Unlimited},
	}
	sources := map[string]Source{
		"sweep":  &sweepSource{},
		"seeded": rand.New(rand.NewSource(7)),
		"crypto": CryptoSource{},
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3000; i++ {
				idx, err := Pick(items, src)
				require.NoError(t, err)
				assert.NotEqual(t, 0, items[idx].Quantity, "picked sold out item %q", items[idx].ID)
			}
		})
	}
}

func TestPick_distribution(t *testing.T) {
	items := []Item{
		{ID: "common", Weight: 60, Quantity: Unlimited},
		{ID: "sold-out", Weight: 500, Quantity: 0},
		{ID: "rare", Weight: 10, Quantity: Unlimited},
		{ID: "uncommon", Weight: 30, Quantity: 1000000},
	}
	const n = 200000
	src := rand.New(rand.NewSource(2024))
	counts := make(map[string]int, len(items))
	for i := 0; i < n; i++ {
		idx, err := Pick(items, src)
		require.NoError(t, err)
		counts[items[idx].ID]++
	}

	total := float64(TotalWeight(items))
	assert.Equal(t, 100.0, total)
	for _, it := range items {
		want := 0.0
		if it.Eligible() {
			want = float64(it.Weight) / total
		}
		assert.InDelta(t, want, float64(counts[it.ID])/n, 0.01, "item %q", it.ID)
	}
}
