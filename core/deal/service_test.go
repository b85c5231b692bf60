package deal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/ranking"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func bizAt(city string, p geo.Point) *business.Business {
	return &business.Business{
		City:      city,
		Status:    business.StatusApproved,
		Locations: []business.Location{{Lat: p.Lat, Lng: p.Lng}},
	}
}

func TestDeal_IsAvailable(t *testing.T) {
	approved := bizAt("Tunis", geo.Point{})
	pending := &business.Business{Status: business.StatusPending}

	tests := []struct {
		name string
		deal Deal
		want bool
	}{
		{"active no expiry", Deal{IsActive: true, Business: approved}, true},
		{"inactive", Deal{IsActive: false, Business: approved}, false},
		{"expired", Deal{IsActive: true, ExpiresAt: now.Add(-time.Minute), Business: approved}, false},
		{"expires right now", Deal{IsActive: true, ExpiresAt: now, Business: approved}, false},
		{"expires later", Deal{IsActive: true, ExpiresAt: now.Add(time.Hour), Business: approved}, true},
		{"business pending", Deal{IsActive: true, Business: pending}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.deal.IsAvailable(now))
		})
	}
}

func TestRankFeed(t *testing.T) {
	tunis := bizAt("Tunis", geo.Point{Lat: 36.8065, Lng: 10.1815})
	sousse := bizAt("Sousse", geo.Point{Lat: 35.8256, Lng: 10.6084})
	old := now.Add(-30 * 24 * time.Hour)

	deals := []Deal{
		{ID: "plain", Category: "tech", CreatedAt: old, Business: sousse},
		{ID: "city", Category: "tech", CreatedAt: old, Business: tunis},
		{ID: "saved-new", Category: "food", CreatedAt: now.Add(-time.Hour), Business: sousse},
		{ID: "boosted", Priority: 100, Category: "tech", CreatedAt: old, Business: sousse},
	}
	profile := ranking.NewProfile(" tunis ", "food")

	feed := RankFeed(deals, profile, now, core.Page{})
	require.Len(t, feed, 4)
	ids := make([]string, len(feed))
	scores := make([]int, len(feed))
	for i, rd := range feed {
		ids[i], scores[i] = rd.ID, rd.Score
	}
	assert.Equal(t, []string{"boosted", "saved-new", "city", "plain"}, ids)
	assert.Equal(t, []int{100, 25, 15, 0}, scores)

	t.Run("paginated", func(t *testing.T) {
		page := RankFeed(deals, profile, now, core.Page{Limit: 2, Offset: 1})
		require.Len(t, page, 2)
		assert.Equal(t, "saved-new", page[0].ID)
		assert.Equal(t, "city", page[1].ID)
	})

	t.Run("offset past the end", func(t *testing.T) {
		assert.Empty(t, RankFeed(deals, profile, now, core.Page{Limit: 2, Offset: 10}))
	})
}

func TestFilterNearby(t *testing.T) {
	deals := []Deal{
		{ID: "far", Business: bizAt("Tunis", geo.Point{Lat: 36.8100, Lng: 10.1900})},
		{ID: "here", Business: bizAt("Tunis", geo.Point{Lat: 36.8065, Lng: 10.1815})},
		{ID: "no-business"},
	}

	got := FilterNearby(deals, geo.Point{Lat: 36.8065, Lng: 10.1815}, geo.DiscoveryRadiusKm)
	require.Len(t, got, 2)
	assert.Equal(t, "here", got[0].ID)
	assert.Equal(t, "far", got[1].ID)

	assert.Empty(t, FilterNearby(deals, geo.Point{Lat: 37.2565, Lng: 10.1815}, geo.DiscoveryRadiusKm))
}
