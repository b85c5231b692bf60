package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	carthage  = Point{Lat: 36.8065, Lng: 10.1815}
	lafayette = Point{Lat: 36.8100, Lng: 10.1900}
	bizerteRd = Point{Lat: 37.2565, Lng: 10.1815} // ~50 km north of carthage
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{name: "same point", a: carthage, b: carthage, want: 0},
		{name: "across town", a: carthage, b: lafayette, want: 0.851},
		{name: "50 km north", a: carthage, b: bizerteRd, want: 50.038},
		{name: "tunis to sousse", a: carthage, b: Point{Lat: 35.8256, Lng: 10.6084}, want: 115.583},
		{name: "paris to london", a: Point{Lat: 48.8566, Lng: 2.3522}, b: Point{Lat: 51.5074, Lng: -0.1278}, want: 343.556},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), 0.001)
		})
	}
}

func TestDistance_symmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randPoint := func() Point {
		return Point{Lat: rng.Float64()*180 - 90, Lng: rng.Float64()*360 - 180}
	}
	for i := 0; i < 1000; i++ {
		a, b := randPoint(), randPoint()
		assert.Equal(t, Distance(a, b), Distance(b, a), "a=%v b=%v", a, b)
		assert.Zero(t, Distance(a, a), "a=%v", a)
	}
}

func TestWithin(t *testing.T) {
	businesses := []Point{carthage, lafayette}

	t.Run("user next door gets both", func(t *testing.T) {
		for _, b := range businesses {
			assert.True(t, Within(carthage, b, DiscoveryRadiusKm))
		}
	})
	t.Run("user 50 km away gets neither", func(t *testing.T) {
		for _, b := range businesses {
			assert.False(t, Within(bizerteRd, b, DiscoveryRadiusKm))
		}
	})
	t.Run("redemption geofence", func(t *testing.T) {
		assert.True(t, Within(carthage, Point{Lat: 36.8066, Lng: 10.1817}, RedemptionRadiusKm))  // ~21 m
		assert.False(t, Within(carthage, Point{Lat: 36.8068, Lng: 10.1815}, RedemptionRadiusKm)) // ~33 m
	})
}

func TestNearest(t *testing.T) {
	idx, dist := Nearest(lafayette, []Point{bizerteRd, carthage})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.851, dist, 0.001)

	idx, _ = Nearest(carthage, nil)
	assert.Equal(t, -1, idx)
}

func TestGroupWithinRadius(t *testing.T) {
	pts := []Point{bizerteRd, lafayette, carthage, {Lat: 35.8256, Lng: 10.6084}}
	assert.Equal(t, []int{2, 1}, GroupWithinRadius(carthage, pts, PushGroupRadiusKm))
	assert.Empty(t, GroupWithinRadius(carthage, pts[3:], PushGroupRadiusKm))
}
