package university

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/campusdeals/core/geo"
)

func TestGroupNearby(t *testing.T) {
	carthage := University{ID: "carthage", Lat: 36.8065, Lng: 10.1815}
	manar := University{ID: "manar", Lat: 36.8381, Lng: 10.1450}
	manouba := University{ID: "manouba", Lat: 36.8101, Lng: 10.0863}
	sousse := University{ID: "sousse", Lat: 35.8256, Lng: 10.6084}

	all := []University{sousse, manouba, carthage, manar}
	ids := func(unis []University) []string {
		out := make([]string, 0, len(unis))
		for _, u := range unis {
			out = append(out, u.ID)
		}
		return out
	}

	assert.Equal(t, []string{"carthage", "manar", "manouba"}, ids(GroupNearby(carthage, all, geo.PushGroupRadiusKm)))
	assert.Equal(t, []string{"sousse"}, ids(GroupNearby(sousse, all, geo.PushGroupRadiusKm)))
	assert.Equal(t, []string{"carthage"}, ids(GroupNearby(carthage, all, 1)))
}
