// Package geo holds the great-circle math used for nearby search, redemption geofencing
// and push targeting.
package geo

import (
	"math"
	"sort"
)

const (
	// EarthRadiusKm is the mean Earth radius.
	EarthRadiusKm = 6371.0

	// DiscoveryRadiusKm bounds "nearby" deal and business searches.
	DiscoveryRadiusKm = 15.0
	// RedemptionRadiusKm is how close (25 m) a student must stand to a business location to redeem a ticket.
	RedemptionRadiusKm = 0.025
	// PushGroupRadiusKm groups universities that share a push notification audience.
	PushGroupRadiusKm = 15.0
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine great-circle distance between a and b, in kilometres.
func Distance(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng) - radians(a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	if h > 1 { // rounding on antipodal points
		h = 1
	}
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies at most radiusKm away from a.
func Within(a, b Point, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}

// Nearest returns the index of the point of pts closest to p along with its distance in km.
// It returns -1 when pts is empty.
func Nearest(p Point, pts []Point) (int, float64) {
	idx, best := -1, math.Inf(1)
	for i, pt := range pts {
		if d := Distance(p, pt); d < best {
			idx, best = i, d
		}
	}
	return idx, best
}

// GroupWithinRadius returns the indices of pts lying within radiusKm of center, closest first.
func GroupWithinRadius(center Point, pts []Point, radiusKm float64) []int {
	type hit struct {
		idx  int
		dist float64
	}
	hits := make([]hit, 0, len(pts))
	for i, pt := range pts {
		if d := Distance(center, pt); d <= radiusKm {
			hits = append(hits, hit{idx: i, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	indices := make([]int, 0, len(hits))
	for _, h := range hits {
		indices = append(indices, h.idx)
	}
	return indices
}
