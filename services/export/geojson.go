package exportsvc

import (
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/trezcool/campusdeals/core/business"
)

const GeoJSONContentType = "application/geo+json"

// BusinessesGeoJSON renders every location of bizs as a point feature, for map views.
func BusinessesGeoJSON(bizs []business.NearbyBusiness) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(bizs))}
	for _, b := range bizs {
		for _, loc := range b.Locations {
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:       loc.ID,
				Geometry: geom.NewPointFlat(geom.XY, []float64{loc.Lng, loc.Lat}),
				Properties: map[string]interface{}{
					"business_id": b.ID,
					"name":        b.Name,
					"category":    b.Category,
					"label":       loc.Label,
					"address":     loc.Address,
					"distance_km": b.DistanceKm,
				},
			})
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "geojson: encode")
	}
	return data, nil
}
