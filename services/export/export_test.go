package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/ticket"
)

func TestWriteRedemptionsXLSX(t *testing.T) {
	rows := []ticket.RedemptionRow{
		{
			Redemption:    ticket.Redemption{DistanceM: 12.5, RedeemedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
			Code:          "AB12CD",
			DealTitle:     "2-for-1 coffee",
			LocationLabel: "Main St",
			StudentName:   "Ama Mensah",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRedemptionsXLSX(&buf, rows))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[redemptionSheet]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Code", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "AB12CD", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "Ama Mensah", sheet.Rows[1].Cells[4].String())
}

func TestBusinessesGeoJSON(t *testing.T) {
	bizs := []business.NearbyBusiness{{
		Business: business.Business{
			ID:       "biz-1",
			Name:     "Bean There",
			Category: "cafe",
			Locations: []business.Location{
				{ID: "loc-1", Label: "Campus", Lat: 5.6037, Lng: -0.1870},
				{ID: "loc-2", Label: "Downtown", Lat: 5.5600, Lng: -0.2050},
			},
		},
		DistanceKm: 0.4,
	}}

	data, err := BusinessesGeoJSON(bizs)
	require.NoError(t, err)

	var got struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "FeatureCollection", got.Type)
	require.Len(t, got.Features, 2)
	assert.Equal(t, "loc-1", got.Features[0].ID)
	assert.Equal(t, "Point", got.Features[0].Geometry.Type)
	assert.Equal(t, []float64{-0.1870, 5.6037}, got.Features[0].Geometry.Coordinates)
	assert.Equal(t, "Bean There", got.Features[0].Properties["name"])
}

func TestBusinessesGeoJSON_Empty(t *testing.T) {
	data, err := BusinessesGeoJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}
