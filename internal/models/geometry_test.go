package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const multiPolygonJSON = `{"type": "MultiPolygon", "coordinates": [[[[37.602, 55.7533], [37.6015, 55.7508], [37.6093, 55.749], [37.602, 55.7533]]]]}`

func TestMultiPolygonFromGeoJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		mp, err := MultiPolygonFromGeoJSON([]byte(multiPolygonJSON))
		require.NoError(t, err)
		require.Len(t, mp, 1)
	})

	t.Run("polygon is rejected", func(t *testing.T) {
		_, err := MultiPolygonFromGeoJSON([]byte(`{"type": "Polygon", "coordinates": [[[37.6, 55.7], [37.61, 55.7], [37.6, 55.71], [37.6, 55.7]]]}`))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := MultiPolygonFromGeoJSON([]byte(`{"type": "MultiPolygon"`))
		require.Error(t, err)
	})
}

func TestPointFromGeoJSON(t *testing.T) {
	p, err := PointFromGeoJSON([]byte(`{"type": "Point", "coordinates": [37.6176, 55.7558]}`))
	require.NoError(t, err)
	require.Equal(t, 37.6176, p[0])
	require.Equal(t, 55.7558, p[1])

	_, err = PointFromGeoJSON([]byte(`{"type": "LineString", "coordinates": [[37.6, 55.7], [37.7, 55.8]]}`))
	require.Error(t, err)
}

func TestGeometryRoundTrip(t *testing.T) {
	mp, err := MultiPolygonFromGeoJSON([]byte(multiPolygonJSON))
	require.NoError(t, err)

	out, err := GeometryJSON(mp)
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "MultiPolygon", decoded.Type)
}

func TestEventTypeValid(t *testing.T) {
	for _, e := range []EventType{EventStart, EventShow, EventStop, EventWarning, EventError} {
		require.True(t, e.Valid(), string(e))
	}
	require.False(t, EventType("XX").Valid())
	require.False(t, EventType("").Valid())
}
