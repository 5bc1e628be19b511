package models

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MultiPolygonFromGeoJSON decodes a GeoJSON geometry and requires it to
// be a MultiPolygon. Any other geometry kind is rejected, a Polygon is
// not promoted.
func MultiPolygonFromGeoJSON(data []byte) (orb.MultiPolygon, error) {
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}

	mp, ok := geom.Geometry().(orb.MultiPolygon)
	if !ok {
		return nil, fmt.Errorf("expected MultiPolygon, got %s", geom.Type)
	}

	return mp, nil
}

// PointFromGeoJSON decodes a GeoJSON geometry and requires it to be a Point
func PointFromGeoJSON(data []byte) (orb.Point, error) {
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return orb.Point{}, fmt.Errorf("decode geometry: %w", err)
	}

	p, ok := geom.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected Point, got %s", geom.Type)
	}

	return p, nil
}

// GeometryJSON encodes a geometry as a GeoJSON geometry object
func GeometryJSON(g orb.Geometry) ([]byte, error) {
	return geojson.NewGeometry(g).MarshalJSON()
}
