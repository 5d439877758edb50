// Package region turns user supplied region descriptions into extents.
package region

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tilemosaic/webmercator"
)

var ErrEmptyGeometry = errors.New("geojson has no geometry")

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (webmercator.Extent, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return webmercator.Extent{}, fmt.Errorf("bbox %q: %w", s, err)
	}
	return webmercator.FromLonLatBox(v[0], v[2], v[1], v[3])
}

// ParseCenter parses a "lon,lat" centre and a "w[,h]" size in normalized
// plane units. A single size gives a square.
func ParseCenter(center, size string) (webmercator.Extent, error) {
	c, err := parseFloats(center, 2)
	if err != nil {
		return webmercator.Extent{}, fmt.Errorf("center %q: %w", center, err)
	}

	var sz webmercator.Size
	if strings.Contains(size, ",") {
		v, err := parseFloats(size, 2)
		if err != nil {
			return webmercator.Extent{}, fmt.Errorf("size %q: %w", size, err)
		}
		sz = webmercator.Size{Width: v[0], Height: v[1]}
	} else {
		v, err := parseFloats(size, 1)
		if err != nil {
			return webmercator.Extent{}, fmt.Errorf("size %q: %w", size, err)
		}
		sz = webmercator.Size{Width: v[0], Aspect: 1}
	}
	return webmercator.FromCenterLonLat(c[0], c[1], sz)
}

// FromGeoJSON returns the extent of the bound of every geometry in a
// FeatureCollection, a Feature or a bare geometry.
func FromGeoJSON(data []byte) (webmercator.Extent, error) {
	bound, err := geoJSONBound(data)
	if err != nil {
		return webmercator.Extent{}, err
	}
	if bound.Left() == bound.Right() || bound.Bottom() == bound.Top() {
		// a point or a straight line still needs an area
		bound = bound.Pad(1e-4)
	}
	return webmercator.FromLonLatBound(bound)
}

func geoJSONBound(data []byte) (orb.Bound, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var collection orb.Collection
		for _, f := range fc.Features {
			if f.Geometry != nil {
				collection = append(collection, f.Geometry)
			}
		}
		if len(collection) == 0 {
			return orb.Bound{}, ErrEmptyGeometry
		}
		return collection.Bound(), nil
	}

	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return f.Geometry.Bound(), nil
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("unable to parse geojson: %w", err)
	}
	geom := g.Geometry()
	if geom == nil {
		return orb.Bound{}, ErrEmptyGeometry
	}
	return geom.Bound(), nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
