package tiling

import (
	"errors"
	"image"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"

	"tilemosaic/webmercator"
)

func TestTileRangeStraddlingOrigin(t *testing.T) {
	e, err := webmercator.FromLonLatBox(-0.1, 0.1, -0.1, 0.1)
	require.NoError(t, err)

	r, err := TileRange(e, 10)
	require.NoError(t, err)
	require.Equal(t, Range{MinX: 511, MaxX: 512, MinY: 511, MaxY: 512, Zoom: 10}, r)
	require.True(t, r.Contains(maptile.New(511, 511, 10)))
	require.Equal(t, 4, r.Count())

	w, h := r.PixelSize()
	require.Equal(t, 512, w)
	require.Equal(t, 512, h)
}

func TestTileRangeWholeGlobeTooManyTiles(t *testing.T) {
	e, err := webmercator.FromLonLatBox(-180, 180, -85, 85)
	require.NoError(t, err)

	_, err = TileRange(e, 10)
	require.ErrorIs(t, err, ErrTooManyTiles)

	var tooMany *TooManyTilesError
	require.True(t, errors.As(err, &tooMany))
	require.Equal(t, 10, tooMany.Zoom)
	require.Equal(t, MaxTiles, tooMany.Limit)
	require.Greater(t, tooMany.Count, 1000000)
}

func TestTileRangeWholeWorldCount(t *testing.T) {
	e, err := webmercator.New(0, 1, 0, 1, webmercator.Normal)
	require.NoError(t, err)

	r, err := TileRangeLimit(e, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1<<20, r.Count())

	r, err = TileRange(e, 0)
	require.NoError(t, err)
	require.Equal(t, Range{MinX: 0, MaxX: 0, MinY: 0, MaxY: 0, Zoom: 0}, r)
}

func TestTileRangeRejectsHugeExtent(t *testing.T) {
	e, err := webmercator.FromLonLatBox(-1e300, 1e300, -10, 10)
	require.NoError(t, err)

	for _, limit := range []int{MaxTiles, 0, -1} {
		_, err = TileRangeLimit(e, 0, limit)
		require.ErrorIs(t, err, ErrTooManyTiles)

		var tooMany *TooManyTilesError
		require.True(t, errors.As(err, &tooMany))
		require.Positive(t, tooMany.Count)
		require.Less(t, tooMany.Range.MinX, 0)
		require.Greater(t, tooMany.Range.MaxX, 0)
	}
}

func TestTileRangeAbsoluteCeiling(t *testing.T) {
	e, err := webmercator.New(0, 2, 0, 1, webmercator.Normal)
	require.NoError(t, err)

	_, err = TileRangeLimit(e, 10, -1)
	require.ErrorIs(t, err, ErrTooManyTiles)

	var tooMany *TooManyTilesError
	require.True(t, errors.As(err, &tooMany))
	require.Equal(t, AbsoluteMaxTiles, tooMany.Limit)
	require.Equal(t, 2<<20, tooMany.Count)
}

func TestTileRangeReprojectsEPSG3857(t *testing.T) {
	e, err := webmercator.FromLonLatBox(-0.1, 0.1, -0.1, 0.1)
	require.NoError(t, err)

	normal, err := TileRange(e, 12)
	require.NoError(t, err)
	mercator, err := TileRange(e.EPSG3857(), 12)
	require.NoError(t, err)
	require.Equal(t, normal, mercator)
}

func TestTileRangeInvalidZoom(t *testing.T) {
	e, err := webmercator.New(0.1, 0.2, 0.1, 0.2, webmercator.Normal)
	require.NoError(t, err)

	_, err = TileRange(e, -1)
	require.ErrorIs(t, err, ErrInvalidZoom)
	_, err = TileRange(e, MaxZoom+1)
	require.ErrorIs(t, err, ErrInvalidZoom)
}

func TestTileRangeAcrossAntimeridian(t *testing.T) {
	// 0.9 .. 1.1 on the cylinder, i.e. 36°E of the antimeridian either side
	e, err := webmercator.New(0.9, 1.1, 0.4, 0.6, webmercator.Normal)
	require.NoError(t, err)

	r, err := TileRange(e, 3)
	require.NoError(t, err)
	require.Equal(t, 7, r.MinX)
	require.Equal(t, 8, r.MaxX)

	cells := r.Cells()
	require.Len(t, cells, r.Count())
	require.Equal(t, maptile.New(7, 3, 3), cells[0].Tile)
	require.Equal(t, image.Pt(0, 0), cells[0].Offset)
	require.Equal(t, maptile.New(0, 3, 3), cells[1].Tile)
	require.Equal(t, image.Pt(TileSize, 0), cells[1].Offset)
	require.Equal(t, image.Pt(0, TileSize), cells[2].Offset)

	require.True(t, r.Contains(maptile.New(0, 4, 3)))
	require.False(t, r.Contains(maptile.New(1, 4, 3)))
	require.False(t, r.Contains(maptile.New(7, 3, 4)))
}

func TestRangeExtentCoversRequest(t *testing.T) {
	requests := []struct {
		lonMin, lonMax, latMin, latMax float64
		zoom                           int
	}{
		{-0.1, 0.1, -0.1, 0.1, 10},
		{13.3, 13.5, 52.4, 52.6, 11},
		{-74.05, -73.9, 40.65, 40.8, 12},
		{170, 179.9, -45, -40, 6},
	}
	for _, req := range requests {
		e, err := webmercator.FromLonLatBox(req.lonMin, req.lonMax, req.latMin, req.latMax)
		require.NoError(t, err)

		r, err := TileRange(e, req.zoom)
		require.NoError(t, err)

		covered, err := r.Extent(webmercator.Normal)
		require.NoError(t, err)
		require.True(t, covered.Covers(e), "zoom %d: %s does not cover %s", req.zoom, covered, e)
		require.LessOrEqual(t, covered.XMin(), e.XMin())
		require.GreaterOrEqual(t, covered.XMax(), e.XMax())
		require.LessOrEqual(t, covered.YMin(), e.YMin())
		require.GreaterOrEqual(t, covered.YMax(), e.YMax())
	}
}

func TestTilesWrapOntoGrid(t *testing.T) {
	r := Range{MinX: -1, MaxX: 0, MinY: 0, MaxY: 0, Zoom: 1}
	require.Equal(t, []maptile.Tile{maptile.New(1, 0, 1), maptile.New(0, 0, 1)}, r.Tiles())
}
