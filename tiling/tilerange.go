// Package tiling picks zoom levels and the tile rectangles that cover a
// webmercator.Extent.
package tiling

import (
	"image"
	"math"

	"github.com/paulmach/orb/maptile"

	"tilemosaic/webmercator"
)

const (
	// TileSize is the edge of a tile in pixels.
	TileSize = 256

	MinZoom = 0
	MaxZoom = 20

	// MaxTiles is the default ceiling on the tiles a single mosaic may need.
	MaxTiles = 200

	// AbsoluteMaxTiles caps every range, including those built without a
	// configured limit.
	AbsoluteMaxTiles = 1 << 20
)

// Range is an inclusive rectangle of tile indices at one zoom level. X
// indices follow the extent across the antimeridian and may leave
// [0, 2^zoom); Tiles and Cells wrap them back onto the grid.
type Range struct {
	MinX, MaxX int
	MinY, MaxY int
	Zoom       maptile.Zoom
}

// Cell is one tile of a Range and its pixel offset inside the mosaic.
type Cell struct {
	Tile   maptile.Tile
	Offset image.Point
}

// TileRange returns the tiles covering e at zoom, refusing ranges larger
// than MaxTiles.
func TileRange(e webmercator.Extent, zoom int) (Range, error) {
	return TileRangeLimit(e, zoom, MaxTiles)
}

// TileRangeLimit is TileRange with an explicit ceiling. A limit <= 0 leaves
// only the absolute ceiling AbsoluteMaxTiles.
func TileRangeLimit(e webmercator.Extent, zoom int, limit int) (Range, error) {
	if zoom < MinZoom || zoom > MaxZoom {
		return Range{}, &InvalidZoomError{Zoom: zoom}
	}
	if limit <= 0 || limit > AbsoluteMaxTiles {
		limit = AbsoluteMaxTiles
	}
	xmin, xmax, ymin, ymax := e.NormalBounds()
	n := math.Ldexp(1, zoom)

	// indices stay in float64 until the count is known to be sane; an
	// extent may be far wider than the world
	minX := math.Floor(n * xmin)
	maxX := math.Max(lastIndex(n*xmax), minX)
	minY := math.Floor(n * ymin)
	maxY := math.Min(math.Max(lastIndex(n*ymax), minY), n-1)

	r := Range{
		MinX: toIndex(minX),
		MaxX: toIndex(maxX),
		MinY: toIndex(minY),
		MaxY: toIndex(maxY),
		Zoom: maptile.Zoom(zoom),
	}
	if count := (maxX - minX + 1) * (maxY - minY + 1); count > float64(limit) {
		return Range{}, &TooManyTilesError{Zoom: zoom, Range: r, Count: toIndex(count), Limit: limit}
	}
	return r, nil
}

// lastIndex is the index of the tile whose interior holds the upper edge v.
// An edge lying exactly on a tile boundary does not pull in the next tile.
func lastIndex(v float64) float64 {
	return math.Ceil(v) - 1
}

// toIndex converts v, saturating at ±math.MaxInt32.
func toIndex(v float64) int {
	return int(math.Max(math.Min(v, math.MaxInt32), -math.MaxInt32))
}

// Count is the number of tiles in the range.
func (r Range) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// PixelSize is the size of the mosaic assembled from the range.
func (r Range) PixelSize() (width, height int) {
	return (r.MaxX - r.MinX + 1) * TileSize, (r.MaxY - r.MinY + 1) * TileSize
}

// Cells lists the tiles row by row together with their pixel offsets.
func (r Range) Cells() []Cell {
	n := 1 << uint(r.Zoom)
	cells := make([]Cell, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			cells = append(cells, Cell{
				Tile:   maptile.New(uint32(wrap(x, n)), uint32(y), r.Zoom),
				Offset: image.Pt((x-r.MinX)*TileSize, (y-r.MinY)*TileSize),
			})
		}
	}
	return cells
}

// Tiles lists the tile addresses of the range, x wrapped onto the grid.
func (r Range) Tiles() []maptile.Tile {
	cells := r.Cells()
	tiles := make([]maptile.Tile, len(cells))
	for i, c := range cells {
		tiles[i] = c.Tile
	}
	return tiles
}

// Contains reports whether t is one of the range's tiles.
func (r Range) Contains(t maptile.Tile) bool {
	if t.Z != r.Zoom || int(t.Y) < r.MinY || int(t.Y) > r.MaxY {
		return false
	}
	n := 1 << uint(r.Zoom)
	if r.MaxX-r.MinX+1 >= n {
		return true
	}
	offset := wrap(int(t.X)-r.MinX, n)
	return offset <= r.MaxX-r.MinX
}

// Extent is the rectangle covered by the range's tile edges, reported in
// proj.
func (r Range) Extent(proj webmercator.Projection) (webmercator.Extent, error) {
	n := math.Ldexp(1, int(r.Zoom))
	return webmercator.New(
		float64(r.MinX)/n, float64(r.MaxX+1)/n,
		float64(r.MinY)/n, float64(r.MaxY+1)/n,
		proj,
	)
}

func wrap(d, m int) int {
	r := d % m
	if r < 0 {
		return r + m
	}
	return r
}
