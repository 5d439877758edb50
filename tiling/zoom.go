package tiling

import (
	"math"

	"tilemosaic/webmercator"
)

// pixels per radian of mercator y at zoom 0
const zoomZeroPixelsPerRadian = TileSize / (2 * math.Pi)

// SelectZoom picks the zoom whose tiles best match the degrees per pixel
// needed to show e in a widthPx x heightPx viewport. One level of margin is
// taken off so the mosaic overshoots rather than undershoots the viewport.
// The result is clamped to [MinZoom, MaxZoom].
func SelectZoom(e webmercator.Extent, widthPx, heightPx int) (int, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return 0, &InvalidViewportError{Width: widthPx, Height: heightPx}
	}
	minLon, maxLon, minLat, maxLat := e.LonLatBox()

	// vertical centre measured in mercator y, not in degrees
	centerY := degrees(math.Atan(math.Sinh((mercatorY(minLat) + mercatorY(maxLat)) / 2)))

	horizontal := (maxLon - minLon) / float64(widthPx)

	halfSpan := mercatorY(maxLat) - mercatorY(centerY)
	worldScale := float64(heightPx) / 2 / (zoomZeroPixelsPerRadian * halfSpan)
	vertical := 360.0 / (worldScale * TileSize)

	resolution := math.Max(horizontal, vertical)
	zoom := int(math.Round(math.Log2(360/(resolution*TileSize)))) - 1

	if zoom < MinZoom {
		return MinZoom, nil
	}
	if zoom > MaxZoom {
		return MaxZoom, nil
	}
	return zoom, nil
}

func mercatorY(latitude float64) float64 {
	return math.Log(math.Tan(math.Pi * (0.25 + latitude/360)))
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
