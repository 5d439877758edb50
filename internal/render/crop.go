// Package render turns assembled mosaics into files and HTTP payloads.
package render

import (
	"image"
	"math"

	"tilemosaic/mosaic"
)

// CropRect is the pixel rectangle of the requested extent inside the
// tile-aligned mosaic image. The whole image is returned when the request
// does not intersect it.
func CropRect(m *mosaic.Mosaic) image.Rectangle {
	b := m.Image.Bounds()
	cx0, cx1, cy0, cy1 := m.Covered.NormalBounds()
	rx0, rx1, ry0, ry1 := m.Requested.NormalBounds()

	// bring the request onto the same turn of the cylinder as the mosaic
	turns := math.Floor(rx0 - cx0 + 1e-12)
	rx0 -= turns
	rx1 -= turns

	sx := float64(b.Dx()) / (cx1 - cx0)
	sy := float64(b.Dy()) / (cy1 - cy0)

	r := image.Rect(
		b.Min.X+int(math.Floor((rx0-cx0)*sx+1e-9)),
		b.Min.Y+int(math.Floor((ry0-cy0)*sy+1e-9)),
		b.Min.X+int(math.Ceil((rx1-cx0)*sx-1e-9)),
		b.Min.Y+int(math.Ceil((ry1-cy0)*sy-1e-9)),
	).Intersect(b)

	if r.Empty() {
		return b
	}
	return r
}

// Crop returns the requested part of the mosaic without copying pixels.
func Crop(m *mosaic.Mosaic) image.Image {
	return m.Image.SubImage(CropRect(m))
}
