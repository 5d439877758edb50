package render

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tilemosaic/mosaic"
	"tilemosaic/tiling"
	"tilemosaic/webmercator"
)

// testMosaic builds the mosaic of requested at zoom without fetching tiles.
func testMosaic(t *testing.T, requested webmercator.Extent, zoom int) *mosaic.Mosaic {
	t.Helper()
	r, err := tiling.TileRange(requested, zoom)
	require.NoError(t, err)
	covered, err := r.Extent(requested.Projection())
	require.NoError(t, err)
	w, h := r.PixelSize()
	return &mosaic.Mosaic{
		Image:     image.NewRGBA(image.Rect(0, 0, w, h)),
		Covered:   covered,
		Requested: requested,
		Range:     r,
		Source:    "osm",
	}
}

func mustExtent(t *testing.T, xmin, xmax, ymin, ymax float64) webmercator.Extent {
	t.Helper()
	e, err := webmercator.New(xmin, xmax, ymin, ymax, webmercator.Normal)
	require.NoError(t, err)
	return e
}

func TestCropRect(t *testing.T) {
	tests := []struct {
		name      string
		requested webmercator.Extent
		zoom      int
		want      image.Rectangle
	}{
		{
			name:      "tile aligned",
			requested: mustExtent(t, 0.25, 0.5, 0.25, 0.5),
			zoom:      2,
			want:      image.Rect(0, 0, 256, 256),
		},
		{
			name:      "inner quarter of one tile",
			requested: mustExtent(t, 0.0625, 0.1875, 0.0625, 0.1875),
			zoom:      2,
			want:      image.Rect(64, 64, 192, 192),
		},
		{
			name:      "straddling two tiles",
			requested: mustExtent(t, 0.1875, 0.3125, 0.0, 0.125),
			zoom:      2,
			want:      image.Rect(192, 0, 320, 128),
		},
		{
			name:      "across the antimeridian",
			requested: mustExtent(t, 0.9375, 1.0625, 0.5, 0.625),
			zoom:      2,
			want:      image.Rect(192, 0, 320, 128),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMosaic(t, tt.requested, tt.zoom)
			require.Equal(t, tt.want, CropRect(m))
			require.Equal(t, tt.want.Size(), Crop(m).Bounds().Size())
		})
	}
}

func TestCropRectInProjectedMosaic(t *testing.T) {
	requested := mustExtent(t, 0.0625, 0.1875, 0.0625, 0.1875).EPSG3857()
	m := testMosaic(t, requested, 2)
	require.Equal(t, image.Rect(64, 64, 192, 192), CropRect(m))
}

func TestFitScale(t *testing.T) {
	require.Equal(t, 1.0, fitScale(512, 256, 0, 0))
	require.Equal(t, 0.5, fitScale(512, 256, 256, 0))
	require.Equal(t, 0.5, fitScale(512, 256, 0, 128))
	require.Equal(t, 0.5, fitScale(512, 256, 256, 256))
	require.Equal(t, 2.0, fitScale(128, 128, 256, 1024))
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	m := testMosaic(t, mustExtent(t, 0.0625, 0.1875, 0.0625, 0.1875), 2)

	path := filepath.Join(dir, "mosaic.png")
	meta, err := WritePNG(path, m, false)
	require.NoError(t, err)
	require.Equal(t, 256, meta.Width)
	require.Equal(t, 2, meta.Zoom)
	require.Equal(t, "normal", meta.Projection)
	require.Equal(t, TileSpan{MinX: 0, MaxX: 0, MinY: 0, MaxY: 0, Count: 1}, meta.Tiles)
	require.Equal(t, Bounds{XMin: 0, XMax: 0.25, YMin: 0, YMax: 0.25}, meta.Covered)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 256, 256), img.Bounds())

	loaded, err := LoadMetadata(filepath.Join(dir, "mosaic.json"))
	require.NoError(t, err)
	require.Equal(t, meta, loaded)
}

func TestWritePNGCropped(t *testing.T) {
	dir := t.TempDir()
	m := testMosaic(t, mustExtent(t, 0.0625, 0.1875, 0.0625, 0.1875), 2)

	meta, err := WritePNG(filepath.Join(dir, "crop.png"), m, true)
	require.NoError(t, err)
	require.Equal(t, 128, meta.Width)
	require.Equal(t, 128, meta.Height)
	require.Equal(t, meta.Requested, meta.Covered)
}

func TestEncodePNG(t *testing.T) {
	m := testMosaic(t, mustExtent(t, 0.1875, 0.3125, 0.0, 0.125), 2)

	data, err := encodePNG(m.Image)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 512, 256), img.Bounds())
}

func TestSidecarPath(t *testing.T) {
	require.Equal(t, "out/map.json", SidecarPath("out/map.png"))
	require.Equal(t, "map.json", SidecarPath("map"))
}
