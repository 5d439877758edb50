package render

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"tilemosaic/mosaic"
	"tilemosaic/webmercator"
)

// Bounds are extent bounds as reported in the extent's projection.
type Bounds struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

func boundsOf(e webmercator.Extent) Bounds {
	return Bounds{XMin: e.XMin(), XMax: e.XMax(), YMin: e.YMin(), YMax: e.YMax()}
}

// TileSpan is the tile rectangle a mosaic was assembled from.
type TileSpan struct {
	MinX  int `json:"min_x"`
	MaxX  int `json:"max_x"`
	MinY  int `json:"min_y"`
	MaxY  int `json:"max_y"`
	Count int `json:"count"`
}

// Metadata describes what the pixels of a written image cover.
type Metadata struct {
	Source     string   `json:"source"`
	Zoom       int      `json:"zoom"`
	Projection string   `json:"projection"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Tiles      TileSpan `json:"tiles"`
	Covered    Bounds   `json:"covered"`
	Requested  Bounds   `json:"requested"`
	// LonLat is the covered area as [minLon, minLat, maxLon, maxLat].
	LonLat [4]float64 `json:"lonlat_bbox"`
}

// NewMetadata describes img, which is either m.Image or its crop.
func NewMetadata(m *mosaic.Mosaic, img image.Image, cropped bool) Metadata {
	covered := m.Covered
	if cropped {
		covered = m.Requested
	}
	b := covered.GeographicBounds()
	return Metadata{
		Source:     m.Source,
		Zoom:       m.Zoom(),
		Projection: covered.Projection().String(),
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Tiles: TileSpan{
			MinX:  m.Range.MinX,
			MaxX:  m.Range.MaxX,
			MinY:  m.Range.MinY,
			MaxY:  m.Range.MaxY,
			Count: m.Range.Count(),
		},
		Covered:   boundsOf(covered),
		Requested: boundsOf(m.Requested),
		LonLat:    [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
	}
}

// SidecarPath is path with its extension replaced by .json.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// WritePNG writes the mosaic, or its crop to the requested extent, as a PNG
// with a JSON sidecar next to it.
func WritePNG(path string, m *mosaic.Mosaic, cropped bool) (Metadata, error) {
	var img image.Image = m.Image
	if cropped {
		img = Crop(m)
	}

	f, err := os.Create(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return Metadata{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return Metadata{}, err
	}

	meta := NewMetadata(m, img, cropped)
	if err := SaveMetadata(SidecarPath(path), meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func SaveMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta, nil
}
