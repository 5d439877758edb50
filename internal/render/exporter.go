package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"tilemosaic/mosaic"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 82

// Result is an encoded image.
type Result struct {
	Data   []byte
	ETag   string
	Size   int
	Width  int
	Height int
}

// Exporter crops mosaics to their requested extent, scales them and
// encodes them as JPEG through libvips. vips.Startup must have been called.
type Exporter struct {
	quality int
	logger  *zap.Logger
}

func NewExporter(quality int, logger *zap.Logger) *Exporter {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{quality: quality, logger: logger}
}

// ExportJPEG crops m to its requested extent and fits it into a
// width x height box. A zero dimension is unconstrained; when both are
// given the fitted image is padded to exactly width x height.
func (e *Exporter) ExportJPEG(m *mosaic.Mosaic, width, height int) (*Result, error) {
	rect := CropRect(m)

	buf, err := encodePNG(m.Image)
	if err != nil {
		return nil, err
	}
	img, err := vips.NewPngloadBuffer(buf, vips.DefaultPngloadBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open mosaic: %w", err)
	}
	defer img.Close()

	// Step 1: cut the requested extent out of the tile-aligned mosaic.
	if err := img.ExtractArea(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()); err != nil {
		return nil, fmt.Errorf("failed to extract area: %w", err)
	}

	// Step 2: fit into the target box, keeping the aspect ratio.
	if scale := fitScale(rect.Dx(), rect.Dy(), width, height); scale != 1 {
		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := img.Resize(scale, resizeOpts); err != nil {
			return nil, fmt.Errorf("failed to resize: %w", err)
		}
	}

	// Step 3: pad to the exact box, centred.
	w, h := img.Width(), img.Height()
	if width > 0 && height > 0 && (w < width || h < height) {
		embedOpts := vips.DefaultEmbedOptions()
		embedOpts.Extend = vips.ExtendBackground
		embedOpts.Background = []float64{221, 221, 221} // #ddd
		if err := img.Embed((width-w)/2, (height-h)/2, width, height, embedOpts); err != nil {
			return nil, fmt.Errorf("failed to pad: %w", err)
		}
	}

	// Step 4: export as JPEG.
	jpegOpts := vips.DefaultJpegsaveBufferOptions()
	jpegOpts.Q = e.quality
	jpegOpts.Interlace = false

	data, err := img.JpegsaveBuffer(jpegOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	result := &Result{
		Data:   data,
		ETag:   e.etag(m, width, height),
		Size:   len(data),
		Width:  img.Width(),
		Height: img.Height(),
	}
	e.logger.Debug("Mosaic exported",
		zap.String("source", m.Source),
		zap.Int("zoom", m.Zoom()),
		zap.Int("width", result.Width),
		zap.Int("height", result.Height),
		zap.Int("bytes", result.Size))
	return result, nil
}

// encodePNG is the in-memory form libvips loads a mosaic from.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode mosaic: %w", err)
	}
	return buf.Bytes(), nil
}

// fitScale is the factor that fits a w x h image into maxW x maxH.
func fitScale(w, h, maxW, maxH int) float64 {
	scale := math.Inf(1)
	if maxW > 0 {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if math.IsInf(scale, 1) {
		return 1
	}
	return scale
}

func (e *Exporter) etag(m *mosaic.Mosaic, width, height int) string {
	keyStr := fmt.Sprintf("%s|%d|%s|%dx%d|q%d", m.Source, m.Zoom(), m.Requested, width, height, e.quality)
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])[:16]
}
