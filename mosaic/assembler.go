// Package mosaic stitches the tiles of a tile range into one raster.
//
// Tiles are resolved through a tilecache.Session and fetched concurrently.
// The first tile that cannot be fetched cancels the remaining fetches and
// the assembly returns a *TileFetchError without an image.
package mosaic

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"tilemosaic/tilecache"
	"tilemosaic/tiling"
	"tilemosaic/webmercator"
)

// DefaultWorkers bounds the concurrent tile fetches of one assembly.
const DefaultWorkers = 8

// Fetcher loads a single decoded tile of a tile source.
type Fetcher interface {
	FetchTile(ctx context.Context, source string, tile maptile.Tile) (image.Image, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, source string, tile maptile.Tile) (image.Image, error)

func (f FetcherFunc) FetchTile(ctx context.Context, source string, tile maptile.Tile) (image.Image, error) {
	return f(ctx, source, tile)
}

// Mosaic is an assembled raster and the extent its pixels cover.
type Mosaic struct {
	Image *image.RGBA
	// Covered is the tile-aligned extent of Image. It contains Requested.
	Covered   webmercator.Extent
	Requested webmercator.Extent
	Range     tiling.Range
	Source    string
}

// Zoom is the zoom level the mosaic was assembled at.
func (m *Mosaic) Zoom() int {
	return int(m.Range.Zoom)
}

type Options struct {
	// Workers bounds concurrent fetches, DefaultWorkers when zero.
	Workers int
	// MaxTiles is the tile ceiling of Render, tiling.MaxTiles when zero
	// and tiling.AbsoluteMaxTiles when negative.
	MaxTiles int
	Logger   *zap.Logger
	// OnTile is called from worker goroutines after each tile is placed.
	OnTile func(tile maptile.Tile)
}

type Assembler struct {
	cache    *tilecache.Session
	fetcher  Fetcher
	workers  int
	maxTiles int
	log      *zap.Logger
	onTile   func(maptile.Tile)
}

func New(cache *tilecache.Session, fetcher Fetcher, opts Options) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxTiles == 0 {
		opts.MaxTiles = tiling.MaxTiles
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if cache == nil {
		cache = tilecache.NewSession(nil, opts.Logger)
	}
	return &Assembler{
		cache:    cache,
		fetcher:  fetcher,
		workers:  opts.Workers,
		maxTiles: opts.MaxTiles,
		log:      opts.Logger,
		onTile:   opts.OnTile,
	}
}

// Session is the tile cache the assembler resolves tiles through.
func (a *Assembler) Session() *tilecache.Session {
	return a.cache
}

// RenderViewport picks the zoom for a widthPx x heightPx viewport and
// renders e at that zoom.
func (a *Assembler) RenderViewport(ctx context.Context, source string, e webmercator.Extent, widthPx, heightPx int) (*Mosaic, error) {
	zoom, err := tiling.SelectZoom(e, widthPx, heightPx)
	if err != nil {
		return nil, err
	}
	return a.Render(ctx, source, e, zoom)
}

// Render assembles the tiles covering e at zoom. Covered is reported in
// the projection of e.
func (a *Assembler) Render(ctx context.Context, source string, e webmercator.Extent, zoom int) (*Mosaic, error) {
	r, err := tiling.TileRangeLimit(e, zoom, a.maxTiles)
	if err != nil {
		return nil, err
	}
	m, err := a.Assemble(ctx, source, r)
	if err != nil {
		return nil, err
	}
	m.Covered = m.Covered.ReprojectTo(e.Projection())
	m.Requested = e
	return m, nil
}

// Assemble fetches every tile of r and pastes it at its offset in the
// mosaic. It does not apply a tile ceiling.
func (a *Assembler) Assemble(ctx context.Context, source string, r tiling.Range) (*Mosaic, error) {
	covered, err := r.Extent(webmercator.Normal)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	w, h := r.PixelSize()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, cell := range r.Cells() {
		if gctx.Err() != nil {
			break
		}
		cell := cell
		g.Go(func() error {
			return a.place(gctx, dst, source, cell)
		})
	}

	if err := g.Wait(); err != nil {
		a.log.Warn("Mosaic assembly failed",
			zap.String("source", source),
			zap.Uint32("zoom", uint32(r.Zoom)),
			zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.log.Info("Mosaic assembled",
		zap.String("source", source),
		zap.Uint32("zoom", uint32(r.Zoom)),
		zap.Int("tiles", r.Count()),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &Mosaic{
		Image:     dst,
		Covered:   covered,
		Requested: covered,
		Range:     r,
		Source:    source,
	}, nil
}

func (a *Assembler) place(ctx context.Context, dst *image.RGBA, source string, cell tiling.Cell) error {
	key := tilecache.Key{Source: source, Tile: cell.Tile}
	img, err := a.cache.GetOrFetch(ctx, key, func(ctx context.Context) (image.Image, error) {
		img, err := a.fetcher.FetchTile(ctx, source, cell.Tile)
		if err == nil && img == nil {
			return nil, ErrEmptyTile
		}
		return img, err
	})
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return err
		}
		return &TileFetchError{Source: source, Tile: cell.Tile, Err: err}
	}

	rect := image.Rectangle{Min: cell.Offset, Max: cell.Offset.Add(image.Pt(tiling.TileSize, tiling.TileSize))}
	if b := img.Bounds(); b.Dx() == tiling.TileSize && b.Dy() == tiling.TileSize {
		draw.Copy(dst, cell.Offset, img, b, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	}

	if a.onTile != nil {
		a.onTile(cell.Tile)
	}
	return nil
}
