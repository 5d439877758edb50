package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	pb "gopkg.in/cheggaaa/pb.v1"

	"tilemosaic/internal/render"
	"tilemosaic/tiling"
)

const OUTPUT string = `output`
const CROP string = `crop`
const QUIET string = `quiet`

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Assemble the tiles of a region into a PNG or JPEG with a JSON sidecar",
		Flags: append(regionFlags(),
			&cli.PathFlag{
				Name:     OUTPUT,
				Aliases:  []string{"o"},
				Usage:    "Output file; .png keeps the tile grid, .jpg/.jpeg is cropped and fitted to --width/--height",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  CROP,
				Usage: "Crop a PNG to the requested region",
			},
			&cli.BoolFlag{
				Name:    QUIET,
				Aliases: []string{"q"},
				Usage:   "Do not draw a progress bar",
			},
		),
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	output := c.Path(OUTPUT)
	ext := strings.ToLower(filepath.Ext(output))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return fmt.Errorf("unsupported output format %q (supported: .png, .jpg, .jpeg)", ext)
	}

	j, err := parseJob(c, cfg, newRegistry(cfg, log))
	if err != nil {
		return err
	}
	r, err := tiling.TileRangeLimit(j.extent, j.zoom, cfg.MaxTiles)
	if err != nil {
		return err
	}

	bar := pb.New(r.Count()).Prefix(fmt.Sprintf("Zoom %d : ", j.zoom))
	bar.Output = os.Stderr
	bar.NotPrint = c.Bool(QUIET)
	bar.SetRefreshRate(200 * time.Millisecond)

	assembler, _, err := newAssembler(cfg, cfg.CacheType, log, func(maptile.Tile) { bar.Increment() })
	if err != nil {
		return err
	}
	defer assembler.Session().Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Rendering mosaic",
		zap.String("source", j.source.ID),
		zap.Int("zoom", j.zoom),
		zap.Int("tiles", r.Count()),
		zap.String("extent", j.extent.String()),
	)

	bar.Start()
	m, err := assembler.Render(ctx, j.source.URL, j.extent, j.zoom)
	bar.Finish()
	if err != nil {
		return err
	}

	var meta render.Metadata
	if ext == ".png" {
		if meta, err = render.WritePNG(output, m, c.Bool(CROP)); err != nil {
			return err
		}
	} else {
		shutdown := startVips(cfg, log)
		defer shutdown()

		result, err := render.NewExporter(cfg.JPEGQuality, log).ExportJPEG(m, j.width, j.height)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, result.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		meta = render.NewMetadata(m, render.Crop(m), true)
		meta.Width, meta.Height = result.Width, result.Height
		if err := render.SaveMetadata(render.SidecarPath(output), meta); err != nil {
			return err
		}
	}

	stats := assembler.Session().Stats()
	log.Info("Mosaic written",
		zap.String("path", output),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int64("fetches", stats.Fetches),
		zap.Int64("hits", stats.Hits),
	)
	return nil
}

type tilesOutput struct {
	Source     string          `json:"source"`
	Zoom       int             `json:"zoom"`
	Projection string          `json:"projection"`
	Tiles      render.TileSpan `json:"tiles"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Covered    render.Bounds   `json:"covered"`
	Requested  render.Bounds   `json:"requested"`
}

func tilesCommand() *cli.Command {
	return &cli.Command{
		Name:   "tiles",
		Usage:  "Print the zoom, tile range and covered extent of a region without fetching",
		Flags:  regionFlags(),
		Action: runTiles,
	}
}

func runTiles(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := parseJob(c, cfg, newRegistry(cfg, log))
	if err != nil {
		return err
	}
	r, err := tiling.TileRangeLimit(j.extent, j.zoom, cfg.MaxTiles)
	if err != nil {
		return err
	}
	covered, err := r.Extent(j.extent.Projection())
	if err != nil {
		return err
	}

	w, h := r.PixelSize()
	out := tilesOutput{
		Source:     j.source.ID,
		Zoom:       j.zoom,
		Projection: j.extent.Projection().String(),
		Tiles:      render.TileSpan{MinX: r.MinX, MaxX: r.MaxX, MinY: r.MinY, MaxY: r.MaxY, Count: r.Count()},
		Width:      w,
		Height:     h,
		Covered:    render.Bounds{XMin: covered.XMin(), XMax: covered.XMax(), YMin: covered.YMin(), YMax: covered.YMax()},
		Requested:  render.Bounds{XMin: j.extent.XMin(), XMax: j.extent.XMax(), YMin: j.extent.YMin(), YMax: j.extent.YMax()},
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
