package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb/maptile"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tilemosaic/internal/config"
	"tilemosaic/internal/region"
	"tilemosaic/internal/sources"
	"tilemosaic/internal/transport"
	"tilemosaic/mosaic"
	"tilemosaic/tilecache"
	"tilemosaic/tiling"
	"tilemosaic/webmercator"
)

const SOURCE string = `source`
const BBOX string = `bbox`
const CENTER string = `center`
const SIZE string = `size`
const GEOJSON string = `geojson`
const PROJECTION string = `projection`
const ZOOM string = `zoom`
const WIDTH string = `width`
const HEIGHT string = `height`

var errNoRegion = errors.New("one of --bbox, --center or --geojson is required")

func regionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    SOURCE,
			Aliases: []string{"s"},
			Usage:   "Tile source id or URL template; the configured default when empty",
		},
		&cli.StringFlag{
			Name:  BBOX,
			Usage: "Region as minLon,minLat,maxLon,maxLat",
		},
		&cli.StringFlag{
			Name:  CENTER,
			Usage: "Region centre as lon,lat, used with --size",
		},
		&cli.StringFlag{
			Name:  SIZE,
			Usage: "Region size in normalized units as w or w,h",
			Value: "0.01",
		},
		&cli.PathFlag{
			Name:  GEOJSON,
			Usage: "GeoJSON file whose bounds are the region",
		},
		&cli.StringFlag{
			Name:  PROJECTION,
			Usage: "Projection coordinates are reported in: normal or epsg:3857",
			Value: webmercator.Normal.String(),
		},
		&cli.IntFlag{
			Name:    ZOOM,
			Aliases: []string{"z"},
			Usage:   "Zoom level; picked from --width and --height when unset",
		},
		&cli.IntFlag{
			Name:  WIDTH,
			Usage: "Target width in pixels",
		},
		&cli.IntFlag{
			Name:  HEIGHT,
			Usage: "Target height in pixels",
		},
	}
}

type job struct {
	source sources.Source
	extent webmercator.Extent
	zoom   int
	width  int
	height int
}

// parseJob resolves the source, region and zoom of a render or tiles
// invocation.
func parseJob(c *cli.Context, cfg *config.Config, registry *sources.Registry) (*job, error) {
	name := c.String(SOURCE)
	if name == "" {
		name = cfg.DefaultSource
	}
	src, err := registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	e, err := parseExtent(c)
	if err != nil {
		return nil, err
	}
	proj, err := webmercator.ParseProjection(c.String(PROJECTION))
	if err != nil {
		return nil, err
	}
	e = e.ReprojectTo(proj)

	j := &job{source: src, extent: e, width: c.Int(WIDTH), height: c.Int(HEIGHT)}
	if j.width < 0 || j.height < 0 {
		return nil, &tiling.InvalidViewportError{Width: j.width, Height: j.height}
	}
	if c.IsSet(ZOOM) {
		j.zoom = c.Int(ZOOM)
	} else {
		if j.zoom, err = tiling.SelectZoom(e, j.width, j.height); err != nil {
			return nil, fmt.Errorf("--zoom or both --width and --height are required: %w", err)
		}
	}
	if j.zoom < tiling.MinZoom || j.zoom > tiling.MaxZoom {
		return nil, &tiling.InvalidZoomError{Zoom: j.zoom}
	}
	if err := src.CheckZoom(j.zoom); err != nil {
		return nil, err
	}
	return j, nil
}

func parseExtent(c *cli.Context) (webmercator.Extent, error) {
	switch {
	case c.String(BBOX) != "":
		return region.ParseBBox(c.String(BBOX))
	case c.String(CENTER) != "":
		return region.ParseCenter(c.String(CENTER), c.String(SIZE))
	case c.Path(GEOJSON) != "":
		data, err := os.ReadFile(c.Path(GEOJSON))
		if err != nil {
			return webmercator.Extent{}, err
		}
		return region.FromGeoJSON(data)
	}
	return webmercator.Extent{}, errNoRegion
}

func newRegistry(cfg *config.Config, log *zap.Logger) *sources.Registry {
	registry := sources.New(cfg.SourcesDir, cfg.Sources, log)
	if err := registry.Scan(); err != nil {
		log.Warn("Sources scan failed", zap.Error(err))
	}
	return registry
}

// newAssembler wires the tile client, a cacheType store and a fresh session.
func newAssembler(cfg *config.Config, cacheType string, log *zap.Logger, onTile func(maptile.Tile)) (*mosaic.Assembler, *transport.Client, error) {
	var disk *transport.DiskStore
	if cfg.DiskCacheDir != "" {
		var err error
		if disk, err = transport.NewDiskStore(cfg.DiskCacheDir); err != nil {
			return nil, nil, err
		}
		log.Info("Using disk tile cache", zap.String("dir", disk.Dir()))
	}
	client := transport.NewClient(transport.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Disk:      disk,
		Logger:    log,
	})

	store, err := tilecache.NewStore(cacheType, cfg.CacheMemoryTiles, log)
	if err != nil {
		return nil, nil, err
	}
	session := tilecache.NewSession(store, log)

	return mosaic.New(session, client, mosaic.Options{
		Workers:  cfg.Workers,
		MaxTiles: cfg.MaxTiles,
		Logger:   log,
		OnTile:   onTile,
	}), client, nil
}
