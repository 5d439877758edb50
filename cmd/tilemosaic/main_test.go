package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tilemosaic/internal/config"
	"tilemosaic/internal/render"
	"tilemosaic/internal/sources"
	"tilemosaic/mosaic"
	"tilemosaic/tilecache"
	"tilemosaic/tiling"
)

func runTilesApp(t *testing.T, args ...string) (tilesOutput, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf

	err := app.Run(append([]string{"tilemosaic", "--log-level", "error", "tiles"}, args...))
	var out tilesOutput
	if err == nil {
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	}
	return out, err
}

func TestTilesCommand(t *testing.T) {
	out, err := runTilesApp(t, "--bbox", "-0.1,-0.1,0.1,0.1", "--zoom", "10")
	require.NoError(t, err)
	require.Equal(t, "osm", out.Source)
	require.Equal(t, 10, out.Zoom)
	require.Equal(t, "normal", out.Projection)
	require.Equal(t, render.TileSpan{MinX: 511, MaxX: 512, MinY: 511, MaxY: 512, Count: 4}, out.Tiles)
	require.Equal(t, 512, out.Width)
	require.Equal(t, 512, out.Height)
}

func TestTilesCommandSelectsZoom(t *testing.T) {
	out, err := runTilesApp(t, "--center", "0,0", "--size", "0.25", "--width", "256", "--height", "256", "--projection", "epsg:3857")
	require.NoError(t, err)
	require.Equal(t, 1, out.Zoom)
	require.Equal(t, "epsg:3857", out.Projection)
	require.Greater(t, out.Covered.XMax, 1e6)
}

func TestTilesCommandGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	doc := `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-0.1,-0.1],[0.1,-0.1],[0.1,0.1],[-0.1,0.1],[-0.1,-0.1]]]},"properties":{}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	out, err := runTilesApp(t, "--geojson", path, "--zoom", "10")
	require.NoError(t, err)
	require.Equal(t, 4, out.Tiles.Count)
}

func TestTilesCommandErrors(t *testing.T) {
	_, err := runTilesApp(t, "--zoom", "3")
	require.ErrorIs(t, err, errNoRegion)

	_, err = runTilesApp(t, "--bbox", "0,0,1,1")
	require.ErrorIs(t, err, tiling.ErrInvalidViewport)

	_, err = runTilesApp(t, "--bbox", "-180,-85,180,85", "--zoom", "10")
	require.ErrorIs(t, err, tiling.ErrTooManyTiles)

	_, err = runTilesApp(t, "--source", "nope", "--bbox", "0,0,1,1", "--zoom", "3")
	require.ErrorIs(t, err, sources.ErrUnknownSource)

	_, err = runTilesApp(t, "--bbox", "0,0,0.001,0.001", "--zoom", "20")
	require.ErrorIs(t, err, sources.ErrZoomLimit)
}

func TestWarmupTiles(t *testing.T) {
	var calls atomic.Int32
	fetcher := mosaic.FetcherFunc(func(ctx context.Context, source string, tile maptile.Tile) (image.Image, error) {
		calls.Add(1)
		if tile.Z == 1 && tile.X == 1 && tile.Y == 1 {
			return nil, errors.New("HTTP 404")
		}
		return image.NewRGBA(image.Rect(0, 0, 256, 256)), nil
	})
	session := tilecache.NewSession(nil, nil)
	src := sources.Source{ID: "test", URL: "https://tiles.test/{z}/{x}/{y}.png", MaxZoom: 1}

	warmupTiles(context.Background(), 3, 2, src, session, fetcher, zaptest.NewLogger(t))

	// zoom 0 and 1 only, the source stops at 1
	require.Equal(t, int32(5), calls.Load())
	stats := session.Stats()
	require.Equal(t, 5, stats.Entries)
	require.Equal(t, int64(1), stats.Failures)
}

func TestWarmupTilesCancelled(t *testing.T) {
	fetcher := mosaic.FetcherFunc(func(ctx context.Context, source string, tile maptile.Tile) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 256, 256)), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := tilecache.NewSession(nil, nil)
	src := sources.Source{ID: "test", URL: "https://tiles.test/{z}/{x}/{y}.png", MaxZoom: 4}
	warmupTiles(ctx, 4, 1, src, session, fetcher, zaptest.NewLogger(t))

	require.Zero(t, session.Stats().Entries)
}

func TestServeCacheIsBounded(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.CacheMemoryTiles = 2

	assembler, _, err := newAssembler(cfg, cfg.ServeCacheType, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	session := assembler.Session()
	defer session.Close()

	failing := func(ctx context.Context) (image.Image, error) {
		return nil, errors.New("HTTP 503")
	}
	for x := uint32(0); x < 3; x++ {
		key := tilecache.Key{Source: "osm", Tile: maptile.New(x, 0, 2)}
		_, err := session.GetOrFetch(context.Background(), key, failing)
		require.Error(t, err)
	}

	// the oldest failure is evicted and its tile can be fetched again
	require.Eventually(t, func() bool { return session.Stats().Entries == 2 }, time.Second, 5*time.Millisecond)
	img, err := session.GetOrFetch(context.Background(), tilecache.Key{Source: "osm", Tile: maptile.New(0, 0, 2)},
		func(ctx context.Context) (image.Image, error) {
			return image.NewRGBA(image.Rect(0, 0, 256, 256)), nil
		})
	require.NoError(t, err)
	require.NotNil(t, img)
}
