// Package transport downloads and decodes map tiles over HTTP.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "tilemosaic"

	maxErrorBody = 2 << 10
)

var errEmptyTile = errors.New("empty tile")

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Disk, when set, keeps downloaded tile bytes between runs.
	Disk   *DiskStore
	Logger *zap.Logger
	// HTTPClient replaces the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

// Client fetches tiles from slippy-map tile servers. Its FetchTile method
// satisfies mosaic.Fetcher.
type Client struct {
	http      *http.Client
	userAgent string
	disk      *DiskStore
	log       *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		http:      client,
		userAgent: opts.UserAgent,
		disk:      opts.Disk,
		log:       opts.Logger,
	}
}

// FetchTile downloads and decodes tile t of the source template.
func (c *Client) FetchTile(ctx context.Context, source string, t maptile.Tile) (image.Image, error) {
	url := TileURL(source, t)

	data, err := c.FetchRaw(ctx, source, t)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{URL: url, Err: err}
	}
	return img, nil
}

// FetchRaw returns the undecoded tile bytes, from the disk store when
// present.
func (c *Client) FetchRaw(ctx context.Context, source string, t maptile.Tile) ([]byte, error) {
	if c.disk != nil {
		if data, ok := c.disk.Get(source, t); ok {
			return data, nil
		}
	}

	url := TileURL(source, t)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) == 0 {
		return nil, &DecodeError{URL: url, Err: errEmptyTile}
	}

	c.log.Debug("Tile downloaded",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	if c.disk != nil {
		if err := c.disk.Set(source, t, data); err != nil {
			c.log.Warn("Failed to store tile on disk", zap.String("url", url), zap.Error(err))
		}
	}
	return data, nil
}
