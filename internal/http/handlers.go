package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilemosaic/internal/config"
	"tilemosaic/internal/region"
	"tilemosaic/internal/render"
	"tilemosaic/internal/sources"
	"tilemosaic/mosaic"
	"tilemosaic/tiling"
	"tilemosaic/webmercator"
)

var errBadRequest = errors.New("bad request")

// Exporter encodes a mosaic for the response body.
type Exporter interface {
	ExportJPEG(m *mosaic.Mosaic, width, height int) (*render.Result, error)
}

type Handlers struct {
	config    *config.Config
	logger    *zap.Logger
	registry  *sources.Registry
	assembler *mosaic.Assembler
	exporter  Exporter
}

func New(config *config.Config, logger *zap.Logger, registry *sources.Registry, assembler *mosaic.Assembler, exporter Exporter) *Handlers {
	return &Handlers{
		config:    config,
		logger:    logger,
		registry:  registry,
		assembler: assembler,
		exporter:  exporter,
	}
}

// Routes is the complete HTTP front-end including middleware.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sources", h.HandleSources)
	mux.HandleFunc("/api/tiles", h.HandleTiles)
	mux.HandleFunc("/api/mosaic", h.HandleMosaic)
	mux.HandleFunc("/api/stats", h.HandleStats)
	mux.HandleFunc("/healthz", h.HandleHealthz)

	return h.CORSMiddleware(h.RequestLoggingMiddleware(mux))
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && (strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host)) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := h.assembler.Session()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session.ID().String(),
		"cache":   session.Stats(),
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// tilesResponse is the dry run answer of /api/tiles.
type tilesResponse struct {
	Source     string          `json:"source"`
	Zoom       int             `json:"zoom"`
	Projection string          `json:"projection"`
	Tiles      render.TileSpan `json:"tiles"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Covered    render.Bounds   `json:"covered"`
	Requested  render.Bounds   `json:"requested"`
	Addresses  [][3]uint32     `json:"addresses"`
}

// HandleTiles reports the zoom and tiles a mosaic request would use
// without fetching anything.
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := h.parseMosaicRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	tr, err := tiling.TileRangeLimit(req.extent, req.zoom, h.config.MaxTiles)
	if err != nil {
		h.writeError(w, err)
		return
	}
	covered, err := tr.Extent(req.extent.Projection())
	if err != nil {
		h.writeError(w, err)
		return
	}

	addresses := make([][3]uint32, 0, tr.Count())
	for _, t := range tr.Tiles() {
		addresses = append(addresses, [3]uint32{uint32(t.Z), t.X, t.Y})
	}
	width, height := tr.PixelSize()

	writeJSON(w, http.StatusOK, tilesResponse{
		Source:     req.source.ID,
		Zoom:       req.zoom,
		Projection: req.extent.Projection().String(),
		Tiles: render.TileSpan{
			MinX: tr.MinX, MaxX: tr.MaxX, MinY: tr.MinY, MaxY: tr.MaxY, Count: tr.Count(),
		},
		Width:     width,
		Height:    height,
		Covered:   render.Bounds{XMin: covered.XMin(), XMax: covered.XMax(), YMin: covered.YMin(), YMax: covered.YMax()},
		Requested: render.Bounds{XMin: req.extent.XMin(), XMax: req.extent.XMax(), YMin: req.extent.YMin(), YMax: req.extent.YMax()},
		Addresses: addresses,
	})
}

// HandleMosaic renders the requested region as a JPEG.
func (h *Handlers) HandleMosaic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := h.parseMosaicRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	m, err := h.assembler.Render(r.Context(), req.source.URL, req.extent, req.zoom)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.exporter.ExportJPEG(m, req.width, req.height)
	if err != nil {
		h.logger.Error("Failed to export mosaic", zap.Error(err))
		h.writeError(w, err)
		return
	}

	etag := `"` + result.ETag + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Zoom", strconv.Itoa(m.Zoom()))
	w.Header().Set("X-Tile-Count", strconv.Itoa(m.Range.Count()))
	if req.source.Attribution != "" {
		w.Header().Set("X-Attribution", req.source.Attribution)
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", result.Size))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.Data)
}

type mosaicRequest struct {
	source sources.Source
	extent webmercator.Extent
	zoom   int
	width  int
	height int
}

// parseMosaicRequest reads source, bbox or center+size, projection, zoom,
// width and height. Without zoom it is derived from width and height.
func (h *Handlers) parseMosaicRequest(r *http.Request) (*mosaicRequest, error) {
	q := r.URL.Query()
	req := &mosaicRequest{}

	name := q.Get("source")
	if name == "" {
		name = h.config.DefaultSource
	}
	src, err := h.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	req.source = src

	switch {
	case q.Get("bbox") != "":
		req.extent, err = region.ParseBBox(q.Get("bbox"))
	case q.Get("center") != "" && q.Get("size") != "":
		req.extent, err = region.ParseCenter(q.Get("center"), q.Get("size"))
	default:
		err = fmt.Errorf("%w: bbox or center and size required", errBadRequest)
	}
	if err != nil {
		return nil, err
	}

	proj, err := webmercator.ParseProjection(q.Get("projection"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	req.extent = req.extent.ReprojectTo(proj)

	if req.width, err = queryInt(q.Get("width")); err != nil {
		return nil, fmt.Errorf("%w: width: %v", errBadRequest, err)
	}
	if req.height, err = queryInt(q.Get("height")); err != nil {
		return nil, fmt.Errorf("%w: height: %v", errBadRequest, err)
	}
	if req.width < 0 || req.height < 0 {
		return nil, &tiling.InvalidViewportError{Width: req.width, Height: req.height}
	}

	if z := q.Get("zoom"); z != "" {
		if req.zoom, err = strconv.Atoi(z); err != nil {
			return nil, fmt.Errorf("%w: zoom: %v", errBadRequest, err)
		}
	} else if req.width > 0 && req.height > 0 {
		if req.zoom, err = tiling.SelectZoom(req.extent, req.width, req.height); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%w: zoom or width and height required", errBadRequest)
	}

	if err := src.CheckZoom(req.zoom); err != nil {
		return nil, err
	}
	return req, nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, webmercator.ErrInvalidRange),
		errors.Is(err, webmercator.ErrMissingSize),
		errors.Is(err, webmercator.ErrLatitude),
		errors.Is(err, tiling.ErrInvalidViewport),
		errors.Is(err, tiling.ErrInvalidZoom),
		errors.Is(err, sources.ErrZoomLimit):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, tiling.ErrTooManyTiles):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, mosaic.ErrTileFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
