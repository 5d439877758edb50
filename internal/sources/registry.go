// Package sources keeps the named tile servers mosaics are built from.
package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilemosaic/internal/transport"
	"tilemosaic/tiling"
)

var (
	ErrUnknownSource = errors.New("unknown tile source")
	ErrZoomLimit     = errors.New("zoom above source limit")
)

// Source is a named tile server.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	MaxZoom     int    `json:"max_zoom"`
	Attribution string `json:"attribution,omitempty"`
}

// ZoomLimitError rejects a zoom the source does not serve.
type ZoomLimitError struct {
	Source  string
	Zoom    int
	MaxZoom int
}

func (e *ZoomLimitError) Error() string {
	return fmt.Sprintf("zoom level %d exceeds max zoom %d of source %s", e.Zoom, e.MaxZoom, e.Source)
}

func (e *ZoomLimitError) Is(target error) bool {
	return target == ErrZoomLimit
}

// CheckZoom fails with *ZoomLimitError above the source's max zoom.
func (s Source) CheckZoom(zoom int) error {
	if zoom > s.MaxZoom {
		return &ZoomLimitError{Source: s.ID, Zoom: zoom, MaxZoom: s.MaxZoom}
	}
	return nil
}

// Builtin are the sources available without configuration.
var Builtin = []Source{
	{
		ID:          "osm",
		Name:        "OpenStreetMap",
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:     19,
		Attribution: "© OpenStreetMap contributors",
	},
	{
		ID:          "stamen-terrain",
		Name:        "Stamen Terrain",
		URL:         "https://tiles.stadiamaps.com/tiles/stamen_terrain/{z}/{x}/{y}.png",
		MaxZoom:     18,
		Attribution: "© Stadia Maps © Stamen Design © OpenStreetMap contributors",
	},
}

// Registry resolves source names. Later layers override earlier ones:
// Builtin, then the configured templates, then the definitions directory.
type Registry struct {
	mu         sync.RWMutex
	dir        string
	configured map[string]string
	logger     *zap.Logger
	sources    map[string]Source
}

// New creates a registry. dir may be empty.
func New(dir string, configured map[string]string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		dir:        dir,
		configured: configured,
		logger:     logger,
	}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.sources = make(map[string]Source, len(Builtin)+len(r.configured))
	for _, s := range Builtin {
		r.sources[s.ID] = s
	}
	for id, url := range r.configured {
		r.sources[id] = Source{ID: id, Name: id, URL: url, MaxZoom: tiling.MaxZoom}
	}
}

// Scan reloads the registry, reading every *.json definition of the
// definitions directory. Definitions without an id get a generated one,
// written back to the file.
func (r *Registry) Scan() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
	if r.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read sources directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		src, err := loadDefinition(path)
		if err != nil {
			r.logger.Warn("Failed to load source definition, skipping", zap.String("path", path), zap.Error(err))
			continue
		}

		if src.ID == "" {
			src.ID = uuid.New().String()
			if err := saveDefinition(path, src); err != nil {
				r.logger.Warn("Failed to save source definition", zap.String("path", path), zap.Error(err))
			} else {
				r.logger.Info("Assigned id to source definition", zap.String("path", path), zap.String("id", src.ID))
			}
		}

		if !transport.IsTemplate(src.URL) {
			r.logger.Warn("Source url lacks {x}/{y}/{z} placeholders, skipping",
				zap.String("path", path), zap.String("url", src.URL))
			continue
		}
		if src.MaxZoom <= 0 || src.MaxZoom > tiling.MaxZoom {
			src.MaxZoom = tiling.MaxZoom
		}
		if src.Name == "" {
			src.Name = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}

		r.sources[src.ID] = src
	}

	r.logger.Info("Tile sources loaded", zap.Int("sources", len(r.sources)), zap.String("dir", r.dir))
	return nil
}

// List returns every source ordered by id.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Resolve looks up a source by id. A raw {x}/{y}/{z} template is accepted
// as an anonymous source.
func (r *Registry) Resolve(idOrTemplate string) (Source, error) {
	r.mu.RLock()
	s, ok := r.sources[idOrTemplate]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	if transport.IsTemplate(idOrTemplate) {
		return Source{ID: idOrTemplate, URL: idOrTemplate, MaxZoom: tiling.MaxZoom}, nil
	}
	return Source{}, fmt.Errorf("%w: %s", ErrUnknownSource, idOrTemplate)
}

func loadDefinition(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, err
	}

	var src Source
	if err := json.Unmarshal(data, &src); err != nil {
		return Source{}, fmt.Errorf("failed to parse source definition: %w", err)
	}
	return src, nil
}

func saveDefinition(path string, src Source) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal source definition: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write source definition: %w", err)
	}
	return nil
}
