package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/maptile"
)

// DiskStore keeps raw tile bytes on disk so repeated runs do not hit the
// tile server again.
// Structure: {dir}/{sha256(source)[:16]}/{z}/{x}_{y}.tile
type DiskStore struct {
	mu  sync.RWMutex
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tile cache directory: %w", err)
	}

	return &DiskStore{dir: dir}, nil
}

// Dir is the root directory of the store.
func (c *DiskStore) Dir() string {
	return c.dir
}

func (c *DiskStore) buildFilePath(source string, t maptile.Tile) string {
	sum := sha256.Sum256([]byte(source))
	dir := filepath.Join(c.dir, hex.EncodeToString(sum[:8]), fmt.Sprintf("%d", t.Z))
	return filepath.Join(dir, fmt.Sprintf("%d_%d.tile", t.X, t.Y))
}

func (c *DiskStore) Get(source string, t maptile.Tile) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.buildFilePath(source, t))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *DiskStore) Set(source string, t maptile.Tile, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	filePath := c.buildFilePath(source, t)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}

	// Write atomically
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (c *DiskStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0755)
}
