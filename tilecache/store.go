package tilecache

import (
	"fmt"
	"image"

	"github.com/paulmach/orb/maptile"
)

// Key identifies a tile of one tile source. Source is opaque: distinct
// strings are distinct sources.
type Key struct {
	Source string
	Tile   maptile.Tile
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d/%d/%d", k.Source, k.Tile.Z, k.Tile.X, k.Tile.Y)
}

// Entry is a cached tile, or the failure recorded when fetching it.
type Entry struct {
	Image image.Image
	Err   error
}

// Failed reports whether the entry records a fetch failure.
func (e Entry) Failed() bool {
	return e.Err != nil
}

// Store holds entries for a Session.
type Store interface {
	Get(key Key) (Entry, bool)
	Set(key Key, entry Entry)
	Has(key Key) bool
	Len() int
	Clear()
}
