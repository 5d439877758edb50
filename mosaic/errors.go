package mosaic

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// ErrTileFetch matches every *TileFetchError.
var ErrTileFetch = errors.New("tile fetch failed")

// ErrEmptyTile is the cause of a TileFetchError for a fetcher that returned
// neither an image nor an error.
var ErrEmptyTile = errors.New("fetcher returned no image")

// TileFetchError aborts an assembly. It names the first tile that could not
// be resolved and wraps the transport failure.
type TileFetchError struct {
	Source string
	Tile   maptile.Tile
	Err    error
}

func (e *TileFetchError) Error() string {
	return fmt.Sprintf("fetch tile z=%d x=%d y=%d from %q: %v", e.Tile.Z, e.Tile.X, e.Tile.Y, e.Source, e.Err)
}

func (e *TileFetchError) Unwrap() error {
	return e.Err
}

func (e *TileFetchError) Is(target error) bool {
	return target == ErrTileFetch
}
