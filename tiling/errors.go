package tiling

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyTiles    = errors.New("too many tiles")
	ErrInvalidViewport = errors.New("invalid viewport")
	ErrInvalidZoom     = errors.New("invalid zoom level")
)

// TooManyTilesError guards against zoom/extent combinations that would
// need an unreasonable number of fetches. Callers should lower the zoom or
// shrink the extent and try again.
type TooManyTilesError struct {
	Zoom  int
	Range Range
	Count int
	Limit int
}

func (e *TooManyTilesError) Error() string {
	return fmt.Sprintf("too many tiles at zoom %d: x %d..%d, y %d..%d is %d tiles, limit %d",
		e.Zoom, e.Range.MinX, e.Range.MaxX, e.Range.MinY, e.Range.MaxY, e.Count, e.Limit)
}

func (e *TooManyTilesError) Is(target error) bool {
	return target == ErrTooManyTiles
}

// InvalidViewportError reports a viewport without area.
type InvalidViewportError struct {
	Width, Height int
}

func (e *InvalidViewportError) Error() string {
	return fmt.Sprintf("viewport %dx%d must have positive width and height", e.Width, e.Height)
}

func (e *InvalidViewportError) Is(target error) bool {
	return target == ErrInvalidViewport
}

// InvalidZoomError reports a zoom outside [MinZoom, MaxZoom].
type InvalidZoomError struct {
	Zoom int
}

func (e *InvalidZoomError) Error() string {
	return fmt.Sprintf("zoom level %d outside [%d, %d]", e.Zoom, MinZoom, MaxZoom)
}

func (e *InvalidZoomError) Is(target error) bool {
	return target == ErrInvalidZoom
}
