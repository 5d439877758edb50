package webmercator

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange = errors.New("invalid extent range")
	ErrMissingSize  = errors.New("missing extent size")
	ErrLatitude     = errors.New("latitude out of range")
)

// InvalidRangeError is returned when bounds would break the Extent
// invariants. Bounds are on the normalised plane.
type InvalidRangeError struct {
	XMin, XMax, YMin, YMax float64
	Reason                 string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid extent (%v,%v)x(%v,%v): %s", e.XMin, e.XMax, e.YMin, e.YMax, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// MissingSizeError is returned by the centre constructors when neither a
// width nor a height is given.
type MissingSizeError struct {
	X, Y float64
}

func (e *MissingSizeError) Error() string {
	return fmt.Sprintf("extent centred on (%v,%v): at least one of width and height is required", e.X, e.Y)
}

func (e *MissingSizeError) Is(target error) bool {
	return target == ErrMissingSize
}
