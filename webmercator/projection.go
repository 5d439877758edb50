// Package webmercator maps longitude/latitude onto the normalised Web Mercator
// plane used by slippy-map tile servers, and models rectangular regions of
// that plane.
//
// The normalised plane runs from x=0 (180°W) to x=1 (180°E) and from y=0
// (about 85.05°N) to y=1 (about 85.05°S), so latitude and y are ordered in
// opposite directions. EPSG:3857 agrees with it up to an affine rescale and a
// reflection in y.
package webmercator

import (
	"fmt"
	"math"
)

const (
	// EPSGRescale is half the equatorial circumference in EPSG:3857 metres.
	EPSGRescale = 20037508.342789244

	// MaxLatitude is the latitude mapped to y=0; -MaxLatitude maps to y=1.
	MaxLatitude = 85.0511287798066
)

// ToWebMercator projects degrees onto the normalised plane.
// Latitude must lie strictly inside (-90, 90); see ClampLatitude.
func ToWebMercator(longitude, latitude float64) (x, y float64) {
	x = (longitude + 180.0) / 360.0
	latRad := latitude * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0
	return x, y
}

// FromWebMercator is the inverse of ToWebMercator.
func FromWebMercator(x, y float64) (longitude, latitude float64) {
	longitude = x*360 - 180
	latitude = math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
	return longitude, latitude
}

// ToEPSG3857 rescales a normalised point to EPSG:3857 metres.
func ToEPSG3857(x, y float64) (mx, my float64) {
	return (x - 0.5) * 2 * EPSGRescale, (0.5 - y) * 2 * EPSGRescale
}

// FromEPSG3857 is the inverse of ToEPSG3857.
func FromEPSG3857(mx, my float64) (x, y float64) {
	return 0.5 + (mx/EPSGRescale)*0.5, 0.5 - (my/EPSGRescale)*0.5
}

// LatitudeError reports a latitude that cannot be projected.
type LatitudeError struct {
	Latitude float64
}

func (e *LatitudeError) Error() string {
	return fmt.Sprintf("latitude %v outside [-90, 90]", e.Latitude)
}

func (e *LatitudeError) Is(target error) bool {
	return target == ErrLatitude
}

// ClampLatitude pulls a latitude into the representable band
// [-MaxLatitude, MaxLatitude]. Non-finite values and values beyond ±90°
// are rejected.
func ClampLatitude(latitude float64) (float64, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return 0, &LatitudeError{Latitude: latitude}
	}
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, latitude)), nil
}

// Projection tags the coordinate system an Extent reports its bounds in.
type Projection int

const (
	// Normal is the normalised [0,1]x[0,1] plane.
	Normal Projection = iota
	// EPSG3857 is the metre based spherical mercator plane.
	EPSG3857
)

func (p Projection) String() string {
	switch p {
	case Normal:
		return "normal"
	case EPSG3857:
		return "epsg:3857"
	default:
		return fmt.Sprintf("projection(%d)", int(p))
	}
}

// ParseProjection accepts "normal" and "epsg:3857" (or "3857").
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "normal", "":
		return Normal, nil
	case "epsg:3857", "EPSG:3857", "3857":
		return EPSG3857, nil
	default:
		return Normal, fmt.Errorf("unknown projection: %s (supported: normal, epsg:3857)", s)
	}
}

// Project expresses a normalised point in this projection.
func (p Projection) Project(x, y float64) (float64, float64) {
	if p == EPSG3857 {
		return ToEPSG3857(x, y)
	}
	return x, y
}

// Unproject maps a point of this projection back to the normalised plane.
func (p Projection) Unproject(x, y float64) (float64, float64) {
	if p == EPSG3857 {
		return FromEPSG3857(x, y)
	}
	return x, y
}
