package webmercator

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Extent is an immutable rectangle of the normalised plane, reported in the
// coordinate system of its Projection tag.
//
// Internally 0 <= ymin < ymax <= 1 and xmin < xmax always hold. The x range
// may leave [0,1]: the plane is a cylinder on which x and x+1 are the same
// meridian.
type Extent struct {
	xmin, xmax float64
	ymin, ymax float64
	proj       Projection
}

// Size describes the extent built by the centre constructors. A zero Width
// or Height is treated as absent and derived from the other through Aspect
// (width / height, 1 when zero).
type Size struct {
	Width  float64
	Height float64
	Aspect float64
}

// New builds an Extent from normalised bounds.
func New(xmin, xmax, ymin, ymax float64, proj Projection) (Extent, error) {
	switch {
	case isInf(xmin) || isInf(xmax):
		return Extent{}, &InvalidRangeError{xmin, xmax, ymin, ymax, "x bounds must be finite"}
	case !(xmin < xmax):
		return Extent{}, &InvalidRangeError{xmin, xmax, ymin, ymax, "xmin must be less than xmax"}
	case !(ymin < ymax):
		return Extent{}, &InvalidRangeError{xmin, xmax, ymin, ymax, "ymin must be less than ymax"}
	case ymin < 0 || ymax > 1:
		return Extent{}, &InvalidRangeError{xmin, xmax, ymin, ymax, "y range must lie within [0, 1]"}
	case proj != Normal && proj != EPSG3857:
		return Extent{}, &InvalidRangeError{xmin, xmax, ymin, ymax, fmt.Sprintf("unknown %s", proj)}
	}
	return Extent{xmin: xmin, xmax: xmax, ymin: ymin, ymax: ymax, proj: proj}, nil
}

// FromCenter builds a normalised Extent centred on (x, y). The bounds are
// clamped to [0,1] in both directions.
func FromCenter(x, y float64, size Size) (Extent, error) {
	xmin, xmax, ymin, ymax, err := centerBounds(x, y, size)
	if err != nil {
		return Extent{}, err
	}
	return New(math.Max(0, xmin), math.Min(1, xmax), math.Max(0, ymin), math.Min(1, ymax), Normal)
}

// FromCenterLonLat is FromCenter with the centre given in degrees. Sizes
// stay in normalised units.
func FromCenterLonLat(longitude, latitude float64, size Size) (Extent, error) {
	latitude, err := ClampLatitude(latitude)
	if err != nil {
		return Extent{}, err
	}
	x, y := ToWebMercator(longitude, latitude)
	return FromCenter(x, y, size)
}

// FromCenterEPSG3857 takes the centre and the sizes in EPSG:3857 metres and
// returns an Extent tagged EPSG3857.
func FromCenterEPSG3857(mx, my float64, size Size) (Extent, error) {
	x, y := FromEPSG3857(mx, my)
	size.Width /= 2 * EPSGRescale
	size.Height /= 2 * EPSGRescale
	e, err := FromCenter(x, y, size)
	if err != nil {
		return Extent{}, err
	}
	return e.ReprojectTo(EPSG3857), nil
}

// FromLonLatBox builds a normalised Extent from a longitude/latitude box.
// Latitudes are clamped to ±MaxLatitude. The northern edge becomes ymin.
func FromLonLatBox(minLon, maxLon, minLat, maxLat float64) (Extent, error) {
	minLat, err := ClampLatitude(minLat)
	if err != nil {
		return Extent{}, err
	}
	maxLat, err = ClampLatitude(maxLat)
	if err != nil {
		return Extent{}, err
	}
	xmin, ymin := ToWebMercator(minLon, maxLat)
	xmax, ymax := ToWebMercator(maxLon, minLat)
	// rounding at ±MaxLatitude can land a hair outside [0,1]
	return New(xmin, xmax, math.Max(0, ymin), math.Min(1, ymax), Normal)
}

// FromLonLatBound is FromLonLatBox for an orb.Bound.
func FromLonLatBound(b orb.Bound) (Extent, error) {
	return FromLonLatBox(b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat())
}

// FromEPSG3857Bounds builds an Extent tagged EPSG3857 from metre bounds.
func FromEPSG3857Bounds(xmin, xmax, ymin, ymax float64) (Extent, error) {
	x0, y1 := FromEPSG3857(xmin, ymin)
	x1, y0 := FromEPSG3857(xmax, ymax)
	return New(x0, x1, y0, y1, EPSG3857)
}

func centerBounds(x, y float64, size Size) (xmin, xmax, ymin, ymax float64, err error) {
	w, h := size.Width, size.Height
	aspect := size.Aspect
	if aspect == 0 {
		aspect = 1
	}
	if w == 0 && h == 0 {
		return 0, 0, 0, 0, &MissingSizeError{X: x, Y: y}
	}
	if w == 0 {
		w = h * aspect
	}
	if h == 0 {
		h = w / aspect
	}
	return x - w/2, x + w/2, y - h/2, y + h/2, nil
}

// Projection returns the tag the accessors report in.
func (e Extent) Projection() Projection { return e.proj }

// NormalBounds returns the internal bounds on the normalised plane.
func (e Extent) NormalBounds() (xmin, xmax, ymin, ymax float64) {
	return e.xmin, e.xmax, e.ymin, e.ymax
}

func (e Extent) XMin() float64 {
	x, _ := e.proj.Project(e.xmin, e.ymin)
	return x
}

func (e Extent) XMax() float64 {
	x, _ := e.proj.Project(e.xmax, e.ymax)
	return x
}

// YMin is the projected value of the internal ymin. Under EPSG3857 the
// reflection makes it the larger northing.
func (e Extent) YMin() float64 {
	_, y := e.proj.Project(e.xmin, e.ymin)
	return y
}

func (e Extent) YMax() float64 {
	_, y := e.proj.Project(e.xmax, e.ymax)
	return y
}

func (e Extent) Width() float64 { return e.XMax() - e.XMin() }

// Height may be negative under EPSG3857.
func (e Extent) Height() float64 { return e.YMax() - e.YMin() }

// XRange returns (xmin, xmax).
func (e Extent) XRange() (float64, float64) { return e.XMin(), e.XMax() }

// YRange returns (ymax, ymin), the order image axes expect.
func (e Extent) YRange() (float64, float64) { return e.YMax(), e.YMin() }

// Center returns the midpoint in the current projection.
func (e Extent) Center() (x, y float64) {
	return (e.XMin() + e.XMax()) / 2, (e.YMin() + e.YMax()) / 2
}

// ReprojectTo returns a copy reporting in proj. The internal bounds are
// unchanged.
func (e Extent) ReprojectTo(proj Projection) Extent {
	e.proj = proj
	return e
}

func (e Extent) Normal() Extent   { return e.ReprojectTo(Normal) }
func (e Extent) EPSG3857() Extent { return e.ReprojectTo(EPSG3857) }

// Recenter moves the midpoint to (x, y), given in the current projection,
// keeping the size. The y range is shifted back inside [0,1] if needed.
func (e Extent) Recenter(x, y float64) Extent {
	nx, ny := e.proj.Unproject(x, y)
	oldx := (e.xmin + e.xmax) / 2
	oldy := (e.ymin + e.ymax) / 2
	return e.shifted(nx-oldx, ny-oldy)
}

// RecenterLonLat is Recenter with the centre given in degrees.
func (e Extent) RecenterLonLat(longitude, latitude float64) (Extent, error) {
	latitude, err := ClampLatitude(latitude)
	if err != nil {
		return Extent{}, err
	}
	x, y := ToWebMercator(longitude, latitude)
	return e.Normal().Recenter(x, y).ReprojectTo(e.proj), nil
}

// TranslateAbsolute shifts by (dx, dy) on the normalised plane, clipping y
// back into [0,1] by shifting.
func (e Extent) TranslateAbsolute(dx, dy float64) Extent {
	return e.shifted(dx, dy)
}

// TranslateRelative shifts by multiples of the current size: dx=1 moves one
// whole width to the right.
func (e Extent) TranslateRelative(dx, dy float64) Extent {
	return e.shifted(dx*(e.xmax-e.xmin), dy*(e.ymax-e.ymin))
}

func (e Extent) shifted(dx, dy float64) Extent {
	ymin, ymax := e.ymin+dy, e.ymax+dy
	if ymin < 0 {
		ymax -= ymin
		ymin = 0
	}
	if ymax > 1 {
		ymin -= ymax - 1
		ymax = 1
	}
	e.xmin += dx
	e.xmax += dx
	e.ymin, e.ymax = math.Max(0, ymin), ymax
	return e
}

// Rescale divides width and height by factor around the midpoint, so
// factor > 1 zooms in. No clipping is applied: a result leaving [0,1] in y
// is reported as an InvalidRangeError.
func (e Extent) Rescale(factor float64) (Extent, error) {
	if !(factor > 0) || isInf(factor) {
		return Extent{}, &InvalidRangeError{e.xmin, e.xmax, e.ymin, e.ymax, fmt.Sprintf("scale factor %v must be positive and finite", factor)}
	}
	midx := (e.xmin + e.xmax) / 2
	midy := (e.ymin + e.ymax) / 2
	xs := (e.xmax - e.xmin) / factor / 2
	ys := (e.ymax - e.ymin) / factor / 2
	return New(midx-xs, midx+xs, midy-ys, midy+ys, e.proj)
}

// ToAspectRatio shrinks the larger dimension so that width/height equals
// ratio on the normalised plane. The centre is kept; the rectangle never
// grows.
func (e Extent) ToAspectRatio(ratio float64) (Extent, error) {
	if !(ratio > 0) || isInf(ratio) {
		return Extent{}, &InvalidRangeError{e.xmin, e.xmax, e.ymin, e.ymax, fmt.Sprintf("aspect ratio %v must be positive and finite", ratio)}
	}
	width := e.xmax - e.xmin
	height := e.ymax - e.ymin
	w, h := height*ratio, height
	if w > width {
		w, h = width, width/ratio
	}
	midx := (e.xmin + e.xmax) / 2
	midy := (e.ymin + e.ymax) / 2
	return New(midx-w/2, midx+w/2, midy-h/2, midy+h/2, e.proj)
}

// GeographicBounds inverse projects the corners into a longitude/latitude
// bound.
func (e Extent) GeographicBounds() orb.Bound {
	minLon, maxLat := FromWebMercator(e.xmin, e.ymin)
	maxLon, minLat := FromWebMercator(e.xmax, e.ymax)
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

// LonLatBox returns GeographicBounds as (minLon, maxLon, minLat, maxLat).
func (e Extent) LonLatBox() (minLon, maxLon, minLat, maxLat float64) {
	b := e.GeographicBounds()
	return b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat()
}

// Covers reports whether other lies inside e on the normalised plane,
// allowing other to be offset by whole turns of the cylinder.
func (e Extent) Covers(other Extent) bool {
	const eps = 1e-12
	if other.ymin < e.ymin-eps || other.ymax > e.ymax+eps {
		return false
	}
	turns := math.Floor(other.xmin - e.xmin + eps)
	return other.xmax-turns <= e.xmax+eps
}

// Equal compares internal bounds and projection exactly.
func (e Extent) Equal(other Extent) bool {
	return e == other
}

func (e Extent) String() string {
	return fmt.Sprintf("Extent((%v,%v)->(%v,%v) projected as %s)", e.XMin(), e.YMin(), e.XMax(), e.YMax(), e.proj)
}

func isInf(f float64) bool {
	return math.IsInf(f, 0)
}
