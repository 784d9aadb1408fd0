package geometry

import "math"

// DefaultViewport is the side length of the square crop viewport in
// display units.
const DefaultViewport = 400.0

// DefaultMinRadius is the smallest crop radius a session allows, in
// display units.
const DefaultMinRadius = 50.0

// Point is a position or displacement in display space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the point translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Circle is a crop selection in display space.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// DisplayGeometry describes how a source image is letterboxed into a fixed
// square viewport. It is derived once per session and never changes.
type DisplayGeometry struct {
	SourceWidth   int     `json:"sourceWidth"`
	SourceHeight  int     `json:"sourceHeight"`
	DisplayWidth  float64 `json:"displayWidth"`
	DisplayHeight float64 `json:"displayHeight"`
	Viewport      float64 `json:"viewport"`
}

// FitViewport letterboxes a source image into a square viewport with side
// length viewport. The longer source side spans the viewport exactly and the
// shorter side shrinks in proportion, so the aspect ratio is preserved.
// Source dimensions must be positive; decoding rejects degenerate images
// before geometry is derived.
func FitViewport(sourceWidth, sourceHeight int, viewport float64) DisplayGeometry {
	g := DisplayGeometry{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		Viewport:     viewport,
	}

	ar := float64(sourceWidth) / float64(sourceHeight)
	if ar > 1 {
		g.DisplayWidth = viewport
		g.DisplayHeight = viewport / ar
	} else {
		g.DisplayHeight = viewport
		g.DisplayWidth = viewport * ar
	}

	return g
}

// Scale returns the display-to-source scale factor. The letterbox fit is
// uniform, so the two axis ratios agree up to float rounding; averaging them
// absorbs the difference.
func (g DisplayGeometry) Scale() float64 {
	sx := float64(g.SourceWidth) / g.DisplayWidth
	sy := float64(g.SourceHeight) / g.DisplayHeight
	return (sx + sy) / 2
}

// MinSide returns the shorter displayed side.
func (g DisplayGeometry) MinSide() float64 {
	return math.Min(g.DisplayWidth, g.DisplayHeight)
}

// Constraints bound crop-circle mutations to the displayed image.
type Constraints struct {
	Geometry  DisplayGeometry
	MinRadius float64
}

// NewConstraints returns Constraints for g with the default minimum radius.
func NewConstraints(g DisplayGeometry) Constraints {
	return Constraints{Geometry: g, MinRadius: DefaultMinRadius}
}

// MaxRadius returns the largest radius whose circle still fits inside the
// displayed image.
func (k Constraints) MaxRadius() float64 {
	return k.Geometry.MinSide() / 2
}

// InitialCircle returns the starting crop selection: centered on the
// displayed image, with a radius of 30% of the display width bounded to the
// legal range.
func InitialCircle(k Constraints) Circle {
	g := k.Geometry
	c := Circle{
		Center: Point{X: g.DisplayWidth / 2, Y: g.DisplayHeight / 2},
		Radius: clamp(0.3*g.DisplayWidth, k.MinRadius, g.DisplayWidth/2),
	}
	return c.Clamped(k)
}

// MovedTo returns the circle recentered on p, clamped so it stays fully
// inside the displayed image. A single clamp handles arbitrarily large
// jumps; deltas are never accumulated unclamped.
func (c Circle) MovedTo(p Point, k Constraints) Circle {
	c.Center = clampCenter(p, c.Radius, k.Geometry)
	return c
}

// MovedBy returns the circle translated by d and clamped.
func (c Circle) MovedBy(d Point, k Constraints) Circle {
	return c.MovedTo(c.Center.Add(d), k)
}

// Grown returns the circle with its radius changed by delta and clamped to
// [MinRadius, MaxRadius]. The center is re-validated against the new radius
// so the containment invariant holds after every call, not only after moves.
func (c Circle) Grown(delta float64, k Constraints) Circle {
	c.Radius = clampRadius(c.Radius+delta, k)
	c.Center = clampCenter(c.Center, c.Radius, k.Geometry)
	return c
}

// Clamped returns the circle forced into the legal range: radius first, then
// center against the clamped radius.
func (c Circle) Clamped(k Constraints) Circle {
	c.Radius = clampRadius(c.Radius, k)
	c.Center = clampCenter(c.Center, c.Radius, k.Geometry)
	return c
}

// clampRadius bounds r to [MinRadius, MaxRadius]. When the displayed image
// is too small for both bounds the minimum wins; the rasterizer's edge clamp
// absorbs the overhang.
func clampRadius(r float64, k Constraints) float64 {
	if max := k.MaxRadius(); r > max {
		r = max
	}
	if r < k.MinRadius {
		r = k.MinRadius
	}
	return r
}

func clampCenter(p Point, radius float64, g DisplayGeometry) Point {
	return Point{
		X: clampAxis(p.X, radius, g.DisplayWidth),
		Y: clampAxis(p.Y, radius, g.DisplayHeight),
	}
}

// clampAxis keeps v in [radius, size-radius]. When the circle overhangs the
// displayed image on this axis the interval is empty and the center pins to
// the midpoint.
func clampAxis(v, radius, size float64) float64 {
	if radius > size-radius {
		return size / 2
	}
	return clamp(v, radius, size-radius)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
