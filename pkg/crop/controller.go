package crop

import "github.com/profilekit/avatar-cropper/pkg/geometry"

// Controller owns the live crop selection for one session and applies
// bounded mutations to it. Every mutation clamps immediately, so callers
// never observe an invalid circle between calls. Not safe for concurrent
// use: a session applies its input on a single goroutine.
type Controller struct {
	constraints geometry.Constraints
	circle      geometry.Circle
}

// NewController creates a Controller positioned at the initial crop circle
// for the given constraints.
func NewController(k geometry.Constraints) *Controller {
	return &Controller{constraints: k, circle: geometry.InitialCircle(k)}
}

// Circle returns the current crop selection.
func (c *Controller) Circle() geometry.Circle {
	return c.circle
}

// Radius returns the current crop radius.
func (c *Controller) Radius() float64 {
	return c.circle.Radius
}

// Constraints returns the bounds mutations are clamped to.
func (c *Controller) Constraints() geometry.Constraints {
	return c.constraints
}

// MoveCenterTo recenters the circle on p, clamped so it stays fully inside
// the displayed image no matter how large a jump is supplied in one call.
func (c *Controller) MoveCenterTo(p geometry.Point) {
	c.circle = c.circle.MovedTo(p, c.constraints)
}

// MoveCenterBy translates the circle by delta and clamps.
func (c *Controller) MoveCenterBy(delta geometry.Point) {
	c.circle = c.circle.MovedBy(delta, c.constraints)
}

// GrowRadiusBy changes the radius by delta, clamped to the legal range, and
// re-validates the center against the new radius.
func (c *Controller) GrowRadiusBy(delta float64) {
	c.circle = c.circle.Grown(delta, c.constraints)
}

// SetCircle replaces the selection with a clamped copy of circle. Placement
// suggestions land here.
func (c *Controller) SetCircle(circle geometry.Circle) {
	c.circle = circle.Clamped(c.constraints)
}

// Reset returns the selection to the initial circle.
func (c *Controller) Reset() {
	c.circle = geometry.InitialCircle(c.constraints)
}
