package gesture

import "github.com/profilekit/avatar-cropper/pkg/geometry"

// Kind discriminates raw input frames.
type Kind string

// Frame kinds. Begin and End bracket a touch gesture; Move carries pan,
// drag and pinch updates; Scroll carries wheel ticks.
const (
	Begin  Kind = "begin"
	Move   Kind = "move"
	Scroll Kind = "scroll"
	End    Kind = "end"
)

// Frame is one raw input sample from the host platform.
type Frame struct {
	Kind Kind `json:"kind"`
	// Delta is the positional displacement of this frame in display units.
	Delta geometry.Point `json:"delta"`
	// Scale is the pinch scale factor relative to the gesture start. Zero
	// means the frame carries no pinch information and is treated as 1.
	Scale float64 `json:"scale,omitempty"`
	// Scroll is the vertical scroll wheel delta. Forward (negative) scroll
	// zooms in.
	Scroll float64 `json:"scroll,omitempty"`
}

// Event is one logical crop adjustment. Both deltas may be set by the same
// frame: pinch and pan are not mutually exclusive.
type Event struct {
	CenterDelta geometry.Point `json:"centerDelta"`
	RadiusDelta float64        `json:"radiusDelta"`
}

// Target is the crop state a router drives. *crop.Controller satisfies it.
type Target interface {
	MoveCenterBy(delta geometry.Point)
	GrowRadiusBy(delta float64)
	Radius() float64
}

// Source adapts one input device family to logical crop events. Exactly one
// Source drives a session, chosen by the host environment when the session
// starts; the controller consumes the events identically either way.
type Source interface {
	// Translate converts a raw frame into a logical event. The second
	// return is false when the frame produces no adjustment.
	Translate(f Frame) (Event, bool)
}

// TouchSource interprets combined pan+pinch gesture streams. A pinch maps
// the cumulative scale factor against the radius captured at gesture start,
// so repeated frames of one gesture do not compound.
type TouchSource struct {
	target      Target
	startRadius float64
	active      bool
}

// NewTouchSource creates a touch adapter reading the current radius from
// target.
func NewTouchSource(target Target) *TouchSource {
	return &TouchSource{target: target}
}

// Translate implements Source. A Move frame arriving before any Begin
// adopts the current radius as the gesture-start radius.
func (s *TouchSource) Translate(f Frame) (Event, bool) {
	switch f.Kind {
	case Begin:
		s.startRadius = s.target.Radius()
		s.active = true
		return Event{}, false
	case Move:
		if !s.active {
			s.startRadius = s.target.Radius()
			s.active = true
		}
		ev := Event{CenterDelta: f.Delta}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		if scale != 1 {
			ev.RadiusDelta = scale*s.startRadius - s.target.Radius()
		}
		return ev, true
	case End:
		s.active = false
	}
	return Event{}, false
}

// PointerSource interprets mouse drags and scroll wheel input. Drags map
// 1:1 to center deltas; a wheel tick maps to a radius delta of
// -Scroll*ScrollFactor, so scrolling forward zooms in.
type PointerSource struct {
	// ScrollFactor converts scroll wheel units into radius units.
	ScrollFactor float64
}

// DefaultScrollFactor is the wheel-to-radius conversion used when none is
// configured.
const DefaultScrollFactor = 0.5

// NewPointerSource creates a pointer adapter with the default scroll factor.
func NewPointerSource() *PointerSource {
	return &PointerSource{ScrollFactor: DefaultScrollFactor}
}

// Translate implements Source.
func (s *PointerSource) Translate(f Frame) (Event, bool) {
	switch f.Kind {
	case Move:
		return Event{CenterDelta: f.Delta}, true
	case Scroll:
		return Event{RadiusDelta: -f.Scroll * s.ScrollFactor}, true
	}
	return Event{}, false
}

// Router funnels one input source's events into the crop state. No frame
// can fail: out-of-range input clamps downstream instead of erroring, and
// releasing a gesture simply stops producing frames.
type Router struct {
	source Source
	target Target
}

// NewRouter wires a source to its target.
func NewRouter(source Source, target Target) *Router {
	return &Router{source: source, target: target}
}

// Handle translates one raw frame and applies the resulting event.
func (r *Router) Handle(f Frame) {
	ev, ok := r.source.Translate(f)
	if !ok {
		return
	}
	r.Apply(ev)
}

// Apply feeds one logical event to the target. The radius change applies
// first so a combined pinch+pan frame pans the already-resized circle.
func (r *Router) Apply(ev Event) {
	if ev.RadiusDelta != 0 {
		r.target.GrowRadiusBy(ev.RadiusDelta)
	}
	if ev.CenterDelta.X != 0 || ev.CenterDelta.Y != 0 {
		r.target.MoveCenterBy(ev.CenterDelta)
	}
}
