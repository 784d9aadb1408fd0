// Package avatarcropper provides interactive circular avatar cropping.
//
// This package models the full avatar selection flow: a source image is
// letterboxed into a fixed display viewport, a movable and resizable crop
// circle is adjusted through touch or pointer gestures, and confirming the
// selection produces a square avatar normalized to a canonical size with
// transparent corners.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		avatarcropper "github.com/profilekit/avatar-cropper"
//		"github.com/profilekit/avatar-cropper/pkg/geometry"
//		"github.com/profilekit/avatar-cropper/pkg/gesture"
//	)
//
//	func main() {
//		data, err := os.ReadFile("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Start a session; the crop circle opens centered.
//		session, err := avatarcropper.NewSession(data, avatarcropper.DefaultOptions())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Adjust the circle: drag right and down, then zoom in two ticks.
//		session.HandleFrame(gesture.Frame{Kind: gesture.Move, Delta: geometry.Point{X: 24, Y: 10}})
//		session.HandleFrame(gesture.Frame{Kind: gesture.Scroll, Scroll: -2})
//
//		// Confirm and write the normalized avatar.
//		avatar, err := session.Confirm(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := os.WriteFile("avatar.png", avatar, 0644); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
// 1. Geometry (pkg/geometry): viewport fitting, crop circle math and clamping
// 2. Crop (pkg/crop): the stateful controller sessions mutate
// 3. Gesture (pkg/gesture): touch and pointer input translation
// 4. Cropper (pkg/cropper): rasterization, normalization and encoding
// 5. Image IO (pkg/imageio): decoding, validation and saving
// 6. Saliency (pkg/saliency): local subject detection for placement hints
// 7. Placement (pkg/placement): vision-model-backed placement suggestions
//
// Every mutation clamps immediately, so the crop circle is always fully
// inside the displayed image and no input sequence can produce an invalid
// selection. Output is deterministic for a given source, circle and
// configuration.
package avatarcropper

import (
	"context"
	"fmt"
	"image"

	"github.com/profilekit/avatar-cropper/pkg/crop"
	"github.com/profilekit/avatar-cropper/pkg/cropper"
	"github.com/profilekit/avatar-cropper/pkg/geometry"
	"github.com/profilekit/avatar-cropper/pkg/gesture"
	"github.com/profilekit/avatar-cropper/pkg/imageio"
	"github.com/profilekit/avatar-cropper/pkg/placement"
	"github.com/profilekit/avatar-cropper/pkg/saliency"
	"github.com/profilekit/avatar-cropper/pkg/types"
)

// Version of the avatar cropper library
const Version = "1.0.0"

// InputKind selects which device family a session translates input for.
type InputKind string

// Supported input kinds. A session is created for exactly one of them; the
// crop controller consumes the resulting events identically either way.
const (
	InputPointer InputKind = "pointer"
	InputTouch   InputKind = "touch"
)

// Options configures a cropping session.
type Options struct {
	// Viewport is the square the display area must fit inside.
	Viewport float64
	// MinRadius is the smallest the crop circle may shrink to.
	MinRadius float64
	// Input selects the gesture translation for this session.
	Input InputKind
	// ScrollFactor converts scroll wheel units into radius units. Only the
	// pointer input kind reads it.
	ScrollFactor float64
	// Cropper sets the output side, format and quality.
	Cropper cropper.Config
	// Loader sets source decoding constraints. The zero value uses the
	// loader defaults.
	Loader imageio.Config
	// PaddingRatio widens suggested circles beyond the detected subject box.
	PaddingRatio float64
	// Placer, when set, enables model-backed placement suggestions.
	Placer *placement.Placer
	// PlacerModel names the vision model the placer should query.
	PlacerModel string
}

// DefaultOptions returns the standard session configuration: a 400 unit
// viewport, pointer input and PNG output at the canonical side.
func DefaultOptions() Options {
	return Options{
		Viewport:     geometry.DefaultViewport,
		MinRadius:    geometry.DefaultMinRadius,
		Input:        InputPointer,
		ScrollFactor: gesture.DefaultScrollFactor,
		Cropper:      cropper.DefaultConfig(),
		PaddingRatio: 0.15,
	}
}

// Session is one interactive cropping flow over a single source image. It is
// not safe for concurrent use; callers serialize access the way they
// serialize the input stream itself.
type Session struct {
	opts       Options
	src        image.Image
	geometry   geometry.DisplayGeometry
	controller *crop.Controller
	router     *gesture.Router
	cropper    *cropper.CircleCropper
	loader     *imageio.Loader
	detector   *saliency.Detector
}

// NewSession decodes source bytes and starts a session over them. The bytes
// are sniffed, decoded and validated before any geometry is computed.
func NewSession(data []byte, opts Options) (*Session, error) {
	applyDefaults(&opts)

	loader := loaderFor(opts)
	img, err := loader.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}

	return newSession(img, loader, opts)
}

// NewSessionFromImage starts a session over an already decoded image.
func NewSessionFromImage(img image.Image, opts Options) (*Session, error) {
	applyDefaults(&opts)
	return newSession(img, loaderFor(opts), opts)
}

func newSession(img image.Image, loader *imageio.Loader, opts Options) (*Session, error) {
	if err := loader.Validate(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	g := geometry.FitViewport(b.Dx(), b.Dy(), opts.Viewport)
	k := geometry.Constraints{Geometry: g, MinRadius: opts.MinRadius}
	controller := crop.NewController(k)

	var source gesture.Source
	switch opts.Input {
	case InputTouch:
		source = gesture.NewTouchSource(controller)
	default:
		source = &gesture.PointerSource{ScrollFactor: opts.ScrollFactor}
	}

	return &Session{
		opts:       opts,
		src:        img,
		geometry:   g,
		controller: controller,
		router:     gesture.NewRouter(source, controller),
		cropper:    cropper.NewWithConfig(opts.Cropper),
		loader:     loader,
		detector:   saliency.New(),
	}, nil
}

func applyDefaults(opts *Options) {
	if opts.Viewport <= 0 {
		opts.Viewport = geometry.DefaultViewport
	}
	if opts.MinRadius <= 0 {
		opts.MinRadius = geometry.DefaultMinRadius
	}
	if opts.Input == "" {
		opts.Input = InputPointer
	}
	if opts.ScrollFactor <= 0 {
		opts.ScrollFactor = gesture.DefaultScrollFactor
	}
	if opts.PaddingRatio <= 0 {
		opts.PaddingRatio = 0.15
	}
}

func loaderFor(opts Options) *imageio.Loader {
	if opts.Loader == (imageio.Config{}) {
		return imageio.New()
	}
	return imageio.NewWithConfig(opts.Loader)
}

// Geometry returns the letterboxed display mapping for the source image.
func (s *Session) Geometry() geometry.DisplayGeometry {
	return s.geometry
}

// Circle returns the current crop selection in display coordinates.
func (s *Session) Circle() geometry.Circle {
	return s.controller.Circle()
}

// Constraints returns the clamp bounds the session operates under.
func (s *Session) Constraints() geometry.Constraints {
	return s.controller.Constraints()
}

// Source returns the decoded source image.
func (s *Session) Source() image.Image {
	return s.src
}

// Format returns the output encoding confirmed avatars use.
func (s *Session) Format() cropper.Format {
	return s.cropper.Format()
}

// HandleFrame applies one raw input frame and returns the updated circle.
// Frames never fail: out-of-range input clamps, idle frames change nothing.
func (s *Session) HandleFrame(f gesture.Frame) geometry.Circle {
	s.router.Handle(f)
	return s.controller.Circle()
}

// MoveCenterTo recenters the crop circle, clamped to the display area.
func (s *Session) MoveCenterTo(p geometry.Point) {
	s.controller.MoveCenterTo(p)
}

// MoveCenterBy translates the crop circle, clamped to the display area.
func (s *Session) MoveCenterBy(delta geometry.Point) {
	s.controller.MoveCenterBy(delta)
}

// GrowRadiusBy resizes the crop circle, clamped to the legal radius range.
func (s *Session) GrowRadiusBy(delta float64) {
	s.controller.GrowRadiusBy(delta)
}

// SetCircle replaces the selection with a clamped copy of circle.
func (s *Session) SetCircle(circle geometry.Circle) {
	s.controller.SetCircle(circle)
}

// Reset returns the selection to the initial centered circle.
func (s *Session) Reset() {
	s.controller.Reset()
}

// SuggestLocal centers the crop circle on the most salient image region.
// The suggestion is applied to the session and returned; Reset discards it.
func (s *Session) SuggestLocal() (geometry.Circle, error) {
	box, err := s.detector.FindSubjectBox(s.src)
	if err != nil {
		return geometry.Circle{}, fmt.Errorf("saliency analysis failed: %w", err)
	}

	circle := placement.CircleFromBox(box, s.opts.PaddingRatio, s.controller.Constraints())
	s.controller.SetCircle(circle)
	return s.controller.Circle(), nil
}

// SuggestModel asks the configured vision model where to place the crop
// circle. The suggestion is applied to the session and returned alongside
// the model's full answer.
func (s *Session) SuggestModel(ctx context.Context) (geometry.Circle, *types.Placement, error) {
	if s.opts.Placer == nil {
		return geometry.Circle{}, nil, fmt.Errorf("no placement backend configured")
	}

	imageB64, err := s.loader.PrepareForModel(s.src, "jpg", 1024, 85)
	if err != nil {
		return geometry.Circle{}, nil, fmt.Errorf("failed to prepare image for model: %w", err)
	}

	circle, result, err := s.opts.Placer.SuggestCircle(ctx, s.opts.PlacerModel, imageB64, s.controller.Constraints())
	if err != nil {
		return geometry.Circle{}, nil, err
	}

	s.controller.SetCircle(circle)
	return s.controller.Circle(), result, nil
}

// Render produces the cropped avatar for the current selection without
// ending the session.
func (s *Session) Render(ctx context.Context) (cropper.Result, error) {
	if err := ctx.Err(); err != nil {
		return cropper.Result{}, err
	}
	return s.cropper.Crop(s.src, s.geometry, s.controller.Circle())
}

// Confirm renders the current selection and returns the encoded avatar.
// The session stays usable if rendering fails, so a caller can adjust the
// circle and confirm again.
func (s *Session) Confirm(ctx context.Context) ([]byte, error) {
	result, err := s.Render(ctx)
	if err != nil {
		return nil, err
	}
	return result.Encoded, nil
}

// Preview draws the current selection onto a copy of the source image.
func (s *Session) Preview() *image.NRGBA {
	return s.cropper.Preview(s.src, s.geometry, s.controller.Circle())
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
