package avatarcropper

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/profilekit/avatar-cropper/pkg/cropper"
	"github.com/profilekit/avatar-cropper/pkg/geometry"
	"github.com/profilekit/avatar-cropper/pkg/gesture"
	"github.com/profilekit/avatar-cropper/pkg/imageio"
	"github.com/profilekit/avatar-cropper/pkg/placement"
	"github.com/profilekit/avatar-cropper/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				// Central bright region (subject)
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				// Background
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func encodeTestPNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestNewSession(t *testing.T) {
	data := encodeTestPNG(t, createTestImage(400, 300))

	session, err := NewSession(data, DefaultOptions())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	g := session.Geometry()
	if g.SourceWidth != 400 || g.SourceHeight != 300 {
		t.Errorf("Expected source 400x300, got %dx%d", g.SourceWidth, g.SourceHeight)
	}
	if g.DisplayWidth != 400 || g.DisplayHeight != 300 {
		t.Errorf("Expected display 400x300, got %fx%f", g.DisplayWidth, g.DisplayHeight)
	}

	circle := session.Circle()
	if circle.Center.X != 200 || circle.Center.Y != 150 {
		t.Errorf("Expected initial center (200,150), got (%f,%f)", circle.Center.X, circle.Center.Y)
	}
	if circle.Radius != 120 {
		t.Errorf("Expected initial radius 120, got %f", circle.Radius)
	}
}

func TestNewSessionRejectsGarbage(t *testing.T) {
	if _, err := NewSession([]byte("definitely not an image payload"), DefaultOptions()); err == nil {
		t.Error("Expected error for non-image data")
	}
}

func TestNewSessionRejectsTinyImage(t *testing.T) {
	data := encodeTestPNG(t, createTestImage(50, 50))

	if _, err := NewSession(data, DefaultOptions()); err == nil {
		t.Error("Expected error for image below the minimum dimension")
	}
}

func TestNewSessionRespectsLoaderConfig(t *testing.T) {
	data := encodeTestPNG(t, createTestImage(400, 300))

	opts := DefaultOptions()
	opts.Loader = imageio.Config{MinDimension: 500, MaxBytes: 10 << 20}

	if _, err := NewSession(data, opts); err == nil {
		t.Error("Expected error for image below the configured minimum")
	}
}

func TestNewSessionFromImage(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(800, 400), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	g := session.Geometry()
	if g.DisplayWidth != 400 || g.DisplayHeight != 200 {
		t.Errorf("Expected display 400x200, got %fx%f", g.DisplayWidth, g.DisplayHeight)
	}

	// Initial radius clamps to the display height.
	if session.Circle().Radius != 100 {
		t.Errorf("Expected initial radius 100, got %f", session.Circle().Radius)
	}
}

func TestHandleFramePointer(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(400, 400), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	circle := session.HandleFrame(gesture.Frame{Kind: gesture.Move, Delta: geometry.Point{X: 15, Y: -20}})
	if circle.Center.X != 215 || circle.Center.Y != 180 {
		t.Errorf("Expected center (215,180), got (%f,%f)", circle.Center.X, circle.Center.Y)
	}

	// Forward scroll zooms in at the default factor.
	circle = session.HandleFrame(gesture.Frame{Kind: gesture.Scroll, Scroll: -10})
	if circle.Radius != 125 {
		t.Errorf("Expected radius 125, got %f", circle.Radius)
	}
}

func TestHandleFrameTouch(t *testing.T) {
	opts := DefaultOptions()
	opts.Input = InputTouch

	session, err := NewSessionFromImage(createTestImage(400, 400), opts)
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	session.HandleFrame(gesture.Frame{Kind: gesture.Begin})
	circle := session.HandleFrame(gesture.Frame{Kind: gesture.Move, Scale: 1.5})

	// Pinch scales against the radius captured at gesture start.
	if circle.Radius != 180 {
		t.Errorf("Expected radius 180, got %f", circle.Radius)
	}

	session.HandleFrame(gesture.Frame{Kind: gesture.End})
}

func TestSessionLifecycle(t *testing.T) {
	data := encodeTestPNG(t, createTestImage(400, 400))

	session, err := NewSession(data, DefaultOptions())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	session.MoveCenterBy(geometry.Point{X: 30, Y: 10})
	session.GrowRadiusBy(-40)

	avatar, err := session.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(avatar))
	if err != nil {
		t.Fatalf("Confirmed avatar is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("Expected 200x200 avatar, got %dx%d", b.Dx(), b.Dy())
	}

	// The session stays usable after a confirm.
	session.GrowRadiusBy(20)
	if _, err := session.Confirm(context.Background()); err != nil {
		t.Errorf("Second confirm failed: %v", err)
	}
}

func TestConfirmCancelledContext(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(400, 400), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := session.Confirm(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}

	// A failed confirm leaves the session intact.
	if _, err := session.Confirm(context.Background()); err != nil {
		t.Errorf("Confirm after cancellation failed: %v", err)
	}
}

func TestReset(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(400, 400), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	initial := session.Circle()
	session.MoveCenterBy(geometry.Point{X: 80, Y: -30})
	session.GrowRadiusBy(35)
	session.Reset()

	if session.Circle() != initial {
		t.Errorf("Expected circle reset to %+v, got %+v", initial, session.Circle())
	}
}

func TestSuggestLocal(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(400, 300), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	circle, err := session.SuggestLocal()
	if err != nil {
		t.Fatalf("SuggestLocal failed: %v", err)
	}

	if circle != session.Circle() {
		t.Error("Expected suggestion applied to the session")
	}

	k := session.Constraints()
	if circle.Radius < k.MinRadius || circle.Radius > k.MaxRadius() {
		t.Errorf("Suggested radius %f outside [%f,%f]", circle.Radius, k.MinRadius, k.MaxRadius())
	}
}

type fakeVisionClient struct {
	placement *types.Placement
}

func (f *fakeVisionClient) SuggestSubject(ctx context.Context, model, prompt, imageB64 string) (*types.Placement, error) {
	return f.placement, nil
}

func TestSuggestModel(t *testing.T) {
	fake := &fakeVisionClient{placement: &types.Placement{
		Primary: types.Subject{
			Label:      "face",
			Confidence: 0.9,
			Box:        types.Box{X: 0.1, Y: 0.1, W: 0.3, H: 0.3},
			Cx:         0.25,
			Cy:         0.25,
		},
		Description: "a face in the upper left",
	}}

	opts := DefaultOptions()
	opts.Placer = placement.New(fake)
	opts.PlacerModel = "llava"

	session, err := NewSessionFromImage(createTestImage(400, 400), opts)
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	circle, result, err := session.SuggestModel(context.Background())
	if err != nil {
		t.Fatalf("SuggestModel failed: %v", err)
	}

	if result.Primary.Label != "face" {
		t.Errorf("Expected label face, got %s", result.Primary.Label)
	}
	if circle != session.Circle() {
		t.Error("Expected suggestion applied to the session")
	}

	// The subject sits in the upper-left quadrant.
	if circle.Center.X > 200 || circle.Center.Y > 200 {
		t.Errorf("Expected center in the upper-left, got (%f,%f)", circle.Center.X, circle.Center.Y)
	}
}

func TestSuggestModelWithoutPlacer(t *testing.T) {
	session, err := NewSessionFromImage(createTestImage(400, 400), DefaultOptions())
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	if _, _, err := session.SuggestModel(context.Background()); err == nil {
		t.Error("Expected error when no placement backend is configured")
	}
}

func TestFormat(t *testing.T) {
	opts := DefaultOptions()
	opts.Cropper = cropper.Config{Format: cropper.FormatWebP, Lossless: true}

	session, err := NewSessionFromImage(createTestImage(400, 400), opts)
	if err != nil {
		t.Fatalf("NewSessionFromImage failed: %v", err)
	}

	if session.Format() != cropper.FormatWebP {
		t.Errorf("Expected webp format, got %s", session.Format())
	}
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("Version should not be empty")
	}

	if version != Version {
		t.Errorf("GetVersion() returned %s, expected %s", version, Version)
	}
}

func BenchmarkHandleFrame(b *testing.B) {
	session, err := NewSessionFromImage(createTestImage(400, 400), DefaultOptions())
	if err != nil {
		b.Fatalf("NewSessionFromImage failed: %v", err)
	}

	frame := gesture.Frame{Kind: gesture.Move, Delta: geometry.Point{X: 1, Y: -1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		session.HandleFrame(frame)
	}
}

func BenchmarkConfirm(b *testing.B) {
	session, err := NewSessionFromImage(createTestImage(800, 600), DefaultOptions())
	if err != nil {
		b.Fatalf("NewSessionFromImage failed: %v", err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		session.Confirm(ctx)
	}
}
