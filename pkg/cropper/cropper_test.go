package cropper

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/chai2010/webp"

	"github.com/profilekit/avatar-cropper/pkg/geometry"
)

// createSolidImage creates a test image filled with a single color
func createSolidImage(width, height int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// createCoordinateImage creates a test image whose pixel color encodes its
// own position, so sampling can be verified exactly
func createCoordinateImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	return img
}

func defaultGeometry(sourceW, sourceH int) geometry.DisplayGeometry {
	return geometry.FitViewport(sourceW, sourceH, 400)
}

func TestNew(t *testing.T) {
	cropper := New()
	if cropper == nil {
		t.Fatal("New() returned nil")
	}

	if cropper.config.CanonicalSide != DefaultCanonicalSide {
		t.Errorf("Expected canonical side %d, got %d", DefaultCanonicalSide, cropper.config.CanonicalSide)
	}
	if cropper.config.Format != FormatPNG {
		t.Errorf("Expected default format png, got %s", cropper.config.Format)
	}
}

func TestNewWithConfig(t *testing.T) {
	cropper := NewWithConfig(Config{CanonicalSide: 64, Format: FormatWebP, Quality: 70})
	if cropper.config.CanonicalSide != 64 {
		t.Errorf("Expected canonical side 64, got %d", cropper.config.CanonicalSide)
	}

	// Zero values fall back to defaults.
	cropper = NewWithConfig(Config{})
	if cropper.config.CanonicalSide != DefaultCanonicalSide {
		t.Errorf("Expected canonical side %d, got %d", DefaultCanonicalSide, cropper.config.CanonicalSide)
	}
	if cropper.config.Format != FormatPNG {
		t.Errorf("Expected format png, got %s", cropper.config.Format)
	}
}

func TestMapToSource(t *testing.T) {
	// 800x400 source displays as 400x200, scale 2.
	g := defaultGeometry(800, 400)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 100}, Radius: 100}

	sc := MapToSource(g, circle)
	if sc.CenterX != 400 || sc.CenterY != 200 {
		t.Errorf("Expected source center (400,200), got (%d,%d)", sc.CenterX, sc.CenterY)
	}
	if sc.Radius != 200 {
		t.Errorf("Expected source radius 200, got %d", sc.Radius)
	}
}

func TestRasterizeCoordinateMapping(t *testing.T) {
	src := createCoordinateImage(400, 400)
	g := defaultGeometry(400, 400) // scale 1
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 200}, Radius: 120}

	out, err := New().Rasterize(src, g, circle)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	if got := out.Bounds().Dx(); got != 240 {
		t.Fatalf("Expected output side 240, got %d", got)
	}

	tests := []struct {
		x, y     int
		expected color.NRGBA
	}{
		{120, 120, color.NRGBA{200, 200, 0, 255}}, // buffer center = circle center
		{130, 115, color.NRGBA{210, 195, 0, 255}},
		{0, 120, color.NRGBA{80, 200, 0, 255}},  // leftmost point of the circle
		{120, 239, color.NRGBA{200, 63, 0, 255}}, // bottommost row inside
	}

	for _, tt := range tests {
		if got := out.NRGBAAt(tt.x, tt.y); got != tt.expected {
			t.Errorf("pixel (%d,%d): expected %+v, got %+v", tt.x, tt.y, tt.expected, got)
		}
	}

	// Corners are outside the circle and stay transparent.
	if got := out.NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("Expected transparent corner, got %+v", got)
	}
}

func TestRasterizeCircularMask(t *testing.T) {
	src := createSolidImage(400, 400, color.NRGBA{255, 255, 255, 255})
	g := defaultGeometry(400, 400)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 200}, Radius: 120}

	out, err := New().Rasterize(src, g, circle)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	side := out.Bounds().Dx()
	radius := side / 2
	opaque := 0

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx, dy := x-radius, y-radius
			inside := dx*dx+dy*dy <= radius*radius
			px := out.NRGBAAt(x, y)

			if inside && px.A != 255 {
				t.Fatalf("pixel (%d,%d) inside circle but transparent", x, y)
			}
			if !inside && px.A != 0 {
				t.Fatalf("pixel (%d,%d) outside circle but opaque", x, y)
			}
			if px.A == 255 {
				opaque++
			}
		}
	}

	// A circle fills pi/4 of its bounding square.
	fraction := float64(opaque) / float64(side*side)
	if math.Abs(fraction-math.Pi/4) > 0.01 {
		t.Errorf("Expected opaque fraction near %.4f, got %.4f", math.Pi/4, fraction)
	}
}

func TestRasterizeClampsEdgeSampling(t *testing.T) {
	// 4000x400 displays as 400x40; the minimum radius of 50 overhangs the
	// displayed height, so vertical sampling must clamp to the edge rows.
	src := image.NewNRGBA(image.Rect(0, 0, 4000, 400))
	gray := color.NRGBA{128, 128, 128, 255}
	green := color.NRGBA{0, 255, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	for y := 0; y < 400; y++ {
		c := gray
		if y == 0 {
			c = green
		}
		if y == 399 {
			c = blue
		}
		for x := 0; x < 4000; x++ {
			src.SetNRGBA(x, y, c)
		}
	}

	g := defaultGeometry(4000, 400) // scale 10
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 20}, Radius: 50}

	out, err := New().Rasterize(src, g, circle)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	// Source circle: center (2000,200), radius 500, buffer side 1000. The
	// topmost in-circle pixel wants source row -300 and clamps to row 0.
	if got := out.Bounds().Dx(); got != 1000 {
		t.Fatalf("Expected output side 1000, got %d", got)
	}
	if got := out.NRGBAAt(500, 0); got != green {
		t.Errorf("Expected top edge clamped to green row, got %+v", got)
	}
	if got := out.NRGBAAt(500, 999); got != blue {
		t.Errorf("Expected bottom edge clamped to blue row, got %+v", got)
	}
	if got := out.NRGBAAt(500, 500); got != gray {
		t.Errorf("Expected interior gray, got %+v", got)
	}
}

func TestRasterizeRejectsEmptyCircle(t *testing.T) {
	// A 2x2 source displays at scale 1/200; any legal radius maps to zero
	// source pixels.
	src := createSolidImage(2, 2, color.NRGBA{255, 0, 0, 255})
	g := defaultGeometry(2, 2)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 200}, Radius: 50}

	if _, err := New().Rasterize(src, g, circle); err == nil {
		t.Error("Expected error for a circle mapping to an empty pixel region")
	}
}

func TestCropOutputSizeInvariance(t *testing.T) {
	cropper := New()

	cases := []struct {
		sourceW, sourceH int
		radius           float64
	}{
		{400, 400, 120},
		{400, 400, 50},
		{400, 400, 200},
		{800, 600, 100},
		{1920, 1080, 90},
		{300, 500, 60},
	}

	for _, tc := range cases {
		src := createSolidImage(tc.sourceW, tc.sourceH, color.NRGBA{10, 20, 30, 255})
		g := defaultGeometry(tc.sourceW, tc.sourceH)
		circle := geometry.Circle{
			Center: geometry.Point{X: g.DisplayWidth / 2, Y: g.DisplayHeight / 2},
			Radius: tc.radius,
		}

		result, err := cropper.Crop(src, g, circle)
		if err != nil {
			t.Fatalf("Crop failed for %dx%d r=%f: %v", tc.sourceW, tc.sourceH, tc.radius, err)
		}

		decoded, err := png.Decode(bytes.NewReader(result.Encoded))
		if err != nil {
			t.Fatalf("Failed to decode output: %v", err)
		}
		b := decoded.Bounds()
		if b.Dx() != DefaultCanonicalSide || b.Dy() != DefaultCanonicalSide {
			t.Errorf("%dx%d r=%f: expected %dx%d output, got %dx%d",
				tc.sourceW, tc.sourceH, tc.radius,
				DefaultCanonicalSide, DefaultCanonicalSide, b.Dx(), b.Dy())
		}
	}
}

func TestCropCenteredSquareScenario(t *testing.T) {
	// 400x400 source in a 400 viewport with the default circle: confirming
	// without any gesture input yields a 200x200 avatar whose center pixel
	// matches the source center.
	red := color.NRGBA{200, 30, 30, 255}
	src := createSolidImage(400, 400, red)
	g := defaultGeometry(400, 400)
	k := geometry.NewConstraints(g)
	circle := geometry.InitialCircle(k)

	if circle.Radius != 120 {
		t.Fatalf("Expected default radius 120, got %f", circle.Radius)
	}

	result, err := New().Crop(src, g, circle)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Raster.Bounds().Dx() != 240 {
		t.Errorf("Expected raster side 240, got %d", result.Raster.Bounds().Dx())
	}

	decoded, err := png.Decode(bytes.NewReader(result.Encoded))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("Expected 200x200 output, got %dx%d", b.Dx(), b.Dy())
	}

	r, g8, b8, a := decoded.At(100, 100).RGBA()
	got := color.NRGBA{uint8(r >> 8), uint8(g8 >> 8), uint8(b8 >> 8), uint8(a >> 8)}
	if !colorsClose(got, red, 1) {
		t.Errorf("Expected center pixel %+v, got %+v", red, got)
	}
}

func TestEncodeWebP(t *testing.T) {
	cropper := NewWithConfig(Config{Format: FormatWebP, Lossless: true})
	src := createSolidImage(400, 400, color.NRGBA{0, 100, 200, 255})
	g := defaultGeometry(400, 400)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 200}, Radius: 120}

	result, err := cropper.Crop(src, g, circle)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	decoded, err := webp.Decode(bytes.NewReader(result.Encoded))
	if err != nil {
		t.Fatalf("Failed to decode webp output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != DefaultCanonicalSide || b.Dy() != DefaultCanonicalSide {
		t.Errorf("Expected %dx%d webp, got %dx%d", DefaultCanonicalSide, DefaultCanonicalSide, b.Dx(), b.Dy())
	}
}

func TestEncodeJPEGFlattensAlpha(t *testing.T) {
	cropper := NewWithConfig(Config{Format: FormatJPEG, Quality: 90})
	src := createSolidImage(400, 400, color.NRGBA{200, 30, 30, 255})
	g := defaultGeometry(400, 400)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 200}, Radius: 120}

	result, err := cropper.Crop(src, g, circle)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(result.Encoded))
	if err != nil {
		t.Fatalf("Failed to decode jpeg output: %v", err)
	}

	// The transparent corners flatten to the white backdrop.
	r, g8, b8, _ := decoded.At(0, 0).RGBA()
	if r>>8 < 240 || g8>>8 < 240 || b8>>8 < 240 {
		t.Errorf("Expected near-white corner after flattening, got (%d,%d,%d)", r>>8, g8>>8, b8>>8)
	}
}

func colorsClose(a, b color.NRGBA, tolerance int) bool {
	diff := func(x, y uint8) int {
		d := int(x) - int(y)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(a.R, b.R) <= tolerance &&
		diff(a.G, b.G) <= tolerance &&
		diff(a.B, b.B) <= tolerance &&
		diff(a.A, b.A) <= tolerance
}

func BenchmarkRasterize(b *testing.B) {
	src := createSolidImage(1920, 1080, color.NRGBA{90, 90, 90, 255})
	g := defaultGeometry(1920, 1080)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 111}, Radius: 100}
	cropper := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cropper.Rasterize(src, g, circle)
	}
}

func BenchmarkCrop(b *testing.B) {
	src := createSolidImage(1920, 1080, color.NRGBA{90, 90, 90, 255})
	g := defaultGeometry(1920, 1080)
	circle := geometry.Circle{Center: geometry.Point{X: 200, Y: 111}, Radius: 100}
	cropper := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cropper.Crop(src, g, circle)
	}
}
