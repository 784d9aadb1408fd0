package cropper

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/profilekit/avatar-cropper/pkg/geometry"
)

// Format selects the byte encoding of normalized output.
type Format string

// Supported output encodings. PNG is the default: it is lossless and keeps
// the transparent corners outside the crop circle intact.
const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// ParseFormat maps a user-supplied format name to a Format. Unknown names
// fall back to PNG.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "webp":
		return FormatWebP
	case "jpg", "jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// ContentType returns the MIME type of data encoded in this format.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// DefaultCanonicalSide is the square output size in pixels. Every confirmed
// crop is normalized to it regardless of input resolution or crop radius.
const DefaultCanonicalSide = 200

// Config holds output parameters for rasterization and normalization.
type Config struct {
	CanonicalSide int
	Format        Format
	// Quality applies to JPEG and lossy WebP output.
	Quality int
	// Lossless switches WebP output to lossless mode.
	Lossless bool
}

// DefaultConfig returns the standard avatar output parameters.
func DefaultConfig() Config {
	return Config{
		CanonicalSide: DefaultCanonicalSide,
		Format:        FormatPNG,
		Quality:       85,
		Lossless:      true,
	}
}

// CircleCropper turns a display-space crop circle plus a decoded source
// image into a normalized, encoded avatar.
type CircleCropper struct {
	config Config
}

// New creates a CircleCropper with default configuration.
func New() *CircleCropper {
	return &CircleCropper{config: DefaultConfig()}
}

// NewWithConfig creates a CircleCropper with custom configuration. Zero
// values fall back to the defaults.
func NewWithConfig(config Config) *CircleCropper {
	if config.CanonicalSide <= 0 {
		config.CanonicalSide = DefaultCanonicalSide
	}
	if config.Format == "" {
		config.Format = FormatPNG
	}
	if config.Quality <= 0 {
		config.Quality = 85
	}
	return &CircleCropper{config: config}
}

// Format returns the configured output encoding.
func (c *CircleCropper) Format() Format {
	return c.config.Format
}

// SourceCircle is the crop circle mapped into source pixel coordinates.
type SourceCircle struct {
	CenterX int
	CenterY int
	Radius  int
}

// MapToSource converts a display-space circle into source pixel units using
// the geometry's uniform scale. Values truncate toward zero.
func MapToSource(g geometry.DisplayGeometry, circle geometry.Circle) SourceCircle {
	scale := g.Scale()
	return SourceCircle{
		CenterX: int(circle.Center.X * scale),
		CenterY: int(circle.Center.Y * scale),
		Radius:  int(circle.Radius * scale),
	}
}

// Result carries the stages of one confirmed crop.
type Result struct {
	// Raster is the unscaled circular cutout on a transparent background.
	Raster *image.NRGBA
	// Avatar is Raster resized to the canonical side.
	Avatar *image.NRGBA
	// Encoded is Avatar serialized in the configured format.
	Encoded []byte
	// Circle is the source-space circle the pixels were sampled from.
	Circle SourceCircle
}

// Rasterize walks the bounding square of the source-space circle and copies
// every pixel inside it into a fresh transparent buffer. Pixels whose
// in-circle position falls outside the source image clamp to the nearest
// edge pixel, which smears rather than blanks crops that overhang the image
// boundary. The walk is a plain O(side²) membership test; typical sides are
// a few hundred pixels.
func (c *CircleCropper) Rasterize(src image.Image, g geometry.DisplayGeometry, circle geometry.Circle) (*image.NRGBA, error) {
	sc := MapToSource(g, circle)
	if sc.Radius < 1 {
		return nil, fmt.Errorf("crop circle maps to an empty pixel region")
	}

	side := sc.Radius * 2
	out := image.NewNRGBA(image.Rect(0, 0, side, side))
	bounds := src.Bounds()
	rr := sc.Radius * sc.Radius

	for y := 0; y < side; y++ {
		dy := y - sc.Radius
		for x := 0; x < side; x++ {
			dx := x - sc.Radius
			if dx*dx+dy*dy > rr {
				continue
			}
			sx := clampInt(sc.CenterX+dx, 0, g.SourceWidth-1)
			sy := clampInt(sc.CenterY+dy, 0, g.SourceHeight-1)
			out.Set(x, y, src.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}

	return out, nil
}

// Normalize resizes a rasterized cutout to the canonical side, so
// downstream consumers always receive a constant payload shape.
func (c *CircleCropper) Normalize(img image.Image) *image.NRGBA {
	return imaging.Resize(img, c.config.CanonicalSide, c.config.CanonicalSide, imaging.Lanczos)
}

// Encode serializes an avatar in the configured format.
func (c *CircleCropper) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	switch c.config.Format {
	case FormatWebP:
		opts := &webp.Options{Lossless: c.config.Lossless, Quality: float32(c.config.Quality)}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatJPEG:
		// JPEG carries no alpha channel; flatten onto white first.
		flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
		flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: c.config.Quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Crop runs rasterize, normalize and encode in one pass.
func (c *CircleCropper) Crop(src image.Image, g geometry.DisplayGeometry, circle geometry.Circle) (Result, error) {
	raster, err := c.Rasterize(src, g, circle)
	if err != nil {
		return Result{}, err
	}

	avatar := c.Normalize(raster)

	encoded, err := c.Encode(avatar)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode avatar: %w", err)
	}

	return Result{
		Raster:  raster,
		Avatar:  avatar,
		Encoded: encoded,
		Circle:  MapToSource(g, circle),
	}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
