package imageio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// AllowedMagicBytes defines magic bytes for accepted image types
var AllowedMagicBytes = map[string][]byte{
	"image/jpeg": {0xFF, 0xD8, 0xFF},
	"image/png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"image/webp": {0x52, 0x49, 0x46, 0x46}, // RIFF header (WebP starts with RIFF....WEBP)
}

// DetectType detects the actual image type from magic bytes
func DetectType(data []byte) (string, error) {
	if len(data) < 12 {
		return "", fmt.Errorf("data too short to detect type")
	}

	if bytes.HasPrefix(data, AllowedMagicBytes["image/jpeg"]) {
		return "image/jpeg", nil
	}

	if bytes.HasPrefix(data, AllowedMagicBytes["image/png"]) {
		return "image/png", nil
	}

	if bytes.HasPrefix(data, AllowedMagicBytes["image/webp"]) && string(data[8:12]) == "WEBP" {
		return "image/webp", nil
	}

	return "", fmt.Errorf("unsupported image type")
}

// Loader decodes, validates and saves avatar source images
type Loader struct {
	config Config
}

// Config holds source image requirements
type Config struct {
	MinDimension int   // source must be at least this wide and tall
	MaxBytes     int64 // upload size cap, 0 disables the check
}

// New creates a loader with default configuration
func New() *Loader {
	return &Loader{
		config: Config{
			MinDimension: 100,
			MaxBytes:     10 << 20,
		},
	}
}

// NewWithConfig creates a loader with custom configuration
func NewWithConfig(config Config) *Loader {
	return &Loader{config: config}
}

// Decode turns uploaded bytes into an image. The type is sniffed from magic
// bytes before decoding, and EXIF orientation is applied.
func (l *Loader) Decode(data []byte) (image.Image, error) {
	if l.config.MaxBytes > 0 && int64(len(data)) > l.config.MaxBytes {
		return nil, fmt.Errorf("image too large: %d bytes (maximum: %d)", len(data), l.config.MaxBytes)
	}

	if _, err := DetectType(data); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	if img, webpErr := webp.Decode(bytes.NewReader(data)); webpErr == nil {
		return img, nil
	}

	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// Validate checks if an image meets minimum requirements
func (l *Loader) Validate(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < l.config.MinDimension || bounds.Dy() < l.config.MinDimension {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), l.config.MinDimension)
	}
	return nil
}

// Load loads an image from a file path with WebP support
func (l *Loader) Load(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	if _, err := f.Seek(0, 0); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// Save saves an image to a file with the specified format and quality
func (l *Loader) Save(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Info returns basic information about an image
func (l *Loader) Info(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Area:        width * height,
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// PrepareForModel converts an image to base64 for sending to vision models,
// downscaling so the longest side stays within maxDim
func (l *Loader) PrepareForModel(img image.Image, format string, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
