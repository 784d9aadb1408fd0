package placement

import (
	"context"
	"strings"

	"github.com/profilekit/avatar-cropper/pkg/client"
	"github.com/profilekit/avatar-cropper/pkg/geometry"
	"github.com/profilekit/avatar-cropper/pkg/types"
)

// DefaultPrompt is the default prompt for locating an avatar subject
const DefaultPrompt = `You are an avatar framing assistant.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box should tightly include the best avatar subject: a face if present, else head and shoulders, else the most central salient object.
- cx and cy are the center of the box.
- Description must be brief and factual. Do not guess real identities.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"centered generic scene"
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config controls how a model suggestion is turned into a crop circle
type Config struct {
	PaddingRatio  float64 // extra radius around the subject box
	MinConfidence float64 // suggestions below this keep the default circle
}

// DefaultConfig returns the default placement configuration
func DefaultConfig() Config {
	return Config{
		PaddingRatio:  0.15,
		MinConfidence: 0.2,
	}
}

// Placer turns vision model output into crop circle suggestions
type Placer struct {
	client client.VisionClient
	config Config
}

// New creates a placer with default configuration
func New(c client.VisionClient) *Placer {
	return NewWithConfig(c, DefaultConfig())
}

// NewWithConfig creates a placer with custom configuration
func NewWithConfig(c client.VisionClient, config Config) *Placer {
	if config.PaddingRatio < 0 {
		config.PaddingRatio = 0
	}
	return &Placer{
		client: c,
		config: config,
	}
}

// SuggestSubject asks the model where the avatar subject sits in the image
func (p *Placer) SuggestSubject(ctx context.Context, model, imageB64 string) (*types.Placement, error) {
	result, err := p.client.SuggestSubject(ctx, model, DefaultPrompt, imageB64)
	if err != nil {
		return nil, err
	}
	return sanitizePlacement(result), nil
}

// SuggestCircle asks the model for a subject and maps it onto the display
// geometry. A "none" or low-confidence answer yields the default centered
// circle instead.
func (p *Placer) SuggestCircle(ctx context.Context, model, imageB64 string, k geometry.Constraints) (geometry.Circle, *types.Placement, error) {
	result, err := p.SuggestSubject(ctx, model, imageB64)
	if err != nil {
		return geometry.Circle{}, nil, err
	}
	if !p.usable(result.Primary) {
		return geometry.InitialCircle(k), result, nil
	}
	return p.CircleFromSubject(result.Primary, k), result, nil
}

// CircleFromSubject maps a normalized subject onto display coordinates
func (p *Placer) CircleFromSubject(s types.Subject, k geometry.Constraints) geometry.Circle {
	cx, cy := s.Cx, s.Cy
	if cx == 0 && cy == 0 {
		cx, cy = s.Box.Center()
	}
	return circleAt(cx, cy, s.Box, p.config.PaddingRatio, k)
}

// CircleFromBox maps a normalized box onto display coordinates, centered on
// the box and padded by the given ratio. Local saliency suggestions use this
// directly, without a Placer.
func CircleFromBox(b types.Box, padding float64, k geometry.Constraints) geometry.Circle {
	cx, cy := b.Center()
	return circleAt(cx, cy, b, padding, k)
}

func circleAt(cx, cy float64, b types.Box, padding float64, k geometry.Constraints) geometry.Circle {
	g := k.Geometry
	side := b.W * g.DisplayWidth
	if h := b.H * g.DisplayHeight; h > side {
		side = h
	}

	c := geometry.Circle{
		Center: geometry.Point{X: cx * g.DisplayWidth, Y: cy * g.DisplayHeight},
		Radius: side / 2 * (1 + padding),
	}
	return c.Clamped(k)
}

// usable reports whether a subject is trustworthy enough to move the circle
func (p *Placer) usable(s types.Subject) bool {
	if strings.ToLower(s.Label) == "none" {
		return false
	}
	if s.Confidence < p.config.MinConfidence {
		return false
	}
	if s.Box.W <= 0 || s.Box.H <= 0 {
		return false
	}
	return true
}

// sanitizePlacement clamps coordinates and downgrades fallback-looking labels
func sanitizePlacement(result *types.Placement) *types.Placement {
	result.Primary.Box = clampBox(result.Primary.Box)
	result.Primary.Cx = clamp(result.Primary.Cx, 0, 1)
	result.Primary.Cy = clamp(result.Primary.Cy, 0, 1)

	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}
	for _, indicator := range fallbackIndicators {
		if strings.Contains(strings.ToLower(result.Primary.Label), indicator) ||
			strings.Contains(strings.ToLower(result.Description), indicator) {
			if result.Primary.Label != "none" {
				result.Primary.Label = "none"
				result.Primary.Confidence = 0.0
			}
			break
		}
	}

	return result
}

// clampBox ensures box coordinates are within [0,1] bounds
func clampBox(b types.Box) types.Box {
	return types.Box{
		X: clamp(b.X, 0, 1),
		Y: clamp(b.Y, 0, 1),
		W: clamp(b.W, 0, 1),
		H: clamp(b.H, 0, 1),
	}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
