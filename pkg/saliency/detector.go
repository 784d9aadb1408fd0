package saliency

import (
	"fmt"
	"image"
	"math"

	"github.com/profilekit/avatar-cropper/pkg/types"
)

// Detector scores image regions by edge density and brightness to find the
// most visually salient square window. It is the offline placement backend:
// no vision model, just pixel statistics.
type Detector struct {
	config Config
}

// Config holds weights and window limits for the saliency score.
type Config struct {
	EdgeWeight       float64
	BrightnessWeight float64
	// MinWindowRatio is the smallest candidate window as a fraction of
	// the short image side.
	MinWindowRatio float64
}

// New creates a Detector with default configuration.
func New() *Detector {
	return &Detector{
		config: Config{
			EdgeWeight:       0.7,
			BrightnessWeight: 0.3,
			MinWindowRatio:   0.25,
		},
	}
}

// NewWithConfig creates a Detector with custom configuration.
func NewWithConfig(config Config) *Detector {
	return &Detector{config: config}
}

// Region is a square window in source pixel coordinates with its saliency
// score.
type Region struct {
	X     int
	Y     int
	Side  int
	Score float64
}

// FindSubjectBox returns the most salient square window as a normalized box
// suitable for circle placement. A flat image with no salient area yields
// the centered maximum square.
func (d *Detector) FindSubjectBox(img image.Image) (types.Box, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return types.Box{}, fmt.Errorf("image too small for saliency analysis: %dx%d", width, height)
	}

	saliencyMap := d.saliencyMap(img)
	best := d.bestWindow(saliencyMap, width, height)

	return types.Box{
		X: float64(best.X) / float64(width),
		Y: float64(best.Y) / float64(height),
		W: float64(best.Side) / float64(width),
		H: float64(best.Side) / float64(height),
	}, nil
}

// BestRegion returns the winning window in pixel coordinates.
func (d *Detector) BestRegion(img image.Image) (Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return Region{}, fmt.Errorf("image too small for saliency analysis: %dx%d", width, height)
	}
	return d.bestWindow(d.saliencyMap(img), width, height), nil
}

// saliencyMap combines an 8-neighbor edge response with brightness into a
// per-pixel score. The border row/column stays zero.
func (d *Detector) saliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	neighbors := [][]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			currentColor := img.At(x+bounds.Min.X, y+bounds.Min.Y)
			r1, g1, b1, _ := currentColor.RGBA()

			var edgeStrength float64
			for _, offset := range neighbors {
				nx, ny := x+offset[0], y+offset[1]
				neighborColor := img.At(nx+bounds.Min.X, ny+bounds.Min.Y)
				r2, g2, b2, _ := neighborColor.RGBA()

				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}

			// 8 neighbors, channel max 65535.
			edgeStrength /= 8.0 * 65535.0
			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)

			saliencyMap[y][x] = d.config.EdgeWeight*edgeStrength + d.config.BrightnessWeight*brightness
		}
	}

	return saliencyMap
}

// bestWindow slides square windows of several sizes over the map and keeps
// the one with the highest mean saliency. The centered maximum square is the
// starting candidate, so a scoreless map still places sensibly.
func (d *Detector) bestWindow(saliencyMap [][]float64, width, height int) Region {
	minSide := width
	if height < minSide {
		minSide = height
	}

	smallest := int(float64(minSide) * d.config.MinWindowRatio)
	sides := []int{minSide, minSide * 3 / 4, minSide / 2, smallest}

	best := Region{X: (width - minSide) / 2, Y: (height - minSide) / 2, Side: minSide}
	best.Score = d.windowScore(saliencyMap, best.X, best.Y, best.Side)

	for _, side := range sides {
		if side < 16 {
			continue
		}
		step := side / 8
		if step < 4 {
			step = 4
		}

		for y := 0; y+side <= height; y += step {
			for x := 0; x+side <= width; x += step {
				score := d.windowScore(saliencyMap, x, y, side)
				if score > best.Score {
					best = Region{X: x, Y: y, Side: side, Score: score}
				}
			}
		}
	}

	return best
}

func (d *Detector) windowScore(saliencyMap [][]float64, x, y, side int) float64 {
	var total float64
	count := 0

	for ry := y; ry < y+side && ry < len(saliencyMap); ry++ {
		row := saliencyMap[ry]
		for rx := x; rx < x+side && rx < len(row); rx++ {
			total += row[rx]
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}
