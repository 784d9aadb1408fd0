package cropper

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/profilekit/avatar-cropper/pkg/geometry"
)

// Preview draws the crop circle and its center onto a copy of the source
// image, for inspecting a placement before committing to it
func (c *CircleCropper) Preview(src image.Image, g geometry.DisplayGeometry, circle geometry.Circle) *image.NRGBA {
	nrgba := imaging.Clone(src)
	sc := MapToSource(g, circle)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	gold := color.NRGBA{255, 204, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(minInt(w, h))))   // ~1% of min side

	drawCircle(nrgba, sc.CenterX, sc.CenterY, sc.Radius, gold, stroke)

	drawHLine(nrgba, sc.CenterY, sc.CenterX-cross, sc.CenterX+cross, red)
	drawVLine(nrgba, sc.CenterX, sc.CenterY-cross, sc.CenterY+cross, red)

	return nrgba
}

// drawCircle draws a circle outline using the midpoint algorithm, thickened
// inward by stroke pixels
func drawCircle(img *image.NRGBA, cx, cy, r int, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		rr := r - s
		if rr < 0 {
			break
		}

		x := rr
		y := 0
		err := 0
		for x >= y {
			setPixel(img, cx+x, cy+y, c)
			setPixel(img, cx+y, cy+x, c)
			setPixel(img, cx-y, cy+x, c)
			setPixel(img, cx-x, cy+y, c)
			setPixel(img, cx-x, cy-y, c)
			setPixel(img, cx-y, cy-x, c)
			setPixel(img, cx+y, cy-x, c)
			setPixel(img, cx+x, cy-y, c)

			y++
			err += 1 + 2*y
			if 2*(err-x)+1 > 0 {
				x--
				err += 1 - 2*x
			}
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
