package verify

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor     = color.RGBA{R: 255, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.RGBA{A: 200}
)

// Annotate returns a copy of img with region outlined and label drawn at its
// top-left corner.
func Annotate(img image.Image, region image.Rectangle, label string) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	r := region.Intersect(bounds)
	for x := r.Min.X; x < r.Max.X; x++ {
		rgba.Set(x, r.Min.Y, boxColor)
		rgba.Set(x, r.Max.Y-1, boxColor)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		rgba.Set(r.Min.X, y, boxColor)
		rgba.Set(r.Max.X-1, y, boxColor)
	}
	// basicfont.Face7x13 glyphs are 13px tall; the dot is the baseline.
	drawTextWithOutline(rgba, label, r.Min.X+3, r.Min.Y+14)
	return rgba
}

// WriteAnnotated writes Annotate's output as a PNG file.
func WriteAnnotated(path string, img image.Image, region image.Rectangle, label string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, Annotate(img, region, label)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func drawTextWithOutline(img *image.RGBA, text string, x, y int) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawText(img, text, x+dx, y+dy, outlineColor)
		}
	}
	drawText(img, text, x, y, textColor)
}

func drawText(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
