package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Ink and Background are the two values of a binarized page.
const (
	Ink        uint8 = 0
	Background uint8 = 255
)

// Binarize converts img to a two-level raster: pixels darker than threshold
// become Ink, the others Background. Transparent areas are flattened onto
// white first. The result origin is (0,0).
func Binarize(img image.Image, threshold uint8) *image.Gray {
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		b := img.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		img = imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	}
	return segment.Threshold(img, threshold)
}

// InkRatio returns the share of Ink pixels in a binarized raster.
func InkRatio(bin *image.Gray) float64 {
	b := bin.Bounds()
	if b.Empty() {
		return 0
	}
	ink := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := bin.Pix[(y-b.Min.Y)*bin.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if row[x] == Ink {
				ink++
			}
		}
	}
	return float64(ink) / float64(b.Dx()*b.Dy())
}
