// Package template builds note head templates and scores them against a
// distance field.
//
// A template is a set of key points relative to its upper-left corner:
// foreground points (expected ink), background points (expected paper near
// the symbol) and hole points (expected paper inside a hollow head). Each key
// point carries its expected raw chamfer distance to the symbol: 0 for
// foreground, positive for background, negative for holes.
package template

import (
	"image"
	"math"

	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/shape"
)

// KeyPoint is one template location with its expected raw distance.
type KeyPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
	D int `json:"d"`
}

// Params tunes template construction and evaluation.
type Params struct {
	ForeWeight float64
	BackWeight float64
	HoleWeight float64

	// PointCap bounds the contribution of a single foreground point, in pixels.
	PointCap float64

	// Margin is the farthest background point kept, in interline fraction.
	Margin float64

	// SmallRatio scales cue/grace templates.
	SmallRatio float64
}

// DefaultParams returns the standard template parameters.
func DefaultParams() Params {
	return Params{
		ForeWeight: 1,
		BackWeight: 1,
		HoleWeight: 1,
		PointCap:   1,
		Margin:     0.13,
		SmallRatio: 0.67,
	}
}

// Template is an immutable head template for one shape and point size.
type Template struct {
	shape     shape.Shape
	pointSize int
	width     int
	height    int
	slim      image.Rectangle
	keyPoints []KeyPoint
	offsets   map[Anchor]image.Point
	params    Params
}

// Shape returns the template shape.
func (t *Template) Shape() shape.Shape { return t.shape }

// PointSize returns the music font point size the template was built for.
func (t *Template) PointSize() int { return t.pointSize }

// Width returns the template width, margins included.
func (t *Template) Width() int { return t.width }

// Height returns the template height, margins included.
func (t *Template) Height() int { return t.height }

// SymbolBounds returns the symbol bounds within the template.
func (t *Template) SymbolBounds() image.Rectangle { return t.slim }

// KeyPoints returns the template key points. Callers must not modify them.
func (t *Template) KeyPoints() []KeyPoint { return t.keyPoints }

// HasAnchor reports whether the template defines the anchor.
func (t *Template) HasAnchor(a Anchor) bool {
	_, ok := t.offsets[a]
	return ok
}

// Offset returns the anchor location relative to the template upper-left corner.
func (t *Template) Offset(a Anchor) image.Point { return t.offsets[a] }

func (t *Template) upperLeft(x, y int, a Anchor) image.Point {
	off := t.offsets[a]
	return image.Pt(x-off.X, y-off.Y)
}

// BoundsAt returns the template box when anchor a is placed at (x,y).
func (t *Template) BoundsAt(x, y int, a Anchor) image.Rectangle {
	ul := t.upperLeft(x, y, a)
	return image.Rect(ul.X, ul.Y, ul.X+t.width, ul.Y+t.height)
}

// SymbolBoundsAt returns the symbol box when anchor a is placed at (x,y).
func (t *Template) SymbolBoundsAt(x, y int, a Anchor) image.Rectangle {
	return t.slim.Add(t.upperLeft(x, y, a))
}

// Evaluate scores the template with anchor a placed at (x,y). The result is
// the weighted mean mismatch over the key points that fall on known field
// locations: a foreground point contributes its distance to the nearest ink,
// up to PointCap; a background or hole point contributes 1 when it lands on
// ink. Lower is better. +Inf means no key point could be read.
func (t *Template) Evaluate(x, y int, a Anchor, f *distance.Field) float64 {
	ul := t.upperLeft(x, y, a)
	p := t.params
	var total, weights float64

	for _, kp := range t.keyPoints {
		v := f.Value(ul.X+kp.X, ul.Y+kp.Y)
		if v == distance.Unknown {
			continue
		}
		switch {
		case kp.D == 0:
			d := float64(v) / distance.Normalizer
			total += p.ForeWeight * math.Min(d, p.PointCap)
			weights += p.ForeWeight
		case kp.D > 0:
			if v == 0 {
				total += p.BackWeight
			}
			weights += p.BackWeight
		default:
			if v == 0 {
				total += p.HoleWeight
			}
			weights += p.HoleWeight
		}
	}

	if weights == 0 {
		return math.Inf(1)
	}
	return total / weights
}

// EvaluateHole returns the ratio of hole key points landing on paper, among
// the hole key points that fall on known field locations. Zero when the
// template has no readable hole.
func (t *Template) EvaluateHole(x, y int, a Anchor, f *distance.Field) float64 {
	ul := t.upperLeft(x, y, a)
	expected, actual := 0, 0

	for _, kp := range t.keyPoints {
		if kp.D >= 0 {
			continue
		}
		v := f.Value(ul.X+kp.X, ul.Y+kp.Y)
		if v == distance.Unknown {
			continue
		}
		expected++
		if v != 0 {
			actual++
		}
	}

	if expected == 0 {
		return 0
	}
	return float64(actual) / float64(expected)
}

// ForegroundPixels returns the template foreground points, relative to box,
// that land on ink in the binary image. box is a template box as returned by
// BoundsAt.
func (t *Template) ForegroundPixels(box image.Rectangle, binary *image.Gray) []image.Point {
	var fores []image.Point
	b := binary.Bounds()
	for _, kp := range t.keyPoints {
		if kp.D != 0 {
			continue
		}
		p := image.Pt(box.Min.X+kp.X, box.Min.Y+kp.Y)
		if !p.In(b) {
			continue
		}
		if binary.GrayAt(p.X, p.Y).Y < 128 {
			fores = append(fores, image.Pt(kp.X, kp.Y))
		}
	}
	return fores
}

// ImpactOf converts a matching distance into an impact, 1 for a perfect
// match, decreasing linearly to 0 at maxDistanceHigh.
func ImpactOf(d, maxDistanceHigh float64) float64 {
	return 1 - d/maxDistanceHigh
}

// GradeOf clamps the impact of d to [0,1].
func GradeOf(d, maxDistanceHigh float64) float64 {
	g := ImpactOf(d, maxDistanceHigh)
	switch {
	case math.IsNaN(g) || g < 0:
		return 0
	case g > 1:
		return 1
	}
	return g
}

// Paint inks the template foreground onto dst with anchor a at (x,y).
func (t *Template) Paint(dst *image.Gray, x, y int, a Anchor) {
	ul := t.upperLeft(x, y, a)
	b := dst.Bounds()
	for _, kp := range t.keyPoints {
		if kp.D != 0 {
			continue
		}
		p := image.Pt(ul.X+kp.X, ul.Y+kp.Y)
		if p.In(b) {
			dst.Pix[dst.PixOffset(p.X, p.Y)] = 0
		}
	}
}
