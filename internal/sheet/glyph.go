package sheet

import (
	"image"
	"math"
)

// Orientation tells how a glyph's runs are laid out.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// Run is one segment of foreground pixels. For a vertical glyph, Seq is the
// column and Start/Len extend along y. For a horizontal glyph, Seq is the row.
type Run struct {
	Seq   int `json:"seq"`
	Start int `json:"start"`
	Len   int `json:"len"`
}

// Glyph is a run-length encoded set of foreground pixels.
type Glyph struct {
	ID          int         `json:"id"`
	Orientation Orientation `json:"orientation"`
	Runs        []Run       `json:"runs"`

	// Grade is the upstream confidence, zero when the extractor gave none.
	Grade float64 `json:"grade,omitempty"`
}

// Pixels calls fn for every pixel of the glyph.
func (g *Glyph) Pixels(fn func(x, y int)) {
	for _, r := range g.Runs {
		for i := 0; i < r.Len; i++ {
			if g.Orientation == Horizontal {
				fn(r.Start+i, r.Seq)
			} else {
				fn(r.Seq, r.Start+i)
			}
		}
	}
}

// Weight returns the number of pixels.
func (g *Glyph) Weight() int {
	n := 0
	for _, r := range g.Runs {
		n += r.Len
	}
	return n
}

// Bounds returns the glyph bounding box.
func (g *Glyph) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range g.Runs {
		if r.Len <= 0 {
			continue
		}
		var rb image.Rectangle
		if g.Orientation == Horizontal {
			rb = image.Rect(r.Start, r.Seq, r.Start+r.Len, r.Seq+1)
		} else {
			rb = image.Rect(r.Seq, r.Start, r.Seq+1, r.Start+r.Len)
		}
		b = b.Union(rb)
	}
	return b
}

// StartPoint returns the mean abscissa of the top row, at that row.
func (g *Glyph) StartPoint() Point {
	b := g.Bounds()
	return Point{X: g.meanX(b.Min.Y), Y: float64(b.Min.Y)}
}

// StopPoint returns the mean abscissa of the bottom row, at that row.
func (g *Glyph) StopPoint() Point {
	b := g.Bounds()
	return Point{X: g.meanX(b.Max.Y - 1), Y: float64(b.Max.Y - 1)}
}

// XAt returns the glyph abscissa at ordinate y, interpolated between
// start and stop points.
func (g *Glyph) XAt(y float64) float64 {
	p1, p2 := g.StartPoint(), g.StopPoint()
	if p2.Y == p1.Y {
		return (p1.X + p2.X) / 2
	}
	return p1.X + (y-p1.Y)*(p2.X-p1.X)/(p2.Y-p1.Y)
}

func (g *Glyph) meanX(y int) float64 {
	sum, n := 0, 0
	g.Pixels(func(px, py int) {
		if py == y {
			sum += px
			n++
		}
	})
	if n == 0 {
		return math.NaN()
	}
	return float64(sum) / float64(n)
}
