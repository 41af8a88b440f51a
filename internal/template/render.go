package template

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"

	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/shape"
)

const (
	// stemDx is the stem anchor abscissa as a ratio of symbol width,
	// negative for inside the symbol.
	stemDx = -0.1

	// stemDy is the stem anchor ordinate as a ratio of symbol height,
	// negative for inside the symbol.
	stemDy = -0.2

	ellipseSteps = 72
)

// ellipse is expressed in interline units, centered on the symbol center.
type ellipse struct {
	rx, ry float64
	angle  float64 // degrees, counter-clockwise
}

type outline struct {
	outer ellipse
	hole  *ellipse
	bars  bool // breve side bars
}

var outlines = map[shape.Shape]outline{
	shape.NoteheadBlack: {outer: ellipse{0.62, 0.43, 20}},
	shape.NoteheadVoid:  {outer: ellipse{0.62, 0.43, 20}, hole: &ellipse{0.45, 0.2, 30}},
	shape.WholeNote:     {outer: ellipse{0.9, 0.5, 0}, hole: &ellipse{0.42, 0.3, 55}},
	shape.Breve:         {outer: ellipse{0.7, 0.47, 0}, hole: &ellipse{0.35, 0.25, 55}, bars: true},
}

// extent returns the half sizes of the rotated ellipse bounding box.
func (e ellipse) extent(il float64) (float64, float64) {
	a := e.angle * math.Pi / 180
	c, s := math.Cos(a), math.Sin(a)
	ex := math.Hypot(e.rx*c, e.ry*s) * il
	ey := math.Hypot(e.rx*s, e.ry*c) * il
	return ex, ey
}

// trace appends the ellipse polygon to the rasterizer. Reversed ellipses
// cancel the winding of the enclosing one and punch a hole.
func (e ellipse) trace(r *vector.Rasterizer, cx, cy, il float64, reverse bool) {
	a := -e.angle * math.Pi / 180 // image y axis points down
	ca, sa := math.Cos(a), math.Sin(a)
	for i := 0; i <= ellipseSteps; i++ {
		k := i
		if reverse {
			k = ellipseSteps - i
		}
		t := 2 * math.Pi * float64(k) / ellipseSteps
		ux, uy := e.rx*il*math.Cos(t), e.ry*il*math.Sin(t)
		x := float32(cx + ux*ca - uy*sa)
		y := float32(cy + ux*sa + uy*ca)
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.ClosePath()
}

func rect(r *vector.Rasterizer, x0, y0, x1, y1 float64) {
	r.MoveTo(float32(x0), float32(y0))
	r.LineTo(float32(x1), float32(y0))
	r.LineTo(float32(x1), float32(y1))
	r.LineTo(float32(x0), float32(y1))
	r.ClosePath()
}

// Build renders the template of shape s for the given music font point size.
func Build(s shape.Shape, pointSize int, p Params) (*Template, error) {
	ol, ok := outlines[s.Normal()]
	if !ok {
		return nil, fmt.Errorf("no template outline for %v", s)
	}
	if pointSize <= 0 {
		return nil, fmt.Errorf("invalid point size %d", pointSize)
	}

	baseIl := float64(pointSize) / 4
	il := baseIl
	if s.IsSmall() {
		il *= p.SmallRatio
	}
	maxRaw := int(math.Round(p.Margin * baseIl * distance.Normalizer))

	ex, ey := ol.outer.extent(il)
	if ol.bars {
		ex += 0.25 * il
		ey = math.Max(ey, 0.75*il)
	}
	pad := maxRaw/distance.Normalizer + 2
	w := 2*int(math.Ceil(ex)) + 2*pad + 1
	h := 2*int(math.Ceil(ey)) + 2*pad + 1
	cx, cy := float64(w)/2, float64(h)/2

	r := vector.NewRasterizer(w, h)
	ol.outer.trace(r, cx, cy, il, false)
	if ol.hole != nil {
		ol.hole.trace(r, cx, cy, il, true)
	}
	if ol.bars {
		rx := ol.outer.rx * il
		for _, sgn := range []float64{-1, 1} {
			x0 := cx + sgn*(rx+0.1*il)
			x1 := cx + sgn*(rx+0.22*il)
			rect(r, math.Min(x0, x1), cy-0.75*il, math.Max(x0, x1), cy+0.75*il)
		}
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	fore := func(x, y int) bool { return mask.Pix[y*mask.Stride+x] >= 128 }
	slim := slimBounds(w, h, fore)
	if slim.Empty() {
		return nil, fmt.Errorf("empty rendering for %v at point size %d", s, pointSize)
	}

	dist := distance.FromForeground(w, h, fore).Freeze()

	var hole []bool
	if ol.hole != nil {
		hole = fillHole(w, h, fore, center(slim))
	}

	var kps []KeyPoint
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(dist.Value(x, y))
			switch {
			case fore(x, y):
				kps = append(kps, KeyPoint{X: x, Y: y, D: 0})
			case hole != nil && hole[y*w+x]:
				kps = append(kps, KeyPoint{X: x, Y: y, D: -v})
			case v <= maxRaw:
				kps = append(kps, KeyPoint{X: x, Y: y, D: v})
			}
		}
	}

	t := &Template{
		shape:     s,
		pointSize: pointSize,
		width:     w,
		height:    h,
		slim:      slim,
		keyPoints: kps,
		offsets:   anchors(s, slim),
		params:    p,
	}
	return t, nil
}

func slimBounds(w, h int, fore func(x, y int) bool) image.Rectangle {
	var b image.Rectangle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if fore(x, y) {
				b = b.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return b
}

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// fillHole flood-fills the paper region around seed. It returns nil when no
// enclosed region is found near seed.
func fillHole(w, h int, fore func(x, y int) bool, seed image.Point) []bool {
	for _, d := range []image.Point{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		s := seed.Add(d)
		if fore(s.X, s.Y) {
			continue
		}
		filled := make([]bool, w*h)
		queue := []image.Point{s}
		filled[s.Y*w+s.X] = true
		leaked := false
		for len(queue) > 0 && !leaked {
			p := queue[0]
			queue = queue[1:]
			for _, n := range []image.Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
				if n.X < 0 || n.X >= w || n.Y < 0 || n.Y >= h {
					leaked = true
					break
				}
				if filled[n.Y*w+n.X] || fore(n.X, n.Y) {
					continue
				}
				filled[n.Y*w+n.X] = true
				queue = append(queue, n)
			}
		}
		if !leaked {
			return filled
		}
	}
	return nil
}

func anchors(s shape.Shape, slim image.Rectangle) map[Anchor]image.Point {
	x, y := float64(slim.Min.X), float64(slim.Min.Y)
	w, h := float64(slim.Dx()), float64(slim.Dy())
	cx, cy := x+w/2, y+h/2

	pt := func(px, py float64) image.Point {
		return image.Pt(int(math.Round(px)), int(math.Round(py)))
	}

	m := map[Anchor]image.Point{
		Center:      pt(cx, cy),
		MiddleLeft:  pt(x, cy),
		MiddleRight: pt(x+w, cy),
	}
	if s.IsStemLess() {
		return m
	}

	dx := stemDx * w
	left, right := x-dx, x+w+dx
	top, bottom := y-stemDy*h, y+h*(1+stemDy)
	m[TopLeftStem] = pt(left, top)
	m[LeftStem] = pt(left, cy)
	m[BottomLeftStem] = pt(left, bottom)
	m[TopRightStem] = pt(right, top)
	m[RightStem] = pt(right, cy)
	m[BottomRightStem] = pt(right, bottom)
	return m
}

// AnchorPoint returns the location of anchor a on a symbol of shape s whose
// symbol bounds are box. It reports false when the shape has no such anchor.
func AnchorPoint(s shape.Shape, box image.Rectangle, a Anchor) (image.Point, bool) {
	p, ok := anchors(s, box)[a]
	return p, ok
}

// Image renders the template key points for inspection: foreground black,
// background red fading with distance, holes pink.
func (t *Template) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	maxD := 1
	for _, kp := range t.keyPoints {
		maxD = max(maxD, kp.D)
	}
	for _, kp := range t.keyPoints {
		var c color.RGBA
		switch {
		case kp.D == 0:
			c = color.RGBA{0, 0, 0, 255}
		case kp.D < 0:
			c = color.RGBA{255, 175, 175, 255}
		default:
			fade := uint8(180 * kp.D / maxD)
			c = color.RGBA{255, fade, fade, 255}
		}
		img.SetRGBA(kp.X, kp.Y, c)
	}
	return img
}
