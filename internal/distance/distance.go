// Package distance computes the chamfer distance-to-foreground field of a
// binary page.
//
// The field goes through two phases. A Builder owns the grid while staff
// lines, ledgers, and stem seeds are erased from it; Freeze then hands the
// grid over to a read-only Field that any number of goroutines can share.
//
// Values are raw chamfer distances with orthogonal weight 3 and diagonal
// weight 4. Divide by Normalizer to get an approximate Euclidean distance in
// pixels. Erased locations hold Unknown.
package distance

import (
	"image"
	"math"
)

const (
	// Normalizer converts raw values to pixel distances.
	Normalizer = 3

	// Unknown marks erased locations. It is never a real distance.
	Unknown = math.MaxUint16

	orthoWeight = 3
	diagWeight  = 4
	farthest    = Unknown - 1
)

// Builder is the mutable phase of a distance field.
type Builder struct {
	width  int
	height int
	data   []uint16
}

// Field is the read-only phase of a distance field.
type Field struct {
	width  int
	height int
	data   []uint16
}

// Compute returns the chamfer distance of every pixel of img to its nearest
// foreground pixel. Pixels darker than mid-gray are foreground. The field is
// indexed from the image bounds origin, so a sub-image yields a field of its
// own size.
func Compute(img *image.Gray) *Builder {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]uint16, w*h)

	for y := 0; y < h; y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[i : i+w]
		for x, v := range row {
			if v < 128 {
				data[y*w+x] = 0
			} else {
				data[y*w+x] = farthest
			}
		}
	}

	chamfer(data, w, h)
	return &Builder{width: w, height: h, data: data}
}

// FromForeground computes the field of a w×h grid where fore reports the
// foreground pixels.
func FromForeground(w, h int, fore func(x, y int) bool) *Builder {
	data := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if fore(x, y) {
				data[y*w+x] = 0
			} else {
				data[y*w+x] = farthest
			}
		}
	}
	chamfer(data, w, h)
	return &Builder{width: w, height: h, data: data}
}

// chamfer runs the forward then backward raster passes in place.
func chamfer(d []uint16, w, h int) {
	relax := func(i, j, weight int) {
		if v := int(d[j]) + weight; v < int(d[i]) {
			d[i] = uint16(v)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			if x > 0 {
				relax(i, i-1, orthoWeight)
			}
			if y > 0 {
				up := i - w
				relax(i, up, orthoWeight)
				if x > 0 {
					relax(i, up-1, diagWeight)
				}
				if x < w-1 {
					relax(i, up+1, diagWeight)
				}
			}
		}
	}

	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			if x < w-1 {
				relax(i, i+1, orthoWeight)
			}
			if y < h-1 {
				down := i + w
				relax(i, down, orthoWeight)
				if x < w-1 {
					relax(i, down+1, diagWeight)
				}
				if x > 0 {
					relax(i, down-1, diagWeight)
				}
			}
		}
	}
}

// Width returns the grid width.
func (b *Builder) Width() int { return b.width }

// Height returns the grid height.
func (b *Builder) Height() int { return b.height }

// Value returns the raw value at (x,y), Unknown when out of range.
func (b *Builder) Value(x, y int) uint16 {
	b.check()
	return value(b.data, b.width, b.height, x, y)
}

// Curve is a horizontal line whose ordinate is known along its extent.
type Curve interface {
	Left() float64
	Right() float64
	YAt(x float64) float64
}

// PixelSet enumerates the pixels of a glyph.
type PixelSet interface {
	Pixels(fn func(x, y int))
}

// EraseLine marks as Unknown a band of the given thickness centered on the
// line, for every abscissa of the line extent.
func (b *Builder) EraseLine(line Curve, thickness float64) {
	b.check()
	half := thickness / 2
	x0 := int(math.Ceil(line.Left()))
	x1 := int(math.Floor(line.Right()))
	for x := max(0, x0); x <= min(b.width-1, x1); x++ {
		y := line.YAt(float64(x))
		top := int(math.RoundToEven(y - half))
		bottom := int(math.RoundToEven(y + half))
		for yy := max(0, top); yy <= min(b.height-1, bottom); yy++ {
			b.data[yy*b.width+x] = Unknown
		}
	}
}

// EraseGlyph marks every pixel of g as Unknown.
func (b *Builder) EraseGlyph(g PixelSet) {
	b.check()
	g.Pixels(func(x, y int) {
		if x >= 0 && x < b.width && y >= 0 && y < b.height {
			b.data[y*b.width+x] = Unknown
		}
	})
}

// EraseRect marks every pixel of r as Unknown.
func (b *Builder) EraseRect(r image.Rectangle) {
	b.check()
	r = r.Intersect(image.Rect(0, 0, b.width, b.height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := b.data[y*b.width : (y+1)*b.width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = Unknown
		}
	}
}

// Freeze ends the mutable phase. The builder must not be used afterwards.
func (b *Builder) Freeze() *Field {
	b.check()
	f := &Field{width: b.width, height: b.height, data: b.data}
	b.data = nil
	return f
}

func (b *Builder) check() {
	if b.data == nil {
		panic("distance: builder used after Freeze")
	}
}

// Width returns the grid width.
func (f *Field) Width() int { return f.width }

// Height returns the grid height.
func (f *Field) Height() int { return f.height }

// Value returns the raw value at (x,y), Unknown when out of range.
func (f *Field) Value(x, y int) uint16 {
	return value(f.data, f.width, f.height, x, y)
}

// Distance returns the pixel distance at (x,y). ok is false for Unknown or
// out of range locations.
func (f *Field) Distance(x, y int) (d float64, ok bool) {
	v := f.Value(x, y)
	if v == Unknown {
		return 0, false
	}
	return float64(v) / Normalizer, true
}

func value(data []uint16, w, h, x, y int) uint16 {
	if x < 0 || x >= w || y < 0 || y >= h {
		return Unknown
	}
	return data[y*w+x]
}
