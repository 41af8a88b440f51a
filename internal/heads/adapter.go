package heads

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
)

// lineAdapter gives a staff line and a ledger the same scanning interface.
type lineAdapter struct {
	line   *sheet.Line
	ledger *sheet.Ledger // nil for a staff line
}

func staffLineAdapter(l *sheet.Line) *lineAdapter { return &lineAdapter{line: l} }

func ledgerAdapter(lg *sheet.Ledger) *lineAdapter { return &lineAdapter{line: &lg.Line, ledger: lg} }

func (a *lineAdapter) left() int  { return int(math.Ceil(a.line.Left())) }
func (a *lineAdapter) right() int { return int(math.Floor(a.line.Right())) }

func (a *lineAdapter) yAtF(x float64) float64 { return a.line.YAt(x) }

func (a *lineAdapter) yAt(x int) int { return int(math.Round(a.line.YAt(float64(x)))) }

func (a *lineAdapter) String() string {
	if a.ledger != nil {
		return "ledger"
	}
	return "line"
}

// band returns the horizontal slice following the line from above to below,
// both relative to the line ordinate (negative is upward).
func (a *lineAdapter) band(above, below float64) band {
	return band{line: a.line, above: above, below: below, left: a.line.Left(), right: a.line.Right()}
}

// band is a horizontal slice of constant height following a line.
type band struct {
	line         *sheet.Line
	above, below float64
	left, right  float64
}

// intersects reports whether r meets the band. The band ordinate is sampled
// at the middle of the abscissa range common to r and the band.
func (b band) intersects(r image.Rectangle) bool {
	if r.Empty() {
		return false
	}
	if float64(r.Max.X) <= b.left || float64(r.Min.X) > b.right {
		return false
	}
	x0 := math.Max(b.left, float64(r.Min.X))
	x1 := math.Min(b.right, float64(r.Max.X))
	y := b.line.YAt((x0 + x1) / 2)
	return float64(r.Min.Y) < y+b.below && float64(r.Max.Y) > y+b.above
}

// glyphsIn returns the glyphs intersecting the band, sorted by abscissa.
func (b band) glyphsIn(glyphs []*sheet.Glyph) []*sheet.Glyph {
	var out []*sheet.Glyph
	for _, g := range glyphs {
		if b.intersects(g.Bounds()) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bounds().Min.X < out[j].Bounds().Min.X })
	return out
}

// ledgerAdapters returns the ledgers one step further out than pitch, for an
// odd pitch beyond the first ledger. Ordinates between such a ledger and the
// scanned one are interpolated.
func ledgerAdapters(st *sheet.Staff, pitch int) []*lineAdapter {
	if pitch%2 == 0 || abs(pitch) <= st.MaxPitch() {
		return nil
	}
	dir := sign(pitch)
	target := pitch + dir
	p := dir * st.MaxPitch()
	for i := dir; ; i += dir {
		set := st.LedgersAt(i)
		if len(set) == 0 {
			return nil
		}
		p += 2 * dir
		if p == target {
			out := make([]*lineAdapter, 0, len(set))
			for _, lg := range set {
				out = append(out, ledgerAdapter(lg))
			}
			return out
		}
	}
}

// sortByAbscissa orders inters by left abscissa.
func sortByAbscissa(inters []*sig.Inter) {
	sort.SliceStable(inters, func(i, j int) bool { return inters[i].Bounds.Min.X < inters[j].Bounds.Min.X })
}

// sortByFullAbscissa orders inters by left abscissa, then top ordinate, then id.
func sortByFullAbscissa(inters []*sig.Inter) {
	sort.SliceStable(inters, func(i, j int) bool {
		a, b := inters[i].Bounds.Min, inters[j].Bounds.Min
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return inters[i].ID < inters[j].ID
	})
}

// iou returns the intersection over union of two rectangles.
func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
