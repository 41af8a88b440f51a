package heads

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// match is a template location with its distance.
type match struct {
	x, y int
	d    float64
}

// candidate is a head not yet added to the graph, with the location it was
// matched at.
type candidate struct {
	head   *sig.Inter
	loc    match
	anchor template.Anchor
}

// scanner looks for heads at one pitch along one line or ledger.
type scanner struct {
	b       *Builder
	staff   *sheet.Staff
	catalog *template.Catalog

	line  *lineAdapter
	line2 *lineAdapter // other staff line bounding a space, if any
	dir   int          // -1 above line, 0 on line, +1 below line
	pitch int

	useSeeds bool
	isOpen   bool
	yOffsets []int
	ledgers  []*lineAdapter

	seedsArea       band
	competitorsArea band
	competitors     []*sig.Inter
	barAreas        []image.Rectangle

	shapesAll    []shape.Shape
	shapesStem   []shape.Shape
	shapesHollow []shape.Shape

	perf *Perf
}

func (b *Builder) newScanner(st *sheet.Staff, cat *template.Catalog, line, line2 *lineAdapter, dir, pitch int, useSeeds bool) *scanner {
	p := b.p
	il := float64(p.interline)
	s := &scanner{
		b:        b,
		staff:    st,
		catalog:  cat,
		line:     line,
		line2:    line2,
		dir:      dir,
		pitch:    pitch,
		useSeeds: useSeeds,
		isOpen:   pitch%2 != 0 && (line2 == nil || abs(pitch) == st.LineCount()),
		ledgers:  ledgerAdapters(st, pitch),
	}
	s.yOffsets = p.yOffsets(s.isOpen, dir)

	d := float64(dir)
	s.seedsArea = line.band(il*(d-p.pitchMargin)/2, il*(d+p.pitchMargin)/2)
	s.competitorsArea = line.band(il*(d-p.shrinkVertRatio)/2, il*(d+p.shrinkVertRatio)/2)

	barsArea := line.band(il*d/2-p.barVerticalMargin, il*d/2+p.barVerticalMargin)
	for _, r := range b.barAreas {
		if barsArea.intersects(r) {
			s.barAreas = append(s.barAreas, r)
		}
	}

	for _, c := range b.competitors {
		if !c.Removed && s.competitorsArea.intersects(c.Bounds) {
			s.competitors = append(s.competitors, c)
		}
	}
	sortByAbscissa(s.competitors)

	s.shapesAll = shape.TemplateNotes(p.smallHeads)
	s.shapesStem = shape.StemTemplateNotes(p.smallHeads)
	s.shapesHollow = shape.VoidTemplateNotes(p.smallHeads)

	if useSeeds {
		s.perf = &b.seedsPerf
	} else {
		s.perf = &b.rangePerf
	}
	return s
}

// lookup returns the heads found, already added to the graph.
func (s *scanner) lookup() []*sig.Inter {
	if s.useSeeds {
		return s.lookupSeeds()
	}
	return s.lookupRange()
}

// lookupSeeds tries stem heads on both sides of every stem seed crossing
// the scanned pitch. For each shape and side, the best location of the
// window is kept.
func (s *scanner) lookupSeeds() []*sig.Inter {
	p := s.b.p
	xOffsets := p.xOffsets()
	var heads []*sig.Inter

	for _, seed := range s.seedsArea.glyphsIn(s.b.sys.Seeds) {
		box := seed.Bounds()
		rough := int(math.Round(float64(box.Min.X+box.Max.X-1) / 2))
		x0 := int(math.Round(seed.XAt(s.line.yAtF(float64(rough)))))
		y0 := s.theoreticalOrdinate(x0)

		for _, side := range []template.Side{template.Left, template.Right} {
			anchor := template.StemAnchor(side)

		shapeLoop:
			for _, sh := range s.shapesStem {
				var best match
				found := false

				for _, dy := range s.yOffsets {
					y := y0 + dy
					for _, dx := range xOffsets {
						x := x0 + dx
						loc, ok := s.eval(sh, x, y, anchor)
						if ok && loc.d <= p.maxDistanceLow {
							if !found || best.d > loc.d {
								best, found = loc, true
							}
						} else if x == x0 && y == y0 && (!ok || loc.d >= p.reallyBadDistance) {
							s.perf.Abandons++
							continue shapeLoop
						}
					}
				}
				if !found {
					continue
				}

				final := s.blackAsVoid(sh, best, anchor)
				head := s.createHead(best, anchor, final, seed.ID)
				if head == nil || !s.hasGlyph(final, best, anchor) {
					continue
				}
				s.b.graph.Add(head)
				heads = append(heads, head)

				if head.Grade < p.goodGrade {
					continue
				}
				hb := head.Bounds
				var dx float64
				if side == template.Left {
					dx = float64(hb.Min.X-x0) + 0.5
				} else {
					dx = float64(x0) + 0.5 - float64(hb.Max.X-1)
				}
				s.b.tally.PutDx(head, side, dx)
			}
		}
	}
	return heads
}

// lookupRange sweeps the line abscissae. Hollow shapes are tried
// everywhere, the other shapes only near head spots.
func (s *scanner) lookupRange() []*sig.Inter {
	p := s.b.p

	scanLeft := max(s.line.left(), s.staff.HeaderStop)
	scanRight := s.line.right() - p.minTemplateWidth
	if scanRight < scanLeft {
		return nil
	}
	relevant := s.relevantBlackAbscissae(scanLeft, scanRight)

	var cands []candidate
	for x0 := scanLeft; x0 <= scanRight; x0++ {
		y0 := s.theoreticalOrdinate(x0)
		if s.blank(x0, y0) {
			x0 += 2*p.templateHalf - 1
			continue
		}

		shapes := s.shapesHollow
		if relevant[x0-scanLeft] {
			shapes = s.shapesAll
		}

	shapeLoop:
		for _, sh := range shapes {
			var best match
			found := false

			for _, dy := range s.yOffsets {
				y := y0 + dy
				loc, ok := s.eval(sh, x0, y, template.MiddleLeft)
				if ok && loc.d <= p.maxDistanceLow {
					if !found || best.d > loc.d {
						best, found = loc, true
					}
				} else if y == y0 && (!ok || loc.d >= p.reallyBadDistance) {
					s.perf.Abandons++
					continue shapeLoop
				}
			}
			if !found {
				continue
			}

			final := s.blackAsVoid(sh, best, template.MiddleLeft)
			if s.isWeakStemLessHead(final, best) {
				continue
			}
			if head := s.createHead(best, template.MiddleLeft, final, 0); head != nil {
				cands = append(cands, candidate{head: head, loc: best, anchor: template.MiddleLeft})
			}
		}
	}
	cands = s.b.aggregateMatches(cands)
	cands = s.filterSeedConflicts(cands)

	var heads []*sig.Inter
	for _, c := range cands {
		if !s.hasGlyph(c.head.Shape, c.loc, c.anchor) {
			continue
		}
		s.b.graph.Add(c.head)
		heads = append(heads, c.head)
	}
	return heads
}

// blank reports whether the scan can jump ahead: the location half a
// template further is out of the page or far from any ink.
func (s *scanner) blank(x0, y0 int) bool {
	f := s.b.field
	half := s.b.p.templateHalf
	if x0+half >= f.Width() || y0 < 0 || y0 >= f.Height() {
		return true
	}
	v := f.Value(x0+half, y0)
	return v != distance.Unknown && int(v)/distance.Normalizer > half
}

// eval evaluates the shape template with anchor at (x,y). It fails when the
// symbol would hit a frozen bar or overlap a competing symbol.
func (s *scanner) eval(sh shape.Shape, x, y int, anchor template.Anchor) (match, bool) {
	t := s.catalog.Template(sh)
	if t == nil || !t.HasAnchor(anchor) {
		return match{}, false
	}
	box := t.SymbolBoundsAt(x, y, anchor)

	if s.barInvolved(box) {
		s.perf.Bars++
		return match{}, false
	}
	if s.overlap(box) {
		s.perf.Overlaps++
		return match{}, false
	}

	d := t.Evaluate(x, y, anchor, s.b.field)
	s.perf.Evals++
	return match{x: x, y: y, d: d}, true
}

// blackAsVoid returns the hollow counterpart of a black shape when the
// matched location shows enough paper inside the head.
func (s *scanner) blackAsVoid(sh shape.Shape, loc match, anchor template.Anchor) shape.Shape {
	if !sh.IsBlack() {
		return sh
	}
	void := sh.Void()
	t := s.catalog.Template(void)
	if t == nil || !t.HasAnchor(anchor) {
		return sh
	}
	if t.EvaluateHole(loc.x, loc.y, anchor, s.b.field) >= s.b.p.minHoleWhiteRatio {
		return void
	}
	return sh
}

// isWeakStemLessHead reports whether a stem-less head would stay below the
// minimum contextual grade even once boosted. Such heads have no partner to
// support them later.
func (s *scanner) isWeakStemLessHead(sh shape.Shape, loc match) bool {
	if !sh.IsStemLess() {
		return false
	}
	p := s.b.p
	grade := boost(template.GradeOf(loc.d, p.maxDistanceHigh), p.stemLessBoost)
	return grade < p.minContextualGrade
}

// createHead builds the head for a match, nil when its grade is too low.
func (s *scanner) createHead(loc match, anchor template.Anchor, sh shape.Shape, source int) *sig.Inter {
	p := s.b.p
	grade := template.GradeOf(loc.d, p.maxDistanceHigh)
	if grade < p.minGrade {
		return nil
	}
	t := s.catalog.Template(sh)
	return &sig.Inter{
		Kind:     sig.KindHead,
		Shape:    sh,
		Bounds:   t.SymbolBoundsAt(loc.x, loc.y, anchor),
		Grade:    grade,
		Staff:    s.staff.ID,
		Pitch:    s.pitch,
		Distance: loc.d,
		Source:   source,
	}
}

// hasGlyph reports whether the template placed at loc covers some ink.
func (s *scanner) hasGlyph(sh shape.Shape, loc match, anchor template.Anchor) bool {
	if s.b.binary == nil {
		return true
	}
	t := s.catalog.Template(sh)
	return len(t.ForegroundPixels(t.BoundsAt(loc.x, loc.y, anchor), s.b.binary)) > 0
}

func (s *scanner) barInvolved(box image.Rectangle) bool {
	for _, r := range s.barAreas {
		if r.Overlaps(box) {
			return true
		}
	}
	return false
}

// overlap reports whether box hits a competitor other than a head.
func (s *scanner) overlap(box image.Rectangle) bool {
	for _, c := range s.competitors {
		if c.Kind == sig.KindHead || c.Removed {
			continue
		}
		if c.Bounds.Overlaps(box) {
			return true
		}
		if c.Bounds.Min.X > box.Max.X {
			break
		}
	}
	return false
}

// filterSeedConflicts drops range candidates matching a seed head of
// comparable grade.
func (s *scanner) filterSeedConflicts(cands []candidate) []candidate {
	p := s.b.p
	kept := cands[:0]
	for _, c := range cands {
		if !s.overlapSeed(c.head, p) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (s *scanner) overlapSeed(head *sig.Inter, p params) bool {
	box := head.Bounds
	lowered := head.Grade * (1 - p.gradeMargin)
	for _, c := range s.competitors {
		if c.Kind != sig.KindHead || c.Removed {
			continue
		}
		if c.Bounds.Overlaps(box) {
			if iou(c.Bounds, box) >= p.minIouHeads && c.Grade >= lowered {
				return true
			}
		} else if c.Bounds.Min.X > box.Max.X {
			break
		}
	}
	return false
}

// relevantBlackAbscissae flags the abscissae near a head spot of the
// competitors area.
func (s *scanner) relevantBlackAbscissae(scanLeft, scanRight int) []bool {
	relevant := make([]bool, scanRight-scanLeft+1)
	grow := s.b.p.interline
	for _, spot := range s.competitorsArea.glyphsIn(s.b.sys.Spots) {
		box := spot.Bounds()
		for x := box.Min.X - grow; x < box.Max.X+grow; x++ {
			if i := x - scanLeft; i >= 0 && i < len(relevant) {
				relevant[i] = true
			}
		}
	}
	return relevant
}

// theoreticalOrdinate returns the ordinate of the scanned pitch at x.
// Outside the staff, ordinates follow the actual ledgers when there are some.
func (s *scanner) theoreticalOrdinate(x int) int {
	n := s.staff.LineCount()
	il := float64(s.b.p.interline)
	xf := float64(x)

	if abs(s.pitch) < n {
		return int(math.Round(s.staff.PitchToY(xf, s.pitch, il)))
	}
	if s.pitch%2 == 0 {
		return s.line.yAt(x)
	}
	if abs(s.pitch) > n {
		for _, lg := range s.ledgers {
			if x >= lg.left() && x <= lg.right() {
				return int(math.Round((s.line.yAtF(xf) + lg.yAtF(xf)) / 2))
			}
		}
	}
	if s.pitch > 0 {
		return int(math.Round(s.line.yAtF(xf) + il/2))
	}
	return int(math.Round(s.line.yAtF(xf) - il/2))
}

// aggregateMatches keeps the best candidate of each group of candidates
// whose centers lie within maxTemplateDx of the group best.
func (b *Builder) aggregateMatches(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].head.Grade > cands[j].head.Grade })

	var leaders []candidate
	var xs []float64
	for _, c := range cands {
		x := float64(c.head.Bounds.Min.X+c.head.Bounds.Max.X) / 2
		dup := false
		for _, ax := range xs {
			if math.Abs(x-ax) <= b.p.maxTemplateDx {
				dup = true
				break
			}
		}
		if !dup {
			leaders = append(leaders, c)
			xs = append(xs, x)
		}
	}
	return leaders
}
