package chords

import (
	"image"
	"sort"

	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// LinkStems connects every stem head of the graph to the closest stem on
// each of its sides. A stem qualifies when it stands within the horizontal
// gap limits of the head edge and within the vertical gap of the head box.
// It returns the number of relations created.
func (a *Assembler) LinkStems() int {
	stems := a.graph.Inters(sig.KindStem)
	n := 0
	for _, h := range a.graph.Inters(sig.KindHead) {
		if !h.Shape.IsStemHead() || h.Bounds.Empty() {
			continue
		}
		for _, side := range []template.Side{template.Left, template.Right} {
			stem := a.closestStem(h, side, stems)
			if stem == nil {
				continue
			}
			_, created := a.graph.AddRelation(sig.Relation{
				Kind:    sig.RelHeadStem,
				A:       h.ID,
				B:       stem.ID,
				Side:    side,
				Portion: a.portion(h, stem, side),
			})
			if created {
				n++
			}
		}
	}
	return n
}

func (a *Assembler) closestStem(h *sig.Inter, side template.Side, stems []*sig.Inter) *sig.Inter {
	hb := h.Bounds
	var best *sig.Inter
	bestGap := 0

	for _, s := range stems {
		sb := s.Bounds

		// Positive gap: stem outside the head, negative: stem invading it.
		var gap int
		if side == template.Left {
			gap = hb.Min.X - sb.Max.X
		} else {
			gap = sb.Min.X - hb.Max.X
		}
		if gap > a.p.xOutGap || -gap > a.p.xInGap {
			continue
		}

		dy := max(sb.Min.Y-hb.Max.Y, hb.Min.Y-sb.Max.Y, 0)
		if dy > a.p.yGap {
			continue
		}

		if best == nil || abs(gap) < abs(bestGap) {
			best, bestGap = s, gap
		}
	}
	return best
}

// portion tells which part of the stem the head lies on, judged at the
// stem anchor where the stem meets the head.
func (a *Assembler) portion(h, stem *sig.Inter, side template.Side) sig.StemPortion {
	hb, sb := h.Bounds, stem.Bounds
	up := sb.Min.Y+sb.Max.Y < hb.Min.Y+hb.Max.Y
	ext, ok := template.AnchorPoint(h.Shape, hb, template.StemEndAnchor(side, up))
	if !ok {
		ext = image.Pt(0, (hb.Min.Y+hb.Max.Y)/2)
	}

	margin := float64(hb.Dy()) * a.p.anchorHeightRatio
	y := float64(ext.Y)
	top, bottom := float64(sb.Min.Y), float64(sb.Max.Y-1)

	if y >= (top+bottom)/2 {
		if y > bottom-margin {
			return sig.StemBottom
		}
		return sig.StemMiddle
	}
	if y < top+margin {
		return sig.StemTop
	}
	return sig.StemMiddle
}

// stemRelations returns the head-stem relations of a head, left side first.
func (a *Assembler) stemRelations(h *sig.Inter) []*sig.Relation {
	rels := a.graph.Relations(h.ID, sig.RelHeadStem)
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].Side < rels[j].Side })
	return rels
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
