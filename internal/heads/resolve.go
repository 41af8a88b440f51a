package heads

import (
	"math"
	"sort"

	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// gradeEpsilon is the grade difference below which two heads tie.
const gradeEpsilon = 1e-5

// Resolver settles conflicts between the heads of one staff.
type Resolver struct {
	Graph *sig.Graph
	Tally *HeadSeedTally

	// Scale, when set, breaks ties between equally good heads in favor of
	// the one whose seed offsets match the calibration best.
	Scale *HeadSeedScale

	// GoodGrade is the grade both tied heads must reach to share seed data.
	GoodGrade float64

	MaxOverlapDxRatio   float64
	MaxOverlapAreaRatio float64
}

// PurgeDuplicates removes, among heads sorted by abscissa, the lower grade
// one of each pair of identical heads. It returns the surviving heads and the
// number removed.
func (r *Resolver) PurgeDuplicates(heads []*sig.Inter) ([]*sig.Inter, int) {
	n := r.Purge(heads, "duplicate", (*sig.Inter).IsSameAs, true)
	kept := heads[:0]
	for _, h := range heads {
		if !h.Removed {
			kept = append(kept, h)
		}
	}
	return kept, n
}

// PurgeOverlaps records an exclusion between each pair of overlapping heads,
// among heads sorted by abscissa. It returns the number of exclusions created.
func (r *Resolver) PurgeOverlaps(heads []*sig.Inter) int {
	return r.Purge(heads, "overlap", r.Overlaps, false)
}

// Purge walks heads sorted by abscissa and, for each intersecting pair
// matching pred, either removes the weaker head (doRemove) or excludes it
// from the stronger one. It returns the number of heads removed or
// exclusions created.
func (r *Resolver) Purge(heads []*sig.Inter, op string, pred func(a, b *sig.Inter) bool, doRemove bool) int {
	count := 0

leftLoop:
	for i := 0; i < len(heads)-1; i++ {
		left := heads[i]
		if left.Removed {
			continue
		}
		leftBox := left.Bounds
		xMax := leftBox.Max.X - 1

		for _, right := range heads[i+1:] {
			if right.Removed {
				continue
			}
			rightBox := right.Bounds

			if !leftBox.Overlaps(rightBox) {
				if rightBox.Min.X > xMax {
					break
				}
				continue
			}
			if !pred(left, right) {
				continue
			}

			var purged *sig.Inter
			if math.Abs(left.Grade-right.Grade) < gradeEpsilon {
				purged = r.purgedEquals(left, right)
			} else if left.Grade < right.Grade {
				purged = left
			} else {
				purged = right
			}
			kept := left
			if purged == left {
				kept = right
			}

			if doRemove {
				log.Debug("head purged", "op", op, "purged", purged.String(), "kept", kept.String())
				r.Graph.Remove(purged.ID)
				count++
				if purged == left {
					continue leftLoop
				}
			} else if _, created := r.Graph.InsertExclusion(purged.ID, kept.ID, sig.CauseOverlap); created {
				count++
			}
		}
	}
	return count
}

// purgedEquals picks which of two equally graded heads to purge, trying to
// preserve seed offset data: the head with fewer calibrated sides goes first,
// then the one deviating most from the sheet scale, then the most recent.
// When both heads are good and identical, the offsets of the purged head
// are copied into the kept one.
func (r *Resolver) purgedEquals(h1, h2 *sig.Inter) *sig.Inter {
	purged, kept := h2, h1
	n1, n2 := r.sides(h1), r.sides(h2)
	switch {
	case n1 < n2:
		purged, kept = h1, h2
	case n1 == n2:
		d1, d2 := r.deviation(h1), r.deviation(h2)
		if d1 > d2 || (d1 == d2 && h1.ID > h2.ID) {
			purged, kept = h1, h2
		}
	}

	if r.Tally != nil && purged.IsSameAs(kept) && purged.Grade >= r.GoodGrade && kept.Grade >= r.GoodGrade {
		for _, side := range []template.Side{template.Left, template.Right} {
			if _, ok := r.Tally.GetDx(kept.ID, side); ok {
				continue
			}
			if dx, ok := r.Tally.GetDx(purged.ID, side); ok {
				r.Tally.PutDx(kept, side, dx)
			}
		}
	}
	return purged
}

func (r *Resolver) sides(h *sig.Inter) int {
	if r.Tally == nil {
		return 0
	}
	return r.Tally.Sides(h.ID)
}

// deviation sums the distance of the head offsets to the calibrated ones.
func (r *Resolver) deviation(h *sig.Inter) float64 {
	if r.Tally == nil || r.Scale == nil {
		return 0
	}
	total := 0.0
	for _, side := range []template.Side{template.Left, template.Right} {
		dx, ok := r.Tally.GetDx(h.ID, side)
		if !ok {
			continue
		}
		if ref, ok := r.Scale.Dx(h.Shape, side); ok {
			total += math.Abs(dx - ref)
		}
	}
	return total
}

// Overlaps reports whether two heads of the same staff collide: their
// integer pitches differ by at most one and their boxes share enough width
// and area. Heads of different staves with intersecting boxes always collide.
func (r *Resolver) Overlaps(a, b *sig.Inter) bool {
	if a.Staff != b.Staff {
		return a.Bounds.Overlaps(b.Bounds)
	}
	if abs(a.Pitch-b.Pitch) > 1 {
		return false
	}
	common := a.Bounds.Intersect(b.Bounds)
	if common.Dx() <= 0 {
		return false
	}
	minArea := min(area(a.Bounds), area(b.Bounds))
	if minArea == 0 {
		return false
	}
	ratio := float64(area(common)) / float64(minArea)
	return float64(common.Dx()) > r.MaxOverlapDxRatio*float64(a.Bounds.Dx()) && ratio > r.MaxOverlapAreaRatio
}

// PurgeSmallBeams confronts each beam narrower than minBeamWidth with the
// heads it intersects: a head better than the beam contextual grade
// removes the beam, otherwise the head is removed. It returns the number of
// beams and heads removed.
func PurgeSmallBeams(g *sig.Graph, minBeamWidth int) (beams, heads int) {
	hs := g.Inters(sig.KindHead)
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Bounds.Min.Y < hs[j].Bounds.Min.Y })

	for _, beam := range g.Inters(sig.KindBeam) {
		if beam.Bounds.Dx() >= minBeamWidth {
			continue
		}
		beamGrade := g.ContextualGrade(beam.ID)
		bottom := beam.Bounds.Max.Y - 1

		for _, h := range hs {
			if h.Removed {
				continue
			}
			if h.Bounds.Overlaps(beam.Bounds) {
				if h.Grade > beamGrade {
					g.Remove(beam.ID)
					beams++
					break
				}
				g.Remove(h.ID)
				heads++
			} else if h.Bounds.Min.Y > bottom {
				break
			}
		}
	}

	if beams > 0 || heads > 0 {
		log.Debug("small beams purged", "system", g.System, "beams", beams, "heads", heads)
	}
	return beams, heads
}

// boost raises grade by ratio of what it lacks to reach 1.
func boost(grade, ratio float64) float64 {
	return grade + ratio*(1-grade)
}
