package heads

import (
	"image"

	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
)

// Populate loads the upstream symbols of sys into g: barlines, connectors,
// beams, rests and one stem per stem seed, with beam-stem supports for the
// seeds each beam touches. Seeds without grade get stemGrade.
func Populate(g *sig.Graph, sys *sheet.System, stemGrade float64) {
	for _, b := range sys.Bars {
		kind := sig.KindBarline
		if b.Shape.IsConnector() {
			kind = sig.KindConnector
		}
		g.Add(&sig.Inter{Kind: kind, Shape: b.Shape, Bounds: b.Bounds, Grade: b.Grade, Source: b.ID, Frozen: b.Frozen})
	}

	stems := make(map[int]sig.ID, len(sys.Seeds))
	for _, seed := range sys.Seeds {
		grade := seed.Grade
		if grade == 0 {
			grade = stemGrade
		}
		stems[seed.ID] = g.Add(&sig.Inter{Kind: sig.KindStem, Shape: shape.Stem, Bounds: seed.Bounds(), Grade: grade, Source: seed.ID})
	}

	for _, b := range sys.Beams {
		id := g.Add(&sig.Inter{Kind: sig.KindBeam, Shape: b.Shape, Bounds: b.Bounds, Grade: b.Grade, Source: b.ID, Frozen: b.Frozen})
		for _, seedID := range b.StemSeeds {
			stem, ok := stems[seedID]
			if !ok {
				continue
			}
			g.AddRelation(sig.Relation{Kind: sig.RelBeamStem, A: id, B: stem})
		}
	}

	for _, r := range sys.Rests {
		in := &sig.Inter{Kind: sig.KindRest, Shape: r.Shape, Bounds: r.Bounds, Grade: r.Grade, Source: r.ID}
		if st := sys.ClosestStaff(center(r.Bounds)); st != nil {
			in.Staff = st.ID
		}
		g.Add(in)
	}
}

// systemBarAreas returns the boxes of frozen barlines and connectors.
func systemBarAreas(g *sig.Graph) []image.Rectangle {
	var areas []image.Rectangle
	for _, in := range g.Inters(sig.KindBarline, sig.KindConnector) {
		if in.Frozen {
			areas = append(areas, in.Bounds)
		}
	}
	return areas
}

// systemCompetitors returns the good symbols heads may not overlap. Bars
// and connectors thinner than a stem are ignored since they may be stems.
// A beam competes only when its group holds a long beam.
func systemCompetitors(g *sig.Graph, p params) []*sig.Inter {
	var comps []*sig.Inter
	for _, in := range g.Inters(sig.KindBarline, sig.KindConnector, sig.KindBeam, sig.KindRest) {
		if in.Grade < p.goodGrade {
			continue
		}
		switch in.Kind {
		case sig.KindBarline, sig.KindConnector:
			if in.Bounds.Dx() <= p.maxStem {
				continue
			}
		case sig.KindBeam:
			if !hasLongBeam(g, in, p.minBeamWidth) {
				continue
			}
		}
		comps = append(comps, in)
	}
	sortByAbscissa(comps)
	return comps
}

// hasLongBeam reports whether the group of beam, beams linked through shared
// stems, holds a beam at least minWidth wide.
func hasLongBeam(g *sig.Graph, beam *sig.Inter, minWidth int) bool {
	seen := map[sig.ID]bool{beam.ID: true}
	queue := []*sig.Inter{beam}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if b.Bounds.Dx() >= minWidth {
			return true
		}
		for _, r := range g.Relations(b.ID, sig.RelBeamStem) {
			for _, r2 := range g.Relations(r.Other(b.ID), sig.RelBeamStem) {
				other := r2.Other(r.Other(b.ID))
				if seen[other] {
					continue
				}
				seen[other] = true
				if in := g.Inter(other); in != nil && !in.Removed {
					queue = append(queue, in)
				}
			}
		}
	}
	return false
}

func center(r image.Rectangle) sheet.Point {
	return sheet.Point{X: float64(r.Min.X+r.Max.X) / 2, Y: float64(r.Min.Y+r.Max.Y) / 2}
}
