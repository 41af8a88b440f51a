// Package sheet models the page layout produced by the upstream grid and
// glyph extraction steps: systems, parts, staves, ledgers, stem seeds,
// head spots, and the competing symbols head detection must respect.
//
// Layouts are loaded from JSON with LoadLayout. After loading, every
// staff knows its system, every line is fitted, and the sheet carries an id.
package sheet

import (
	"errors"
	"image"
	"math"

	"github.com/ironsheep/omr-heads/internal/shape"
)

// ErrNoStaff is returned when a layout defines no staff at all.
var ErrNoStaff = errors.New("layout contains no staff")

// Scale holds the sheet-wide dimensions every distance is derived from.
type Scale struct {
	// Interline is the vertical distance between staff lines, in pixels.
	Interline int `json:"interline"`

	// MaxStem is the maximum stem thickness, in pixels.
	MaxStem int `json:"max_stem"`

	// SmallHeads enables detection of cue/grace sized heads.
	SmallHeads bool `json:"small_heads,omitempty"`
}

// ToPixels converts a fraction of interline into pixels.
func (s Scale) ToPixels(frac float64) int {
	return int(math.Round(frac * float64(s.Interline)))
}

// ToPixelsF converts a fraction of interline into fractional pixels.
func (s Scale) ToPixelsF(frac float64) float64 {
	return frac * float64(s.Interline)
}

// Sheet is one page of music.
type Sheet struct {
	ID      string    `json:"id"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Scale   Scale     `json:"scale"`
	Systems []*System `json:"systems"`
}

// Staves returns all staves of the sheet, system by system.
func (s *Sheet) Staves() []*Staff {
	var out []*Staff
	for _, sys := range s.Systems {
		out = append(out, sys.Staves...)
	}
	return out
}

// System is a horizontal band of staves played together.
type System struct {
	ID       int        `json:"id"`
	Staves   []*Staff   `json:"staves"`
	Parts    []*Part    `json:"parts,omitempty"`
	Seeds    []*Glyph   `json:"seeds,omitempty"`
	Spots    []*Glyph   `json:"spots,omitempty"`
	Bars     []*Bar     `json:"bars,omitempty"`
	Beams    []*Beam    `json:"beams,omitempty"`
	Rests    []*Rest    `json:"rests,omitempty"`
	Measures []*Measure `json:"measures,omitempty"`

	sheet *Sheet
}

// Sheet returns the containing sheet.
func (sys *System) Sheet() *Sheet { return sys.sheet }

// Staff returns the staff with the given id, or nil.
func (sys *System) Staff(id int) *Staff {
	for _, st := range sys.Staves {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// PartOf returns the part containing the staff, or nil.
func (sys *System) PartOf(st *Staff) *Part {
	for _, p := range sys.Parts {
		for _, id := range p.Staves {
			if id == st.ID {
				return p
			}
		}
	}
	return nil
}

// Seed returns the stem seed with the given id, or nil.
func (sys *System) Seed(id int) *Glyph {
	for _, g := range sys.Seeds {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// ClosestStaff returns the staff whose vertical extent is closest to p.
func (sys *System) ClosestStaff(p Point) *Staff {
	var best *Staff
	bestDist := math.MaxFloat64
	for _, st := range sys.Staves {
		top := st.FirstLine().YAt(p.X)
		bottom := st.LastLine().YAt(p.X)
		var d float64
		switch {
		case p.Y < top:
			d = top - p.Y
		case p.Y > bottom:
			d = p.Y - bottom
		}
		if d < bestDist {
			best, bestDist = st, d
		}
	}
	return best
}

// MeasureAt returns the measure whose abscissa range contains x. When none
// does, the measure whose range is nearest is returned. Nil when the system
// has no measure.
func (sys *System) MeasureAt(x float64) *Measure {
	var best *Measure
	bestDist := math.MaxFloat64
	for _, m := range sys.Measures {
		var d float64
		switch {
		case x < float64(m.Left):
			d = float64(m.Left) - x
		case x > float64(m.Right):
			d = x - float64(m.Right)
		}
		if d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// Part groups the staves of one instrument. Merged parts (piano grand staff)
// have two staves sharing ledger space.
type Part struct {
	ID     int   `json:"id"`
	Staves []int `json:"staves"`
	Merged bool  `json:"merged,omitempty"`
}

// Measure is an abscissa range of a system.
type Measure struct {
	ID    int `json:"id"`
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Bar is a barline or connector candidate detected upstream.
type Bar struct {
	ID     int             `json:"id"`
	Shape  shape.Shape     `json:"shape"`
	Bounds image.Rectangle `json:"bounds"`
	Grade  float64         `json:"grade"`
	Frozen bool            `json:"frozen,omitempty"`
}

// Beam is a beam candidate detected upstream, with the stem seeds it touches.
type Beam struct {
	ID        int             `json:"id"`
	Shape     shape.Shape     `json:"shape"`
	Bounds    image.Rectangle `json:"bounds"`
	Grade     float64         `json:"grade"`
	Frozen    bool            `json:"frozen,omitempty"`
	StemSeeds []int           `json:"stem_seeds,omitempty"`
}

// Rest is a rest symbol detected upstream.
type Rest struct {
	ID     int             `json:"id"`
	Shape  shape.Shape     `json:"shape"`
	Bounds image.Rectangle `json:"bounds"`
	Grade  float64         `json:"grade"`
}
