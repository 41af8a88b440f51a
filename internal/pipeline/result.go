package pipeline

import (
	"image"

	"github.com/ironsheep/omr-heads/internal/chords"
	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/heads"
	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sig"
)

// Result is the outcome of Run for one sheet.
type Result struct {
	SheetID string               `json:"sheet_id"`
	Systems []*SystemResult      `json:"systems"`
	Scale   *heads.HeadSeedScale `json:"scale,omitempty"`
	Failed  []SystemFailure      `json:"failed,omitempty"`
	Field   *distance.Stats      `json:"field,omitempty"`
}

// SystemFailure reports a system whose processing was aborted.
type SystemFailure struct {
	System int    `json:"system"`
	Error  string `json:"error"`
}

// SystemResult holds the heads and chords of one system.
type SystemResult struct {
	System     int          `json:"system"`
	Heads      []Head       `json:"heads"`
	Chords     []Chord      `json:"chords"`
	Exclusions []Exclusion  `json:"exclusions,omitempty"`
	SeedsPerf  heads.Perf   `json:"seeds_perf"`
	RangePerf  heads.Perf   `json:"range_perf"`
	ChordStats chords.Stats `json:"chord_stats"`

	// Graph is the system interpretation graph, kept for callers needing
	// more than the summary.
	Graph *sig.Graph `json:"-"`
}

// Box is a rectangle as origin and size.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBox converts an image rectangle.
func NewBox(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect converts the box back to an image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Head is a detected head.
type Head struct {
	ID       int         `json:"id"`
	Shape    shape.Shape `json:"shape"`
	Bounds   Box         `json:"bounds"`
	Grade    float64     `json:"grade"`
	Staff    int         `json:"staff"`
	Pitch    int         `json:"pitch"`
	Distance float64     `json:"distance"`
	Seed     int         `json:"seed,omitempty"`
	Mirror   int         `json:"mirror,omitempty"`
	Chord    int         `json:"chord,omitempty"`
}

// Chord is a group of heads, or a rest, with its measure.
type Chord struct {
	ID      int     `json:"id"`
	Kind    string  `json:"kind"`
	Staff   int     `json:"staff"`
	Measure int     `json:"measure,omitempty"`
	Bounds  Box     `json:"bounds"`
	Grade   float64 `json:"grade"`
	Members []int   `json:"members"`
	Beams   []int   `json:"beams,omitempty"`
}

// Exclusion is a mutual exclusion between two inters.
type Exclusion struct {
	A     int    `json:"a"`
	B     int    `json:"b"`
	Cause string `json:"cause"`
}

func newSystemResult(r *systemRun, cs chords.Stats) *SystemResult {
	g := r.graph
	out := &SystemResult{
		System:     r.sys.ID,
		SeedsPerf:  r.seeds,
		RangePerf:  r.rng,
		ChordStats: cs,
		Graph:      g,
	}

	for _, h := range g.Inters(sig.KindHead) {
		head := Head{
			ID:       int(h.ID),
			Shape:    h.Shape,
			Bounds:   NewBox(g.BoundsOf(h.ID)),
			Grade:    h.Grade,
			Staff:    h.Staff,
			Pitch:    h.Pitch,
			Distance: h.Distance,
			Seed:     h.Source,
			Chord:    int(h.Chord),
		}
		if m, ok := h.Twin.Mirror(); ok {
			head.Mirror = int(m)
		}
		out.Heads = append(out.Heads, head)
	}

	for _, c := range g.Inters(sig.KindHeadChord, sig.KindSmallChord, sig.KindRestChord) {
		chord := Chord{
			ID:      int(c.ID),
			Kind:    c.Kind.String(),
			Staff:   c.Staff,
			Measure: c.Measure,
			Bounds:  NewBox(c.Bounds),
			Grade:   c.Grade,
		}
		for _, m := range c.Members {
			chord.Members = append(chord.Members, int(m))
		}
		for _, rel := range g.Relations(c.ID, sig.RelChordBeam) {
			chord.Beams = append(chord.Beams, int(rel.B))
		}
		out.Chords = append(out.Chords, chord)
	}

	for _, rel := range g.AllRelations(sig.RelExclusion) {
		out.Exclusions = append(out.Exclusions, Exclusion{A: int(rel.A), B: int(rel.B), Cause: rel.Cause.String()})
	}
	return out
}

// HeadCount returns the number of heads over all systems.
func (r *Result) HeadCount() int {
	n := 0
	for _, s := range r.Systems {
		n += len(s.Heads)
	}
	return n
}

// ChordCount returns the number of chords over all systems.
func (r *Result) ChordCount() int {
	n := 0
	for _, s := range r.Systems {
		n += len(s.Chords)
	}
	return n
}
