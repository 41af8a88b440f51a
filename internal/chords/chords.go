// Package chords groups the finished heads of a system into chords.
//
// Heads are first linked to the stem seeds standing on their sides. Heads
// sharing a stem form one chord; a head standing between a left and a right
// stem is split into two mirrored heads, one per stem chord. Heads without
// stem are stacked into vertical chords. Every rest gets its own chord.
// Chords are then dispatched to measures and linked to the beams of their
// stem.
package chords

import (
	"image"
	"log/slog"
	"sort"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// maxWholeGap is the largest pitch step between two stacked stem-less heads
// of one chord.
const maxWholeGap = 2

type params struct {
	xInGap            int
	xOutGap           int
	yGap              int
	anchorHeightRatio float64
}

func newParams(cfg *config.Config, sc sheet.Scale) params {
	return params{
		xInGap:            sc.ToPixels(cfg.StemXInGapFrac),
		xOutGap:           sc.ToPixels(cfg.StemXOutGapFrac),
		yGap:              sc.ToPixels(cfg.StemYGapFrac),
		anchorHeightRatio: cfg.StemAnchorHeight,
	}
}

// Stats counts what the assembler did.
type Stats struct {
	Links        int `json:"links"`
	Mirrors      int `json:"mirrors"`
	DeletedStems int `json:"deleted_stems"`
	HeadChords   int `json:"head_chords"`
	SmallChords  int `json:"small_chords"`
	RestChords   int `json:"rest_chords"`
	BeamLinks    int `json:"beam_links"`
}

// Assembler builds the chords of one system.
type Assembler struct {
	sys   *sheet.System
	graph *sig.Graph
	p     params
	log   *slog.Logger

	stemChords map[sig.ID]*sig.Inter // stem -> chord, current part only
	chordStems map[sig.ID]sig.ID     // chord -> stem

	stats Stats
}

// NewAssembler creates the chord assembler of sys working on graph g.
func NewAssembler(sys *sheet.System, g *sig.Graph, cfg *config.Config) *Assembler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Assembler{
		sys:        sys,
		graph:      g,
		p:          newParams(cfg, sys.Sheet().Scale),
		log:        log.With("system", sys.ID, "op", "chords"),
		chordStems: make(map[sig.ID]sig.ID),
	}
}

// Build links heads to stems, then builds head chords and rest chords,
// assigns them to measures and links them to beams.
func (a *Assembler) Build() Stats {
	a.stats.Links = a.LinkStems()
	a.BuildHeadChords()
	a.BuildRestChords()
	a.dispatchChords()
	a.stats.BeamLinks = a.linkBeams()

	a.log.Debug("chords built",
		"links", a.stats.Links,
		"mirrors", a.stats.Mirrors,
		"head_chords", a.stats.HeadChords,
		"small_chords", a.stats.SmallChords,
		"rest_chords", a.stats.RestChords)
	return a.stats
}

// BuildHeadChords puts every live head into exactly one chord. Stem chords
// are shared by all staves of a part.
func (a *Assembler) BuildHeadChords() {
	for _, staves := range a.partStaves() {
		a.stemChords = make(map[sig.ID]*sig.Inter)

		for _, st := range staves {
			heads := a.graph.StaffInters(st.ID, sig.KindHead)
			sort.SliceStable(heads, func(i, j int) bool {
				return a.graph.BoundsOf(heads[i].ID).Min.X < a.graph.BoundsOf(heads[j].ID).Min.X
			})
			for _, h := range heads {
				if h.Chord == 0 {
					a.connectHead(h, st)
				}
			}
		}

		// Heads without stem, or orphaned by a deleted stem.
		for _, st := range staves {
			var whole []*sig.Inter
			for _, h := range a.graph.StaffInters(st.ID, sig.KindHead) {
				if h.Chord == 0 {
					whole = append(whole, h)
				}
			}
			a.detectWholeVerticals(whole)
		}
	}
}

// partStaves groups the staves of the system by part, in system order.
// Staves left out of every part stand alone.
func (a *Assembler) partStaves() [][]*sheet.Staff {
	var groups [][]*sheet.Staff
	seen := make(map[int]bool)
	for _, part := range a.sys.Parts {
		var staves []*sheet.Staff
		for _, st := range a.sys.Staves {
			for _, id := range part.Staves {
				if st.ID == id && !seen[id] {
					staves = append(staves, st)
					seen[id] = true
				}
			}
		}
		if len(staves) > 0 {
			groups = append(groups, staves)
		}
	}
	for _, st := range a.sys.Staves {
		if !seen[st.ID] {
			groups = append(groups, []*sheet.Staff{st})
		}
	}
	return groups
}

// connectHead puts h into the chord of each of its stems. It returns false
// when h has no stem.
func (a *Assembler) connectHead(h *sig.Inter, st *sheet.Staff) bool {
	rels := a.stemRelations(h)

	if len(rels) == 2 {
		if poor := a.checkCanonicalShare(rels); poor != nil {
			a.log.Info("deleting stem", "stem", poor.B, "side", poor.Side, "head", h.ID)
			a.removeStem(poor.B)
			rels = a.stemRelations(h)
		}
	}
	if len(rels) == 0 {
		return false
	}

	shared := len(rels) == 2
	for _, rel := range rels {
		head := h
		if shared && rel.Side == template.Right {
			head = a.duplicateHead(h, rel)
		}
		a.joinStemChord(head, rel.B, st)
	}
	return true
}

// checkCanonicalShare checks a head shared by a left and a right stem: the
// left stem must go down from the head and the right stem up to it. When
// this does not hold, the relation to the poorer stem is returned.
func (a *Assembler) checkCanonicalShare(rels []*sig.Relation) *sig.Relation {
	left, right := rels[0], rels[1]
	if left.Portion == sig.StemTop && right.Portion == sig.StemBottom {
		return nil
	}
	ls, rs := a.graph.Inter(left.B), a.graph.Inter(right.B)
	if ls == nil || rs == nil {
		return nil
	}
	if ls.Grade < rs.Grade {
		return left
	}
	return right
}

// removeStem deletes a stem and the chord built on it. Heads of that chord
// are released.
func (a *Assembler) removeStem(stem sig.ID) {
	if chord, ok := a.stemChords[stem]; ok {
		for _, m := range chord.Members {
			if in := a.graph.Inter(m); in != nil {
				in.Chord = 0
			}
		}
		delete(a.stemChords, stem)
		delete(a.chordStems, chord.ID)
		a.graph.Remove(chord.ID)
		a.countChord(chord, -1)
	}
	a.graph.Remove(stem)
	a.stats.DeletedStems++
}

// duplicateHead creates the mirror of h for its right stem. The mirror has
// no bounds of its own; the graph reports those of its twin.
func (a *Assembler) duplicateHead(h *sig.Inter, right *sig.Relation) *sig.Inter {
	mirror := &sig.Inter{
		Kind:     sig.KindHead,
		Shape:    h.Shape,
		Grade:    h.Grade,
		Staff:    h.Staff,
		Pitch:    h.Pitch,
		Distance: h.Distance,
		Source:   h.Source,
		Twin:     sig.MirroredWith(h.ID),
	}
	a.graph.Add(mirror)
	h.Twin = sig.MirroredWith(mirror.ID)
	a.graph.Reattach(right, h.ID, mirror.ID)
	a.stats.Mirrors++
	return mirror
}

func (a *Assembler) joinStemChord(head *sig.Inter, stem sig.ID, st *sheet.Staff) {
	chord := a.stemChords[stem]
	if chord == nil {
		chord = a.newChord(head, st.ID)
		a.stemChords[stem] = chord
		a.chordStems[chord.ID] = stem
	}
	addMember(chord, head)
}

// detectWholeVerticals groups the heads left without a chord into vertical
// stacks. Heads outranked by an excluding competitor are stacked apart, so
// that a weak candidate never bridges two genuine heads.
func (a *Assembler) detectWholeVerticals(heads []*sig.Inter) {
	var firm, contested []*sig.Inter
	for _, h := range heads {
		if a.outranked(h) {
			contested = append(contested, h)
		} else {
			firm = append(firm, h)
		}
	}
	a.stackVerticals(firm)
	a.stackVerticals(contested)
}

// stackVerticals stacks heads top down: a head joins the chord being grown
// when it lies at most maxWholeGap steps below the last member, overlaps the
// chord abscissae and is excluded by no member. Small heads never mix with
// standard ones.
func (a *Assembler) stackVerticals(heads []*sig.Inter) {
	sort.SliceStable(heads, func(i, j int) bool {
		return a.graph.BoundsOf(heads[i].ID).Min.Y < a.graph.BoundsOf(heads[j].ID).Min.Y
	})

	for i, h1 := range heads {
		if h1.Chord != 0 {
			continue
		}
		chord := a.newChord(h1, h1.Staff)
		addMember(chord, h1)
		box := a.graph.BoundsOf(h1.ID)
		p1 := h1.Pitch

		for _, h2 := range heads[i+1:] {
			if h2.Chord != 0 || h2.Shape.IsSmall() != h1.Shape.IsSmall() {
				continue
			}
			if h2.Pitch > p1+maxWholeGap {
				break
			}
			if a.excludedFrom(chord, h2) {
				continue
			}
			b2 := a.graph.BoundsOf(h2.ID)
			if xOverlap(box, b2) > 0 {
				addMember(chord, h2)
				box = box.Union(b2)
				p1 = h2.Pitch
			}
		}
	}
}

// outranked tells whether h is excluded by a live head of better grade.
func (a *Assembler) outranked(h *sig.Inter) bool {
	for _, r := range a.graph.Relations(h.ID, sig.RelExclusion) {
		other := r.A
		if other == h.ID {
			other = r.B
		}
		if o := a.graph.Inter(other); o != nil && !o.Removed && o.Grade > h.Grade {
			return true
		}
	}
	return false
}

// excludedFrom tells whether an exclusion links h to a member of chord.
func (a *Assembler) excludedFrom(chord, h *sig.Inter) bool {
	for _, m := range chord.Members {
		if a.graph.Excluded(m, h.ID) {
			return true
		}
	}
	return false
}

// BuildRestChords wraps every rest in a chord of its own, on the staff the
// rest was attached to.
func (a *Assembler) BuildRestChords() {
	for _, rest := range a.graph.Inters(sig.KindRest) {
		if rest.Chord != 0 {
			continue
		}
		chord := &sig.Inter{Kind: sig.KindRestChord, Staff: rest.Staff}
		a.graph.Add(chord)
		addMember(chord, rest)
		a.stats.RestChords++
	}
}

func (a *Assembler) newChord(head *sig.Inter, staff int) *sig.Inter {
	kind := sig.KindHeadChord
	if head.Shape.IsSmall() {
		kind = sig.KindSmallChord
	}
	chord := &sig.Inter{Kind: kind, Staff: staff}
	a.graph.Add(chord)
	a.countChord(chord, 1)
	return chord
}

func (a *Assembler) countChord(chord *sig.Inter, n int) {
	if chord.Kind == sig.KindSmallChord {
		a.stats.SmallChords += n
	} else {
		a.stats.HeadChords += n
	}
}

func addMember(chord, in *sig.Inter) {
	chord.Members = append(chord.Members, in.ID)
	in.Chord = chord.ID
}

// dispatchChords completes every chord geometry and assigns it to the
// measure found at its center abscissa.
func (a *Assembler) dispatchChords() {
	for _, chord := range a.graph.Inters(sig.KindHeadChord, sig.KindSmallChord, sig.KindRestChord) {
		a.finish(chord)
		if m := a.sys.MeasureAt(float64(chord.Center().X)); m != nil {
			chord.Measure = m.ID
		}
	}
}

// finish sorts the chord members top down and sets the chord bounds, stem
// included, and grade, the best of its members.
func (a *Assembler) finish(chord *sig.Inter) {
	sort.SliceStable(chord.Members, func(i, j int) bool {
		return a.graph.BoundsOf(chord.Members[i]).Min.Y < a.graph.BoundsOf(chord.Members[j]).Min.Y
	})

	var box image.Rectangle
	grade := 0.0
	for _, id := range chord.Members {
		box = box.Union(a.graph.BoundsOf(id))
		if m := a.graph.Inter(id); m != nil && m.Grade > grade {
			grade = m.Grade
		}
	}
	if stem, ok := a.chordStems[chord.ID]; ok {
		box = box.Union(a.graph.BoundsOf(stem))
	}
	chord.Bounds = box
	chord.Grade = grade
}

// linkBeams links every stem chord to the beams of its stem.
func (a *Assembler) linkBeams() int {
	ids := make([]sig.ID, 0, len(a.chordStems))
	for id := range a.chordStems {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	n := 0
	for _, id := range ids {
		for _, r := range a.graph.Relations(a.chordStems[id], sig.RelBeamStem) {
			beam := a.graph.Inter(r.A)
			if beam == nil || beam.Removed {
				continue
			}
			if _, created := a.graph.AddRelation(sig.Relation{Kind: sig.RelChordBeam, A: id, B: beam.ID}); created {
				n++
			}
		}
	}
	return n
}

// Stem returns the stem of a stem chord.
func (a *Assembler) Stem(chord sig.ID) (sig.ID, bool) {
	stem, ok := a.chordStems[chord]
	return stem, ok
}

func xOverlap(a, b image.Rectangle) int {
	return min(a.Max.X, b.Max.X) - max(a.Min.X, b.Min.X)
}
