package sig

import (
	"fmt"

	"github.com/ironsheep/omr-heads/internal/template"
)

// RelKind is the class of a relation between two inters.
type RelKind int

const (
	// RelExclusion states that both inters cannot coexist.
	RelExclusion RelKind = iota + 1

	// RelHeadStem links a head (A) to a stem (B).
	RelHeadStem

	// RelBeamStem links a beam (A) to a stem (B).
	RelBeamStem

	// RelChordBeam links a chord (A) to a beam (B).
	RelChordBeam
)

func (k RelKind) String() string {
	switch k {
	case RelExclusion:
		return "exclusion"
	case RelHeadStem:
		return "head_stem"
	case RelBeamStem:
		return "beam_stem"
	case RelChordBeam:
		return "chord_beam"
	}
	return fmt.Sprintf("RelKind(%d)", int(k))
}

func (k RelKind) symmetric() bool { return k == RelExclusion }

func (k RelKind) supports() bool { return k == RelHeadStem || k == RelBeamStem }

// Cause explains an exclusion.
type Cause int

const (
	CauseOverlap Cause = iota + 1
	CauseIncompatible
)

func (c Cause) String() string {
	switch c {
	case CauseOverlap:
		return "overlap"
	case CauseIncompatible:
		return "incompatible"
	}
	return fmt.Sprintf("Cause(%d)", int(c))
}

// StemPortion is the part of a stem a head is attached to.
type StemPortion int

const (
	StemTop StemPortion = iota + 1
	StemMiddle
	StemBottom
)

func (p StemPortion) String() string {
	switch p {
	case StemTop:
		return "STEM_TOP"
	case StemMiddle:
		return "STEM_MIDDLE"
	case StemBottom:
		return "STEM_BOTTOM"
	}
	return fmt.Sprintf("StemPortion(%d)", int(p))
}

// Relation is an edge of the graph.
type Relation struct {
	Kind RelKind
	A, B ID

	// Cause is set for exclusions.
	Cause Cause

	// Side is the head side the stem stands on, for head-stem relations.
	Side template.Side

	// Portion is the stem portion the head lies on, for head-stem relations.
	Portion StemPortion

	// Ratio is the support ratio; values above 1 raise the partner contextual grade.
	Ratio float64
}

// Other returns the inter at the other end of r.
func (r *Relation) Other(id ID) ID {
	if r.A == id {
		return r.B
	}
	return r.A
}

func (r *Relation) involves(id ID) bool { return r.A == id || r.B == id }
