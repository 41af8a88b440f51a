package sig

import (
	"fmt"
	"image"

	"github.com/ironsheep/omr-heads/internal/shape"
)

// ID identifies an interpretation within its graph. Zero means none.
type ID int

// Kind is the class of an interpretation.
type Kind int

const (
	KindHead Kind = iota + 1
	KindStem
	KindBeam
	KindBarline
	KindConnector
	KindRest
	KindHeadChord
	KindSmallChord
	KindRestChord
)

var kindNames = map[Kind]string{
	KindHead:       "head",
	KindStem:       "stem",
	KindBeam:       "beam",
	KindBarline:    "barline",
	KindConnector:  "connector",
	KindRest:       "rest",
	KindHeadChord:  "head_chord",
	KindSmallChord: "small_chord",
	KindRestChord:  "rest_chord",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsChord reports whether k is one of the chord kinds.
func (k Kind) IsChord() bool {
	return k == KindHeadChord || k == KindSmallChord || k == KindRestChord
}

// Twin tells whether a head stands alone or is the mirror of another head
// shared by two stems.
type Twin struct {
	mirror ID
}

// Standalone returns the twin state of an ordinary head.
func Standalone() Twin { return Twin{} }

// MirroredWith returns the twin state of a head paired with id.
func MirroredWith(id ID) Twin { return Twin{mirror: id} }

// Mirror returns the paired head, if any.
func (t Twin) Mirror() (ID, bool) { return t.mirror, t.mirror != 0 }

// Inter is one interpretation: a candidate symbol with a confidence grade.
type Inter struct {
	ID     ID
	Kind   Kind
	Shape  shape.Shape
	Bounds image.Rectangle
	Grade  float64

	// Staff is the owning staff id, zero when none.
	Staff int

	// Pitch is the head position in half interlines from the staff middle line.
	Pitch int

	// Distance is the template matching distance of a head.
	Distance float64

	// Source is the upstream layout id (glyph, bar, beam, rest), zero when none.
	Source int

	Frozen  bool
	Removed bool
	Twin    Twin

	// Chord is the chord containing this head or rest.
	Chord ID

	// Members lists the heads or rests of a chord, top down.
	Members []ID

	// Measure is the measure id of a chord.
	Measure int
}

// Center returns the center of the inter bounds.
func (in *Inter) Center() image.Point {
	b := in.Bounds
	return image.Pt((b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)
}

func (in *Inter) String() string {
	return fmt.Sprintf("%v#%d(%v g=%.3f)", in.Kind, in.ID, in.Shape, in.Grade)
}

// IsSameAs reports whether two inters have the same shape and bounds.
func (in *Inter) IsSameAs(other *Inter) bool {
	return in.Shape == other.Shape && in.Bounds == other.Bounds
}
