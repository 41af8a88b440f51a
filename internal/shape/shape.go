// Package shape enumerates the symbol shapes handled by head detection and
// the shape families used to drive scanning and resolution.
//
// Behavior that varies by shape is looked up in a static traits table
// instead of being spread over type switches.
package shape

import (
	"fmt"
	"strings"
)

// Shape identifies a symbol shape.
type Shape int

const (
	NoShape Shape = iota

	NoteheadBlack
	NoteheadBlackSmall
	NoteheadVoid
	NoteheadVoidSmall
	WholeNote
	WholeNoteSmall
	Breve

	Stem
	Ledger
	Beam
	BeamSmall
	BeamHook

	ThinBarline
	ThickBarline
	ThinConnector
	ThickConnector

	WholeRest
	HalfRest
	QuarterRest
	EighthRest
	SixteenthRest

	numShapes
)

type family int

const (
	famNone family = iota
	famHead
	famStem
	famLedger
	famBeam
	famBarline
	famConnector
	famRest
)

type traits struct {
	name     string
	family   family
	small    bool
	stemLess bool
	hollow   bool
	normal   Shape // full-size counterpart
	void     Shape // hollow counterpart of a black head
}

var table = [numShapes]traits{
	NoShape: {name: "NO_SHAPE"},

	NoteheadBlack:      {name: "NOTEHEAD_BLACK", family: famHead, normal: NoteheadBlack, void: NoteheadVoid},
	NoteheadBlackSmall: {name: "NOTEHEAD_BLACK_SMALL", family: famHead, small: true, normal: NoteheadBlack, void: NoteheadVoidSmall},
	NoteheadVoid:       {name: "NOTEHEAD_VOID", family: famHead, hollow: true, normal: NoteheadVoid},
	NoteheadVoidSmall:  {name: "NOTEHEAD_VOID_SMALL", family: famHead, small: true, hollow: true, normal: NoteheadVoid},
	WholeNote:          {name: "WHOLE_NOTE", family: famHead, stemLess: true, hollow: true, normal: WholeNote},
	WholeNoteSmall:     {name: "WHOLE_NOTE_SMALL", family: famHead, small: true, stemLess: true, hollow: true, normal: WholeNote},
	Breve:              {name: "BREVE", family: famHead, stemLess: true, hollow: true, normal: Breve},

	Stem:      {name: "STEM", family: famStem},
	Ledger:    {name: "LEDGER", family: famLedger},
	Beam:      {name: "BEAM", family: famBeam},
	BeamSmall: {name: "BEAM_SMALL", family: famBeam, small: true},
	BeamHook:  {name: "BEAM_HOOK", family: famBeam},

	ThinBarline:    {name: "THIN_BARLINE", family: famBarline},
	ThickBarline:   {name: "THICK_BARLINE", family: famBarline},
	ThinConnector:  {name: "THIN_CONNECTOR", family: famConnector},
	ThickConnector: {name: "THICK_CONNECTOR", family: famConnector},

	WholeRest:     {name: "WHOLE_REST", family: famRest},
	HalfRest:      {name: "HALF_REST", family: famRest},
	QuarterRest:   {name: "QUARTER_REST", family: famRest},
	EighthRest:    {name: "EIGHTH_REST", family: famRest},
	SixteenthRest: {name: "SIXTEENTH_REST", family: famRest},
}

var byName = func() map[string]Shape {
	m := make(map[string]Shape, numShapes)
	for s := NoShape; s < numShapes; s++ {
		m[table[s].name] = s
	}
	return m
}()

func (s Shape) valid() bool { return s >= NoShape && s < numShapes }

func (s Shape) String() string {
	if !s.valid() {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return table[s].name
}

// Parse returns the shape with the given name, case-insensitively.
func Parse(name string) (Shape, error) {
	if s, ok := byName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return NoShape, fmt.Errorf("unknown shape %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid shape %d", int(s))
	}
	return []byte(table[s].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Shape) traits() traits {
	if !s.valid() {
		return traits{}
	}
	return table[s]
}

// IsHead reports whether s is a note head.
func (s Shape) IsHead() bool { return s.traits().family == famHead }

// IsStemLess reports whether s is a head that never carries a stem.
func (s Shape) IsStemLess() bool { return s.traits().stemLess }

// IsStemHead reports whether s is a head expected to carry a stem.
func (s Shape) IsStemHead() bool { return s.IsHead() && !s.traits().stemLess }

// IsSmall reports whether s is a cue/grace sized shape.
func (s Shape) IsSmall() bool { return s.traits().small }

// IsHollow reports whether s is a head with an interior hole.
func (s Shape) IsHollow() bool { return s.traits().hollow }

// IsBlack reports whether s is a filled head.
func (s Shape) IsBlack() bool { return s.IsHead() && !s.traits().hollow }

func (s Shape) IsBeam() bool      { return s.traits().family == famBeam }
func (s Shape) IsBarline() bool   { return s.traits().family == famBarline }
func (s Shape) IsConnector() bool { return s.traits().family == famConnector }
func (s Shape) IsRest() bool      { return s.traits().family == famRest }

// Normal returns the full-size counterpart of a small shape, s otherwise.
func (s Shape) Normal() Shape {
	if n := s.traits().normal; n != NoShape {
		return n
	}
	return s
}

// Void returns the hollow counterpart of a black head, or NoShape.
func (s Shape) Void() Shape { return s.traits().void }

// Heads lists every head shape.
var Heads = []Shape{Breve, WholeNote, WholeNoteSmall, NoteheadBlack, NoteheadBlackSmall, NoteheadVoid, NoteheadVoidSmall}

// TemplateNotes returns the head shapes handled by template matching.
func TemplateNotes(small bool) []Shape {
	if small {
		return []Shape{NoteheadBlack, NoteheadVoid, WholeNote, NoteheadBlackSmall, NoteheadVoidSmall, WholeNoteSmall}
	}
	return []Shape{NoteheadBlack, NoteheadVoid, WholeNote}
}

// StemTemplateNotes returns the stem-based head shapes handled by template matching.
func StemTemplateNotes(small bool) []Shape {
	return filter(TemplateNotes(small), Shape.IsStemHead)
}

// VoidTemplateNotes returns the hollow head shapes handled by template matching.
func VoidTemplateNotes(small bool) []Shape {
	return filter(TemplateNotes(small), Shape.IsHollow)
}

// BlackTemplateNotes returns the filled head shapes handled by template matching.
func BlackTemplateNotes(small bool) []Shape {
	return filter(TemplateNotes(small), Shape.IsBlack)
}

func filter(in []Shape, keep func(Shape) bool) []Shape {
	out := in[:0:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
