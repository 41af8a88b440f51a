package shape

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Shape
		wantErr bool
	}{
		{"NOTEHEAD_BLACK", NoteheadBlack, false},
		{"notehead_void_small", NoteheadVoidSmall, false},
		{" WHOLE_NOTE ", WholeNote, false},
		{"THIN_CONNECTOR", ThinConnector, false},
		{"TREBLE_CLEF", NoShape, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEveryShapeHasName(t *testing.T) {
	seen := map[string]Shape{}
	for s := NoShape; s < numShapes; s++ {
		name := s.String()
		if name == "" {
			t.Errorf("shape %d has no name", int(s))
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("name %q used by %d and %d", name, int(prev), int(s))
		}
		seen[name] = s
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Shape{"shape": NoteheadBlackSmall})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"shape":"NOTEHEAD_BLACK_SMALL"}` {
		t.Errorf("unexpected JSON %s", data)
	}
	var back map[string]Shape
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back["shape"] != NoteheadBlackSmall {
		t.Errorf("got %v", back["shape"])
	}
}

func TestTraits(t *testing.T) {
	if !WholeNote.IsStemLess() || NoteheadVoid.IsStemLess() {
		t.Error("stem-less trait mismatch")
	}
	if !NoteheadBlack.IsBlack() || NoteheadVoid.IsBlack() || Beam.IsBlack() {
		t.Error("black trait mismatch")
	}
	if NoteheadBlack.Void() != NoteheadVoid || NoteheadBlackSmall.Void() != NoteheadVoidSmall {
		t.Error("void counterpart mismatch")
	}
	if NoteheadVoid.Void() != NoShape {
		t.Error("hollow head should have no void counterpart")
	}
	if WholeNoteSmall.Normal() != WholeNote || Stem.Normal() != Stem {
		t.Error("normal counterpart mismatch")
	}
	if !ThickConnector.IsConnector() || ThickConnector.IsBarline() {
		t.Error("connector family mismatch")
	}
}

func TestTemplateSets(t *testing.T) {
	if n := len(TemplateNotes(false)); n != 3 {
		t.Errorf("TemplateNotes(false) has %d shapes, want 3", n)
	}
	if n := len(TemplateNotes(true)); n != 6 {
		t.Errorf("TemplateNotes(true) has %d shapes, want 6", n)
	}
	for _, s := range StemTemplateNotes(true) {
		if s.IsStemLess() {
			t.Errorf("%v should not be in stem set", s)
		}
	}
	for _, s := range VoidTemplateNotes(true) {
		if !s.IsHollow() {
			t.Errorf("%v should be hollow", s)
		}
	}
	for _, s := range BlackTemplateNotes(true) {
		if !s.IsBlack() {
			t.Errorf("%v should be black", s)
		}
	}
	// Sets must not alias each other.
	a := StemTemplateNotes(false)
	b := VoidTemplateNotes(false)
	a[0] = Breve
	if b[0] == Breve {
		t.Error("filtered sets share backing storage")
	}
}
