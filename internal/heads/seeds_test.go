package heads

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

func addHead(g *sig.Graph, s shape.Shape) *sig.Inter {
	h := &sig.Inter{Kind: sig.KindHead, Shape: s, Grade: 0.9, Staff: 1}
	g.Add(h)
	return h
}

func TestTallyPutGet(t *testing.T) {
	g := sig.NewGraph(1)
	h := addHead(g, shape.NoteheadBlack)
	tally := NewHeadSeedTally()

	if _, ok := tally.GetDx(h.ID, template.Left); ok {
		t.Fatal("empty tally should have no offset")
	}

	tally.PutDx(h, template.Right, 2.5)
	if dx, ok := tally.GetDx(h.ID, template.Right); !ok || dx != 2.5 {
		t.Errorf("GetDx(RIGHT) = %v, %v, want 2.5, true", dx, ok)
	}
	if _, ok := tally.GetDx(h.ID, template.Left); ok {
		t.Error("LEFT offset should be absent")
	}
	if got := tally.Sides(h.ID); got != 1 {
		t.Errorf("Sides = %d, want 1", got)
	}

	tally.PutDx(h, template.Left, -1)
	if got := tally.Sides(h.ID); got != 2 {
		t.Errorf("Sides = %d, want 2", got)
	}
}

func TestTallyPurgeRemovedHeads(t *testing.T) {
	g := sig.NewGraph(1)
	kept := addHead(g, shape.NoteheadBlack)
	gone := addHead(g, shape.NoteheadBlack)

	tally := NewHeadSeedTally()
	tally.PutDx(kept, template.Right, 1)
	tally.PutDx(gone, template.Right, 1)

	g.Remove(gone.ID)
	if n := tally.PurgeRemovedHeads(g); n != 1 {
		t.Errorf("PurgeRemovedHeads = %d, want 1", n)
	}
	if tally.Len() != 1 {
		t.Errorf("Len = %d, want 1", tally.Len())
	}
	if _, ok := tally.GetDx(gone.ID, template.Right); ok {
		t.Error("removed head still tallied")
	}
}

func TestAnalyzeQuorum(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		quorum  int
		want    bool
	}{
		{"below quorum", 9, 10, false},
		{"at quorum", 10, 10, true},
		{"above quorum", 30, 10, true},
		{"no sample", 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sig.NewGraph(1)
			tally := NewHeadSeedTally()
			for i := 0; i < tt.samples; i++ {
				tally.PutDx(addHead(g, shape.NoteheadBlack), template.Right, 3)
			}

			scale := Analyze([]*HeadSeedTally{tally}, tt.quorum)
			_, ok := scale.Dx(shape.NoteheadBlack, template.Right)
			if ok != tt.want {
				t.Errorf("Dx present = %v, want %v", ok, tt.want)
			}
			if _, ok := scale.Dx(shape.NoteheadBlack, template.Left); ok {
				t.Error("LEFT bucket should never be calibrated")
			}
		})
	}
}

func TestAnalyzeMeanAcrossSystems(t *testing.T) {
	// 30 samples of +3 spread over three systems.
	var tallies []*HeadSeedTally
	for sys := 1; sys <= 3; sys++ {
		g := sig.NewGraph(sys)
		tally := NewHeadSeedTally()
		for i := 0; i < 10; i++ {
			tally.PutDx(addHead(g, shape.NoteheadBlack), template.Right, 3.0)
		}
		tallies = append(tallies, tally)
	}

	scale := Analyze(tallies, 10)
	dx, ok := scale.Dx(shape.NoteheadBlack, template.Right)
	if !ok || dx != 3.0 {
		t.Fatalf("Dx(NOTEHEAD_BLACK, RIGHT) = %v, %v, want 3, true", dx, ok)
	}

	recs := scale.Records()
	if len(recs) != 1 || recs[0].Count != 30 || recs[0].StdDev != 0 {
		t.Errorf("Records = %+v, want one record of 30 samples with no deviation", recs)
	}
}

func TestAnalyzeSeparatesBuckets(t *testing.T) {
	g := sig.NewGraph(1)
	tally := NewHeadSeedTally()
	for i := 0; i < 4; i++ {
		tally.PutDx(addHead(g, shape.NoteheadBlack), template.Right, float64(i))
		tally.PutDx(addHead(g, shape.NoteheadVoid), template.Left, -2)
	}

	scale := Analyze([]*HeadSeedTally{tally, nil}, 4)
	if dx, _ := scale.Dx(shape.NoteheadBlack, template.Right); dx != 1.5 {
		t.Errorf("black right mean = %v, want 1.5", dx)
	}
	if dx, _ := scale.Dx(shape.NoteheadVoid, template.Left); dx != -2 {
		t.Errorf("void left mean = %v, want -2", dx)
	}
	if _, ok := scale.Dx(shape.NoteheadVoid, template.Right); ok {
		t.Error("void right should be absent")
	}
	if scale.Len() != 2 {
		t.Errorf("Len = %d, want 2", scale.Len())
	}
}

func TestScaleFile(t *testing.T) {
	scale := NewHeadSeedScale(
		ScaleRecord{Shape: shape.NoteheadVoid, Side: template.Left, Dx: -0.5, Count: 12},
		ScaleRecord{Shape: shape.NoteheadBlack, Side: template.Right, Dx: 3, Count: 40},
	)

	path := filepath.Join(t.TempDir(), "scale.json")
	if err := SaveScale(path, scale); err != nil {
		t.Fatalf("SaveScale failed: %v", err)
	}
	loaded, err := LoadScale(path)
	if err != nil {
		t.Fatalf("LoadScale failed: %v", err)
	}

	if dx, ok := loaded.Dx(shape.NoteheadBlack, template.Right); !ok || dx != 3 {
		t.Errorf("loaded black right = %v, %v", dx, ok)
	}
	if dx, ok := loaded.Dx(shape.NoteheadVoid, template.Left); !ok || dx != -0.5 {
		t.Errorf("loaded void left = %v, %v", dx, ok)
	}
}

func TestScaleJSONShape(t *testing.T) {
	scale := NewHeadSeedScale(ScaleRecord{Shape: shape.NoteheadBlack, Side: template.Right, Dx: 3})
	data, err := json.Marshal(scale)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[{"shape":"NOTEHEAD_BLACK","side":"RIGHT","dx":3}]`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var empty *HeadSeedScale
	if _, ok := empty.Dx(shape.NoteheadBlack, template.Right); ok {
		t.Error("nil scale should have no bucket")
	}
	if _, err := LoadScale(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadScale of a missing file should fail")
	}
}
