package heads

import (
	"image"
	"image/color"
	"reflect"
	"testing"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// testPage is a synthetic 600x300 page holding one 5-line staff with
// interline 20, lines at y=100..180 from x=20 to x=580.
type testPage struct {
	sheet   *sheet.Sheet
	sys     *sheet.System
	staff   *sheet.Staff
	img     *image.Gray
	factory *template.Factory
	catalog *template.Catalog
}

func newTestPage(t *testing.T, maxStem int) *testPage {
	t.Helper()
	st, err := sheet.NewStaff(1, 20, 580, 1, 100, 120, 140, 160, 180)
	if err != nil {
		t.Fatalf("NewStaff failed: %v", err)
	}
	sys := &sheet.System{ID: 1, Staves: []*sheet.Staff{st}}
	sh := &sheet.Sheet{
		ID:      "test",
		Width:   600,
		Height:  300,
		Scale:   sheet.Scale{Interline: 20, MaxStem: maxStem},
		Systems: []*sheet.System{sys},
	}
	if err := sh.Prepare(); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	img := image.NewGray(image.Rect(0, 0, 600, 300))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, y := range []int{100, 120, 140, 160, 180} {
		for x := 20; x <= 580; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	factory, err := template.NewFactory(template.DefaultParams(), 4)
	if err != nil {
		t.Fatalf("NewFactory failed: %v", err)
	}
	cat, err := factory.Catalog(st.PointSize)
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	return &testPage{sheet: sh, sys: sys, staff: st, img: img, factory: factory, catalog: cat}
}

func (p *testPage) paint(s shape.Shape, x, y int, a template.Anchor) {
	p.catalog.Template(s).Paint(p.img, x, y, a)
}

// addSeed inks a one pixel wide stem seed at x from y0 to y1 included.
func (p *testPage) addSeed(id, x, y0, y1 int) *sheet.Glyph {
	g := &sheet.Glyph{ID: id, Orientation: sheet.Vertical, Runs: []sheet.Run{{Seq: x, Start: y0, Len: y1 - y0 + 1}}}
	for y := y0; y <= y1; y++ {
		p.img.SetGray(x, y, color.Gray{Y: 0})
	}
	p.sys.Seeds = append(p.sys.Seeds, g)
	return g
}

func (p *testPage) field() *distance.Field {
	b := distance.Compute(p.img)
	for _, l := range p.staff.Lines {
		b.EraseLine(l, l.LineThickness())
	}
	for _, seed := range p.sys.Seeds {
		b.EraseGlyph(seed)
	}
	return b.Freeze()
}

type buildResult struct {
	builder *Builder
	graph   *sig.Graph
	tally   *HeadSeedTally
	heads   []*sig.Inter
}

func (p *testPage) build(t *testing.T, cfg *config.Config) buildResult {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	g := sig.NewGraph(p.sys.ID)
	Populate(g, p.sys, cfg.GoodGrade)
	tally := NewHeadSeedTally()
	b := NewBuilder(p.sys, g, tally, Options{
		Field:   p.field(),
		Binary:  p.img,
		Factory: p.factory,
		Config:  cfg,
	})
	heads, err := b.BuildHeads()
	if err != nil {
		t.Fatalf("BuildHeads failed: %v", err)
	}
	return buildResult{builder: b, graph: g, tally: tally, heads: heads}
}

func findHead(heads []*sig.Inter, s shape.Shape, box image.Rectangle) *sig.Inter {
	for _, h := range heads {
		if h.Shape == s && h.Bounds == box && !h.Removed {
			return h
		}
	}
	return nil
}

func TestRangeFindsWholeNote(t *testing.T) {
	p := newTestPage(t, 3)
	// Whole note in the space between the two top lines, pitch -3.
	p.paint(shape.WholeNote, 300, 110, template.MiddleLeft)

	res := p.build(t, nil)
	want := p.catalog.Template(shape.WholeNote).SymbolBoundsAt(300, 110, template.MiddleLeft)

	h := findHead(res.heads, shape.WholeNote, want)
	if h == nil {
		t.Fatalf("no whole note at %v among %v", want, res.heads)
	}
	if h.Pitch != -3 {
		t.Errorf("pitch = %d, want -3", h.Pitch)
	}
	if h.Grade < 0.9 {
		t.Errorf("grade = %.3f, want a near perfect match", h.Grade)
	}
	if h.Staff != p.staff.ID {
		t.Errorf("staff = %d, want %d", h.Staff, p.staff.ID)
	}
	if h.Source != 0 {
		t.Errorf("range head should have no seed, got %d", h.Source)
	}
}

func TestSeedFindsBlackHead(t *testing.T) {
	p := newTestPage(t, 3)
	const sx = 400
	seed := p.addSeed(11, sx, 70, 140)
	// Stem standing on the right side of a head on the middle line.
	p.paint(shape.NoteheadBlack, sx, 140, template.RightStem)

	res := p.build(t, nil)
	want := p.catalog.Template(shape.NoteheadBlack).SymbolBoundsAt(sx, 140, template.RightStem)

	h := findHead(res.heads, shape.NoteheadBlack, want)
	if h == nil {
		t.Fatalf("no black head at %v among %v", want, res.heads)
	}
	if h.Pitch != 0 {
		t.Errorf("pitch = %d, want 0", h.Pitch)
	}
	if h.Source != seed.ID {
		t.Errorf("source = %d, want seed %d", h.Source, seed.ID)
	}

	dx, ok := res.tally.GetDx(h.ID, template.Right)
	if !ok {
		t.Fatal("seed offset not tallied")
	}
	if wantDx := float64(sx) + 0.5 - float64(want.Max.X-1); dx != wantDx {
		t.Errorf("dx = %v, want %v", dx, wantDx)
	}

	seeds, _ := res.builder.Perf()
	if seeds.Evals == 0 {
		t.Error("seed mode made no evaluation")
	}
}

func TestSeedWindowSearchesBeyondFirstOffset(t *testing.T) {
	// Stem window 0, +1, -1, +2, -2: the head sits two pixels right of the
	// seed, so the first probe is imperfect but not hopeless.
	p := newTestPage(t, 5)
	const sx = 400
	p.addSeed(11, sx, 70, 140)
	p.paint(shape.NoteheadBlack, sx+2, 140, template.RightStem)

	res := p.build(t, nil)
	want := p.catalog.Template(shape.NoteheadBlack).SymbolBoundsAt(sx+2, 140, template.RightStem)
	if findHead(res.heads, shape.NoteheadBlack, want) == nil {
		t.Fatalf("no black head at %v among %v", want, res.heads)
	}
}

func TestSeedAbandonsOnFrozenBar(t *testing.T) {
	p := newTestPage(t, 3)
	const sx = 400
	p.addSeed(11, sx, 70, 140)
	p.paint(shape.NoteheadBlack, sx, 140, template.RightStem)
	p.sys.Bars = append(p.sys.Bars, &sheet.Bar{
		ID:     21,
		Shape:  shape.ThickBarline,
		Bounds: image.Rect(sx-40, 60, sx+40, 200),
		Grade:  0.9,
		Frozen: true,
	})

	res := p.build(t, nil)
	seeds, _ := res.builder.Perf()
	if seeds.Evals != 0 {
		t.Errorf("seed evals = %d, want 0 under a frozen bar", seeds.Evals)
	}
	if seeds.Abandons == 0 || seeds.Abandons != seeds.Bars {
		t.Errorf("seed perf = %v, want one bar hit per abandon", seeds)
	}
	for _, h := range res.heads {
		if h.Source != 0 {
			t.Errorf("unexpected seed head %v", h)
		}
	}
}

func TestBuiltHeadsInvariants(t *testing.T) {
	p := newTestPage(t, 3)
	p.addSeed(11, 400, 70, 140)
	p.paint(shape.NoteheadBlack, 400, 140, template.RightStem)
	p.paint(shape.WholeNote, 300, 110, template.MiddleLeft)
	p.paint(shape.NoteheadVoid, 200, 150, template.MiddleLeft)

	cfg := config.DefaultConfig()
	res := p.build(t, cfg)
	if len(res.heads) == 0 {
		t.Fatal("no head found")
	}

	r := res.builder.Resolver()
	for i, a := range res.heads {
		if a.Grade < cfg.MinGrade {
			t.Errorf("%v below min grade %.2f", a, cfg.MinGrade)
		}
		if a.Removed {
			t.Errorf("%v returned although removed", a)
		}
		for _, b := range res.heads[i+1:] {
			if a.IsSameAs(b) {
				t.Errorf("duplicates %v and %v survived", a, b)
			}
			if r.Overlaps(a, b) && !res.graph.Excluded(a.ID, b.ID) {
				t.Errorf("%v and %v overlap without exclusion", a, b)
			}
		}
	}

	// A second resolution pass changes nothing.
	heads := append([]*sig.Inter(nil), res.heads...)
	sortByFullAbscissa(heads)
	heads, dups := r.PurgeDuplicates(heads)
	if n := r.PurgeOverlaps(heads); dups != 0 || n != 0 {
		t.Errorf("second pass: %d duplicates, %d new exclusions", dups, n)
	}
}

func TestBuildSkipsTablature(t *testing.T) {
	p := newTestPage(t, 3)
	p.paint(shape.WholeNote, 300, 110, template.MiddleLeft)
	p.staff.Tablature = true

	res := p.build(t, nil)
	if len(res.heads) != 0 {
		t.Errorf("tablature staff produced %d heads", len(res.heads))
	}
}

func TestOffsets(t *testing.T) {
	p := params{maxOpenDy: 4, maxClosedDy: 2, maxStem: 4}

	tests := []struct {
		name string
		got  []int
		want []int
	}{
		{"open below", p.yOffsets(true, 1), []int{0, 1, -1, 2, 3}},
		{"open above", p.yOffsets(true, -1), []int{0, -1, 1, -2, -3}},
		{"closed", p.yOffsets(false, 0), []int{0, -1, 1}},
		{"stem window", p.xOffsets(), []int{0, 1, -1, 2, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("offsets = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestTheoreticalOrdinate(t *testing.T) {
	p := newTestPage(t, 3)
	mk := func(id int, y float64) *sheet.Ledger {
		lg := &sheet.Ledger{ID: id, Line: sheet.Line{
			Points:    []sheet.Point{{X: 280, Y: y}, {X: 320, Y: y}},
			Thickness: 1,
		}}
		if err := lg.Fit(); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		return lg
	}
	p.staff.Ledgers[-1] = []*sheet.Ledger{mk(7, 80)}
	p.staff.Ledgers[-2] = []*sheet.Ledger{mk(8, 58)}

	b := NewBuilder(p.sys, sig.NewGraph(1), NewHeadSeedTally(), Options{})
	lines := p.staff.Lines
	ledger := ledgerAdapter(p.staff.LedgersAt(-1)[0])

	tests := []struct {
		name   string
		s      *scanner
		x      int
		want   int
		isOpen bool
	}{
		{"on line", b.newScanner(p.staff, nil, staffLineAdapter(lines[2]), nil, 0, 0, false), 300, 140, false},
		{"between lines", b.newScanner(p.staff, nil, staffLineAdapter(lines[1]), staffLineAdapter(lines[0]), -1, -3, false), 300, 110, false},
		{"above staff", b.newScanner(p.staff, nil, staffLineAdapter(lines[0]), nil, -1, -5, false), 300, 90, true},
		{"below staff", b.newScanner(p.staff, nil, staffLineAdapter(lines[4]), nil, 1, 5, false), 300, 190, true},
		{"on ledger", b.newScanner(p.staff, nil, ledger, nil, 0, -6, false), 300, 80, false},
		{"between ledgers", b.newScanner(p.staff, nil, ledger, nil, -1, -7, false), 300, 69, true},
		{"beyond ledger end", b.newScanner(p.staff, nil, ledger, nil, -1, -7, false), 330, 70, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.theoreticalOrdinate(tt.x); got != tt.want {
				t.Errorf("ordinate = %d, want %d", got, tt.want)
			}
			if tt.s.isOpen != tt.isOpen {
				t.Errorf("isOpen = %v, want %v", tt.s.isOpen, tt.isOpen)
			}
		})
	}
}

func TestLookFurther(t *testing.T) {
	p := newTestPage(t, 3)
	lower, err := sheet.NewStaff(2, 20, 580, 1, 220, 240, 260, 280)
	if err != nil {
		t.Fatalf("NewStaff failed: %v", err)
	}
	p.sys.Staves = append(p.sys.Staves, lower)
	p.sys.Parts = []*sheet.Part{{ID: 1, Staves: []int{1, 2}, Merged: true}}

	b := NewBuilder(p.sys, sig.NewGraph(1), NewHeadSeedTally(), Options{})
	tests := []struct {
		staff *sheet.Staff
		dir   int
		want  bool
	}{
		{p.staff, -1, true},
		{p.staff, 1, false},
		{lower, -1, false},
		{lower, 1, true},
	}
	for _, tt := range tests {
		if got := b.lookFurther(tt.staff, tt.dir); got != tt.want {
			t.Errorf("lookFurther(staff %d, %d) = %v, want %v", tt.staff.ID, tt.dir, got, tt.want)
		}
	}

	p.sys.Parts[0].Merged = false
	if !b.lookFurther(p.staff, 1) {
		t.Error("unmerged part should always look further")
	}
}

func TestBandIntersects(t *testing.T) {
	l, err := sheet.NewLine(1, sheet.Point{X: 20, Y: 100}, sheet.Point{X: 580, Y: 100})
	if err != nil {
		t.Fatalf("NewLine failed: %v", err)
	}
	bd := staffLineAdapter(l).band(-5, 5)

	tests := []struct {
		name string
		r    image.Rectangle
		want bool
	}{
		{"across", image.Rect(100, 90, 110, 110), true},
		{"inside", image.Rect(100, 98, 110, 102), true},
		{"above", image.Rect(100, 80, 110, 95), false},
		{"below", image.Rect(100, 105, 110, 120), false},
		{"left of line", image.Rect(0, 90, 20, 110), false},
		{"right of line", image.Rect(581, 90, 600, 110), false},
		{"empty", image.Rectangle{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bd.intersects(tt.r); got != tt.want {
				t.Errorf("intersects(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestSystemCompetitors(t *testing.T) {
	p := newTestPage(t, 3)
	p.sys.Seeds = []*sheet.Glyph{
		{ID: 1, Orientation: sheet.Vertical, Runs: []sheet.Run{{Seq: 100, Start: 60, Len: 40}}},
		{ID: 2, Orientation: sheet.Vertical, Runs: []sheet.Run{{Seq: 130, Start: 60, Len: 40}}},
	}
	p.sys.Bars = []*sheet.Bar{
		{ID: 1, Shape: shape.ThinBarline, Bounds: image.Rect(50, 100, 52, 180), Grade: 0.9, Frozen: true},
		{ID: 2, Shape: shape.ThickBarline, Bounds: image.Rect(60, 100, 68, 180), Grade: 0.9},
		{ID: 3, Shape: shape.ThickBarline, Bounds: image.Rect(70, 100, 78, 180), Grade: 0.3},
	}
	p.sys.Beams = []*sheet.Beam{
		{ID: 1, Shape: shape.Beam, Bounds: image.Rect(100, 60, 130, 66), Grade: 0.8, StemSeeds: []int{1, 2}},
		{ID: 2, Shape: shape.Beam, Bounds: image.Rect(130, 70, 190, 76), Grade: 0.2, StemSeeds: []int{2}},
		{ID: 3, Shape: shape.Beam, Bounds: image.Rect(300, 60, 320, 66), Grade: 0.8},
	}
	p.sys.Rests = []*sheet.Rest{{ID: 1, Shape: shape.QuarterRest, Bounds: image.Rect(400, 120, 410, 150), Grade: 0.7}}

	g := sig.NewGraph(1)
	Populate(g, p.sys, 0.5)
	prm := newParams(config.DefaultConfig(), p.sheet.Scale)

	var got []int
	for _, c := range systemCompetitors(g, prm) {
		got = append(got, int(c.Kind)*100+c.Source)
	}
	want := []int{
		int(sig.KindBarline)*100 + 2, // thick and good
		int(sig.KindBeam)*100 + 1,    // short but grouped with a long beam
		int(sig.KindRest)*100 + 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("competitors = %v, want %v", got, want)
	}

	if areas := systemBarAreas(g); len(areas) != 1 || areas[0] != p.sys.Bars[0].Bounds {
		t.Errorf("bar areas = %v, want the frozen thin barline only", areas)
	}
	if rest := g.Inters(sig.KindRest); len(rest) != 1 || rest[0].Staff != p.staff.ID {
		t.Errorf("rest not attached to staff: %v", rest)
	}
	if stems := g.Inters(sig.KindStem); len(stems) != 2 || stems[0].Grade != 0.5 {
		t.Errorf("stems = %v, want two stems graded 0.5", stems)
	}
}
