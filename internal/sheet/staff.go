package sheet

import (
	"math"
	"sort"
)

// Staff is a set of horizontal lines with its ledgers.
//
// Pitch positions count half interlines from the middle line, growing
// downwards: on a 5-line staff, lines sit at -4, -2, 0, 2, 4. Ledgers are
// keyed by index, -1 being the first ledger above the staff and 1 the first
// below.
type Staff struct {
	ID         int               `json:"id"`
	Lines      []*Line           `json:"lines"`
	Ledgers    map[int][]*Ledger `json:"ledgers,omitempty"`
	HeaderStop int               `json:"header_stop"`
	PointSize  int               `json:"point_size,omitempty"`
	Tablature  bool              `json:"tablature,omitempty"`

	system *System
}

// System returns the containing system.
func (st *Staff) System() *System { return st.system }

// LineCount returns the number of staff lines.
func (st *Staff) LineCount() int { return len(st.Lines) }

// FirstLine returns the top line.
func (st *Staff) FirstLine() *Line { return st.Lines[0] }

// LastLine returns the bottom line.
func (st *Staff) LastLine() *Line { return st.Lines[len(st.Lines)-1] }

// Left returns the abscissa where all lines have started.
func (st *Staff) Left() float64 {
	left := math.Inf(-1)
	for _, l := range st.Lines {
		left = math.Max(left, l.Left())
	}
	return left
}

// Right returns the abscissa where the first line ends.
func (st *Staff) Right() float64 {
	right := math.Inf(1)
	for _, l := range st.Lines {
		right = math.Min(right, l.Right())
	}
	return right
}

// LinePitch returns the pitch position of line index i (0 is top).
func (st *Staff) LinePitch(i int) int {
	return 2*i - (len(st.Lines) - 1)
}

// MaxPitch returns the pitch of the bottom line.
func (st *Staff) MaxPitch() int {
	return len(st.Lines) - 1
}

// LedgersAt returns the ledgers at index i, sorted by abscissa.
func (st *Staff) LedgersAt(i int) []*Ledger {
	return st.Ledgers[i]
}

// LedgerIndexes returns the ledger indexes on one side: dir < 0 above, dir > 0
// below, in order moving away from the staff.
func (st *Staff) LedgerIndexes(dir int) []int {
	var out []int
	for i := range st.Ledgers {
		if i*dir > 0 {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a]*dir < out[b]*dir })
	return out
}

// PitchToY returns the theoretical ordinate of a pitch position at x.
// Within the staff, ordinates are interpolated between lines. Outside,
// they are extrapolated with the given interline.
func (st *Staff) PitchToY(x float64, pitch int, interline float64) float64 {
	n := len(st.Lines)
	top := st.LinePitch(0)
	bottom := st.LinePitch(n - 1)
	switch {
	case pitch <= top:
		return st.FirstLine().YAt(x) - float64(top-pitch)*interline/2
	case pitch >= bottom:
		return st.LastLine().YAt(x) + float64(pitch-bottom)*interline/2
	}
	idx := pitch - top
	if idx%2 == 0 {
		return st.Lines[idx/2].YAt(x)
	}
	return (st.Lines[idx/2].YAt(x) + st.Lines[idx/2+1].YAt(x)) / 2
}

// NewStaff builds a staff of straight horizontal lines spanning left to right
// at the given ordinates.
func NewStaff(id int, left, right, thickness float64, ys ...float64) (*Staff, error) {
	st := &Staff{ID: id, Ledgers: map[int][]*Ledger{}}
	for _, y := range ys {
		l, err := NewLine(thickness, Point{X: left, Y: y}, Point{X: right, Y: y})
		if err != nil {
			return nil, err
		}
		st.Lines = append(st.Lines, l)
	}
	return st, nil
}
