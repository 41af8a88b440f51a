package sheet

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/interp"
)

// Point is a sub-pixel location on the page.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is a roughly horizontal line (staff line or ledger) defined by a
// sequence of defining points. Ordinates between points follow a natural
// cubic spline, or a straight segment when fewer than three points exist.
type Line struct {
	Points    []Point `json:"points"`
	Thickness float64 `json:"thickness"`

	once sync.Once
	fit  interp.Predictor
	err  error
}

// NewLine builds a line from its defining points.
func NewLine(thickness float64, pts ...Point) (*Line, error) {
	l := &Line{Points: pts, Thickness: thickness}
	if err := l.Fit(); err != nil {
		return nil, err
	}
	return l, nil
}

// Fit sorts the defining points and prepares the interpolator.
// It is safe to call more than once.
func (l *Line) Fit() error {
	l.once.Do(func() {
		if len(l.Points) < 2 {
			l.err = fmt.Errorf("line needs at least 2 points, got %d", len(l.Points))
			return
		}
		sort.Slice(l.Points, func(i, j int) bool { return l.Points[i].X < l.Points[j].X })

		xs := make([]float64, 0, len(l.Points))
		ys := make([]float64, 0, len(l.Points))
		for _, p := range l.Points {
			if n := len(xs); n > 0 && p.X <= xs[n-1] {
				continue
			}
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
		if len(xs) < 2 {
			l.err = fmt.Errorf("line has no horizontal extent")
			return
		}

		if len(xs) >= 3 {
			var nc interp.NaturalCubic
			if err := nc.Fit(xs, ys); err != nil {
				l.err = fmt.Errorf("failed to fit line spline: %w", err)
				return
			}
			l.fit = &nc
			return
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			l.err = fmt.Errorf("failed to fit line segment: %w", err)
			return
		}
		l.fit = &pl
	})
	return l.err
}

// Left returns the abscissa of the leftmost defining point.
func (l *Line) Left() float64 { return l.Points[0].X }

// Right returns the abscissa of the rightmost defining point.
func (l *Line) Right() float64 { return l.Points[len(l.Points)-1].X }

// YAt returns the line ordinate at abscissa x, clamped to the line extent.
func (l *Line) YAt(x float64) float64 {
	if err := l.Fit(); err != nil {
		return math.NaN()
	}
	x = math.Max(l.Left(), math.Min(l.Right(), x))
	return l.fit.Predict(x)
}

// LineThickness returns the stroke thickness, at least one pixel.
func (l *Line) LineThickness() float64 {
	return math.Max(1, l.Thickness)
}

// Ledger is a short line above or below a staff.
type Ledger struct {
	ID int `json:"id"`
	Line
}

// Center returns the ledger middle point.
func (lg *Ledger) Center() Point {
	x := (lg.Left() + lg.Right()) / 2
	return Point{X: x, Y: lg.YAt(x)}
}
