package heads

import (
	"fmt"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/sheet"
)

// params holds the configuration scaled to the sheet, in pixels.
type params struct {
	interline  int
	maxStem    int
	smallHeads bool

	minGrade           float64
	goodGrade          float64
	minContextualGrade float64

	maxDistanceLow    float64
	maxDistanceHigh   float64
	reallyBadDistance float64

	maxTemplateDx     float64
	maxClosedDy       int
	maxOpenDy         int
	pitchMargin       float64
	shrinkVertRatio   float64
	barVerticalMargin float64
	minHoleWhiteRatio float64

	gradeMargin         float64
	minIouHeads         float64
	stemLessBoost       float64
	minBeamWidth        int
	maxOverlapDxRatio   float64
	maxOverlapAreaRatio float64

	minTemplateWidth int
	templateHalf     int
}

func newParams(cfg *config.Config, sc sheet.Scale) params {
	return params{
		interline:  sc.Interline,
		maxStem:    sc.MaxStem,
		smallHeads: sc.SmallHeads,

		minGrade:           cfg.MinGrade,
		goodGrade:          cfg.GoodGrade,
		minContextualGrade: cfg.MinContextualGrade,

		maxDistanceLow:    cfg.MaxDistanceLow,
		maxDistanceHigh:   cfg.MaxDistanceHigh,
		reallyBadDistance: cfg.ReallyBadDistance,

		maxTemplateDx:     sc.ToPixelsF(cfg.MaxTemplateDxFrac),
		maxClosedDy:       max(1, sc.ToPixels(cfg.MaxClosedDyFrac)),
		maxOpenDy:         max(1, sc.ToPixels(cfg.MaxOpenDyFrac)),
		pitchMargin:       cfg.PitchMargin,
		shrinkVertRatio:   cfg.ShrinkVertRatio,
		barVerticalMargin: sc.ToPixelsF(cfg.BarVerticalMarginFrac),
		minHoleWhiteRatio: cfg.MinHoleWhiteRatio,

		gradeMargin:         cfg.GradeMargin,
		minIouHeads:         cfg.MinIouHeads,
		stemLessBoost:       cfg.StemLessBoost,
		minBeamWidth:        sc.ToPixels(cfg.MinBeamWidthFrac),
		maxOverlapDxRatio:   cfg.MaxOverlapDxRatio,
		maxOverlapAreaRatio: cfg.MaxOverlapAreaRate,

		minTemplateWidth: sc.Interline,
		templateHalf:     3 * sc.Interline / 2,
	}
}

// yOffsets returns the ordinate offsets tried around the theoretical
// ordinate. In a space: 0, dir, -dir, 2*dir, 3*dir... On a line:
// 0, -1, +1, -2, +2...
func (p params) yOffsets(open bool, dir int) []int {
	if open {
		offsets := make([]int, 1+p.maxOpenDy)
		for i := range offsets {
			switch i {
			case 0:
				offsets[i] = 0
			case 1:
				offsets[i] = dir
			case 2:
				offsets[i] = -dir
			default:
				offsets[i] = dir * (i - 1)
			}
		}
		return offsets
	}

	offsets := make([]int, 1+p.maxClosedDy)
	for i := range offsets {
		if i%2 == 0 {
			offsets[i] = i / 2
		} else {
			offsets[i] = -(i + 1) / 2
		}
	}
	return offsets
}

// xOffsets returns the abscissa offsets tried around a stem seed: a window
// as wide as the maximum stem thickness, odd, ordered 0, +1, -1, +2, -2...
func (p params) xOffsets() []int {
	n := max(1, p.maxStem)
	if n%2 == 0 {
		n++
	}
	offsets := make([]int, n)
	for i := range offsets {
		if i%2 == 0 {
			offsets[i] = -(i / 2)
		} else {
			offsets[i] = (i + 1) / 2
		}
	}
	return offsets
}

// Perf counts what happened to template evaluations in one scanning mode.
type Perf struct {
	Bars     int `json:"bars"`
	Overlaps int `json:"overlaps"`
	Evals    int `json:"evals"`
	Abandons int `json:"abandons"`
}

// Add accumulates o into p.
func (p *Perf) Add(o Perf) {
	p.Bars += o.Bars
	p.Overlaps += o.Overlaps
	p.Evals += o.Evals
	p.Abandons += o.Abandons
}

func (p Perf) String() string {
	return fmt.Sprintf("%d bars, %d overlaps, %d evals, %d abandons", p.Bars, p.Overlaps, p.Evals, p.Abandons)
}
