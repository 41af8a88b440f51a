// Package pipeline runs head detection over a whole sheet.
//
// The distance field is built once for the page, then each system is
// processed on its own goroutine with its own interpretation graph and seed
// tally. Once every system is done, a sheet epilog purges small beams,
// folds the tallies into a HeadSeedScale and assembles chords.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"sync"

	"github.com/ironsheep/omr-heads/internal/chords"
	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/heads"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// Input gathers what Run needs. Only Sheet is mandatory.
type Input struct {
	Sheet  *sheet.Sheet
	Binary *image.Gray

	// Config defaults to config.DefaultConfig().
	Config *config.Config

	// Factory is built from Config when nil. Share one factory between runs
	// to reuse its catalogs.
	Factory *template.Factory

	// Scale is a calibration from earlier documents, used to break ties
	// between equal heads.
	Scale *heads.HeadSeedScale
}

// systemRun is the state of one system between the fan-out and the epilog.
type systemRun struct {
	sys     *sheet.System
	graph   *sig.Graph
	tally   *heads.HeadSeedTally
	heads   []*sig.Inter
	seeds   heads.Perf
	rng     heads.Perf
	failure string
}

// TemplateParams converts the template section of cfg.
func TemplateParams(cfg *config.Config) template.Params {
	return template.Params{
		ForeWeight: cfg.ForeWeight,
		BackWeight: cfg.BackWeight,
		HoleWeight: cfg.HoleWeight,
		PointCap:   cfg.PointCap,
		Margin:     cfg.TemplateMargin,
		SmallRatio: cfg.SmallRatio,
	}
}

// NewFactory creates a template factory configured by cfg.
func NewFactory(cfg *config.Config) (*template.Factory, error) {
	return template.NewFactory(TemplateParams(cfg), cfg.CatalogCacheSize)
}

// BuildField computes the distance field of the binary page with staff
// lines, ledgers and stem seeds erased.
func BuildField(s *sheet.Sheet, binary *image.Gray) *distance.Field {
	b := distance.Compute(binary)
	for _, st := range s.Staves() {
		for _, l := range st.Lines {
			b.EraseLine(l, l.LineThickness())
		}
		for _, i := range st.LedgerIndexes(-1) {
			for _, lg := range st.LedgersAt(i) {
				b.EraseLine(lg, lg.LineThickness())
			}
		}
		for _, i := range st.LedgerIndexes(1) {
			for _, lg := range st.LedgersAt(i) {
				b.EraseLine(lg, lg.LineThickness())
			}
		}
	}
	for _, sys := range s.Systems {
		for _, seed := range sys.Seeds {
			b.EraseGlyph(seed)
		}
	}
	return b.Freeze()
}

// Run detects the heads and chords of every system of the sheet.
//
// A missing binary image is not an error: it is logged and yields an empty
// result. A system that panics is reported in Result.Failed while the others
// complete. Cancelling ctx stops systems not yet started; Run then returns
// the context error.
func Run(ctx context.Context, in Input) (*Result, error) {
	if in.Sheet == nil {
		return nil, fmt.Errorf("no sheet to process")
	}
	cfg := in.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	lg := log.With("sheet", in.Sheet.ID)
	res := &Result{SheetID: in.Sheet.ID}

	if in.Binary == nil {
		lg.Info("no binary image, skipping head detection")
		return res, nil
	}

	factory := in.Factory
	if factory == nil {
		f, err := NewFactory(cfg)
		if err != nil {
			return nil, err
		}
		factory = f
	}

	field := BuildField(in.Sheet, in.Binary)
	stats := field.Stats()
	res.Field = &stats
	lg.Debug("distance field ready", "width", field.Width(), "height", field.Height())

	runs := make([]*systemRun, len(in.Sheet.Systems))
	sem := make(chan struct{}, max(1, cfg.Workers))
	var wg sync.WaitGroup

	for i, sys := range in.Sheet.Systems {
		if ctx.Err() != nil {
			break
		}
		runs[i] = &systemRun{sys: sys, graph: sig.NewGraph(sys.ID), tally: heads.NewHeadSeedTally()}

		wg.Add(1)
		go func(r *systemRun) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				r.failure = ctx.Err().Error()
				return
			}
			defer func() { <-sem }()
			processSystem(ctx, r, field, in.Binary, factory, cfg, in.Scale)
		}(runs[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("head detection interrupted: %w", err)
	}

	// Sheet epilog.
	minBeamWidth := in.Sheet.Scale.ToPixels(cfg.MinBeamWidthFrac)
	var tallies []*heads.HeadSeedTally
	for _, r := range runs {
		if r.failure != "" {
			res.Failed = append(res.Failed, SystemFailure{System: r.sys.ID, Error: r.failure})
			continue
		}
		beams, defeated := heads.PurgeSmallBeams(r.graph, minBeamWidth)
		if beams+defeated > 0 {
			lg.Debug("small beams", "system", r.sys.ID, "beams", beams, "heads", defeated)
		}
		r.tally.PurgeRemovedHeads(r.graph)
		tallies = append(tallies, r.tally)
	}
	res.Scale = heads.Analyze(tallies, cfg.SeedQuorum)

	for _, r := range runs {
		if r.failure != "" {
			continue
		}
		cs := chords.NewAssembler(r.sys, r.graph, cfg).Build()
		res.Systems = append(res.Systems, newSystemResult(r, cs))
	}

	lg.Info("head detection done", "systems", len(res.Systems), "failed", len(res.Failed), "calibrated", res.Scale.Len())
	return res, nil
}

// processSystem detects the heads of one system. A panic is recovered into
// the run failure.
func processSystem(ctx context.Context, r *systemRun, field *distance.Field, binary *image.Gray,
	factory *template.Factory, cfg *config.Config, scale *heads.HeadSeedScale) {
	lg := log.With("system", r.sys.ID)
	defer func() {
		if p := recover(); p != nil {
			lg.Error("system processing panicked", "panic", p, "stack", string(debug.Stack()))
			r.failure = fmt.Sprintf("panic: %v", p)
		}
	}()

	if err := ctx.Err(); err != nil {
		r.failure = err.Error()
		return
	}

	heads.Populate(r.graph, r.sys, cfg.GoodGrade)
	b := heads.NewBuilder(r.sys, r.graph, r.tally, heads.Options{
		Field:   field,
		Binary:  binary,
		Factory: factory,
		Config:  cfg,
		Scale:   scale,
	})
	found, err := b.BuildHeads()
	if err != nil {
		lg.Warn("head detection failed", "error", err)
		r.failure = err.Error()
		return
	}
	r.heads = found
	r.seeds, r.rng = b.Perf()
	lg.Debug("system heads", "count", len(found))
}
